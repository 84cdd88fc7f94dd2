package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
)

func TestVerifyReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the wire contract and returns the backend code", func(t *testing.T) {
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{"code":0,"msg":"ok"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, zap.NewNop())
		code := c.VerifyReceipt(ctx, "user-7", "opaque-receipt")

		assert.Equal(t, 0, code)
		assert.Equal(t, "user-7", gotBody["userID"])
		assert.Equal(t, "opaque-receipt", gotBody["receipt"])
	})

	t.Run("nonzero business code passes through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"code":37,"msg":"already granted"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, zap.NewNop())
		assert.Equal(t, 37, c.VerifyReceipt(ctx, "u", "r"))
	})

	t.Run("missing code field is a timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"msg":"no code here"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, zap.NewNop())
		assert.Equal(t, domainErrors.CodeTimeout, c.VerifyReceipt(ctx, "u", "r"))
	})

	t.Run("malformed body is a timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`<html>gateway error</html>`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, zap.NewNop())
		assert.Equal(t, domainErrors.CodeTimeout, c.VerifyReceipt(ctx, "u", "r"))
	})

	t.Run("unreachable backend is a timeout", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", time.Second, zap.NewNop())
		assert.Equal(t, domainErrors.CodeTimeout, c.VerifyReceipt(ctx, "u", "r"))
	})

	t.Run("slow backend hits the client timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(150 * time.Millisecond)
			w.Write([]byte(`{"code":0}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, 50*time.Millisecond, zap.NewNop())
		assert.Equal(t, domainErrors.CodeTimeout, c.VerifyReceipt(ctx, "u", "r"))
	})

	t.Run("code is read even from a non-200 response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":12,"msg":"backend error"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, zap.NewNop())
		assert.Equal(t, 12, c.VerifyReceipt(ctx, "u", "r"))
	})
}
