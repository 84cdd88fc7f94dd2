package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenRoundTrip(t *testing.T) {
	j := NewJWTMiddleware("test-secret", "iap-reconciler", nil, 15*time.Minute)

	t.Run("issued tokens parse back to their claims", func(t *testing.T) {
		token, jti, err := j.GenerateAccessToken("user-42")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.NotEmpty(t, jti)

		claims, err := j.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", claims.UserID)
		assert.Equal(t, jti, claims.JTI)
		assert.Equal(t, "iap-reconciler", claims.Issuer)
	})

	t.Run("tokens signed with another secret are rejected", func(t *testing.T) {
		other := NewJWTMiddleware("different-secret", "iap-reconciler", nil, 15*time.Minute)
		token, _, err := other.GenerateAccessToken("user-42")
		require.NoError(t, err)

		_, err = j.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage tokens are rejected", func(t *testing.T) {
		_, err := j.ParseToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("each token gets a fresh jti", func(t *testing.T) {
		_, jti1, err := j.GenerateAccessToken("user-42")
		require.NoError(t, err)
		_, jti2, err := j.GenerateAccessToken("user-42")
		require.NoError(t, err)
		assert.NotEqual(t, jti1, jti2)
	})
}
