// Package verification talks to the backend receipt-verification endpoint.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
)

// DefaultTimeout bounds each verification call. On timeout the transaction
// simply stays pending for a later sweep.
const DefaultTimeout = 15 * time.Second

// Client posts receipts for verification. The response contract is a JSON
// object with a `code` field (0 = success, nonzero = business error) and an
// optional `msg`. Anything that prevents reading a code (transport failure,
// timeout, malformed body) is normalized to the 408 sentinel so callers
// handle exactly one retryable outcome.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

type verifyRequest struct {
	UserID  string `json:"userID"`
	Receipt string `json:"receipt"`
}

type verifyResponse struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

// NewClient creates a verification client for the given endpoint. A
// non-positive timeout falls back to DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// VerifyReceipt posts {userID, receipt} and returns the backend's business
// code, or 408 when no code could be obtained.
func (c *Client) VerifyReceipt(ctx context.Context, userID, receipt string) int {
	body, err := json.Marshal(verifyRequest{UserID: userID, Receipt: receipt})
	if err != nil {
		c.logger.Error("failed to encode verification request", zap.Error(err))
		return domainErrors.CodeTimeout
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build verification request", zap.Error(err))
		return domainErrors.CodeTimeout
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("verification request failed", zap.Error(err))
		return domainErrors.CodeTimeout
	}
	defer resp.Body.Close()

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.Code == nil {
		c.logger.Warn("verification response missing status code",
			zap.Int("http_status", resp.StatusCode),
			zap.Error(err),
		)
		return domainErrors.CodeTimeout
	}

	if *parsed.Code != 0 {
		c.logger.Warn("verification rejected",
			zap.Int("code", *parsed.Code),
			zap.String("msg", parsed.Msg),
		)
	}
	return *parsed.Code
}
