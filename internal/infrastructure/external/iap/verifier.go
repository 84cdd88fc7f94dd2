// Package iap checks store receipts against the platform stores. This is the
// backend half of reconciliation: the charge endpoints call a checker and
// answer the client with a bare business code.
package iap

import (
	"context"
	"fmt"

	"github.com/awa/go-iap/appstore"
)

// CheckResult is the outcome of a store-side receipt check.
type CheckResult struct {
	Valid         bool
	TransactionID string
	ProductID     string
}

// ReceiptChecker validates a store receipt and extracts its transaction id.
type ReceiptChecker interface {
	Check(ctx context.Context, receipt string) (*CheckResult, error)
}

// AppleChecker verifies receipts with the App Store verifyReceipt service.
type AppleChecker struct {
	client       *appstore.Client
	sharedSecret string
}

// NewAppleChecker creates an App Store checker.
func NewAppleChecker(sharedSecret string) *AppleChecker {
	return &AppleChecker{
		client:       appstore.New(),
		sharedSecret: sharedSecret,
	}
}

// Check verifies the receipt. Status 0 from Apple means the receipt is
// authentic; anything else is an invalid receipt, not a transport error.
func (c *AppleChecker) Check(ctx context.Context, receipt string) (*CheckResult, error) {
	req := appstore.IAPRequest{
		ReceiptData: receipt,
		Password:    c.sharedSecret,
	}

	var resp appstore.IAPResponse
	if err := c.client.Verify(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to verify apple receipt: %w", err)
	}

	if resp.Status != 0 {
		return &CheckResult{Valid: false}, nil
	}

	result := &CheckResult{Valid: true}
	if len(resp.Receipt.InApp) > 0 {
		latest := resp.Receipt.InApp[len(resp.Receipt.InApp)-1]
		result.TransactionID = latest.TransactionID
		result.ProductID = latest.ProductID
	}
	return result, nil
}
