package iap

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// GoogleChecker verifies receipts with the Google Play Developer API.
type GoogleChecker struct {
	serviceAccountJSON string
}

// NewGoogleChecker creates a Play Store checker.
func NewGoogleChecker(serviceAccountJSON string) *GoogleChecker {
	return &GoogleChecker{serviceAccountJSON: serviceAccountJSON}
}

// googleReceipt is the client-side receipt payload: the purchase token plus
// the coordinates needed to look it up.
type googleReceipt struct {
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
}

// Check verifies a one-time product purchase. purchaseState 0 means
// purchased; 1 cancelled, 2 pending.
func (c *GoogleChecker) Check(ctx context.Context, receipt string) (*CheckResult, error) {
	var parsed googleReceipt
	if err := json.Unmarshal([]byte(receipt), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse google receipt payload: %w", err)
	}

	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(c.serviceAccountJSON),
		androidpublisher.AndroidpublisherScope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := androidpublisher.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create android publisher service: %w", err)
	}

	purchase, err := svc.Purchases.Products.Get(
		parsed.PackageName,
		parsed.ProductID,
		parsed.PurchaseToken,
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to look up google play purchase: %w", err)
	}

	return &CheckResult{
		Valid:         purchase.PurchaseState == 0,
		TransactionID: purchase.OrderId,
		ProductID:     parsed.ProductID,
	}, nil
}
