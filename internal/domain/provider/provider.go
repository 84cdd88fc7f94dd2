// Package provider defines the contract a storefront SDK must satisfy to
// participate in purchase reconciliation. Results never come back on the
// calling goroutine: every operation reports through the adapter's Sink,
// mirroring the asynchronous callback surface of the underlying stores.
package provider

import (
	"context"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
)

type RecurringAction string

const (
	RecurringReactivate RecurringAction = "reactivate"
	RecurringCancel     RecurringAction = "cancel"
)

// Sink receives the adapter's asynchronous results. Each adapter instance
// owns exactly one sink, registered at construction, so independent adapters
// (and test doubles) never share event state. Nil callbacks are skipped.
type Sink struct {
	// CatalogLoaded delivers a completed catalog batch.
	CatalogLoaded func(products []entity.ProductInfo)
	// PurchasesUpdated delivers purchases completed by a launch-purchase flow.
	PurchasesUpdated func(records []entity.PurchaseRecord)
	// PurchasesQueried delivers the owned-purchase query results.
	PurchasesQueried func(records []entity.PurchaseRecord)
	// PurchaseFailed reports a failed purchase attempt with the provider's
	// literal failure code.
	PurchaseFailed func(code int, productID string)
	// Consumed and Acknowledged confirm finalization of a purchase.
	Consumed     func(record entity.PurchaseRecord)
	Acknowledged func(record entity.PurchaseRecord)
	// RecurringChanged confirms a subscription state change.
	RecurringChanged func(record entity.PurchaseRecord, action RecurringAction)
}

// Adapter is the capability set every storefront implementation exposes.
// Connect may fail with errors.ErrNeedLogin or errors.ErrNeedUpdate (wrapped
// in a FlowError); resolving those is the embedding application's job, not
// the adapter's.
type Adapter interface {
	Connect(ctx context.Context) error
	IsServiceAvailable() bool

	QueryCatalog(ctx context.Context, productIDs []string) error
	QueryOwnedPurchases(ctx context.Context, productType entity.ProductType) error
	LaunchPurchase(ctx context.Context, productID string, productType entity.ProductType) error

	Consume(ctx context.Context, record entity.PurchaseRecord) error
	Acknowledge(ctx context.Context, record entity.PurchaseRecord) error
	ManageRecurring(ctx context.Context, record entity.PurchaseRecord, action RecurringAction) error
}
