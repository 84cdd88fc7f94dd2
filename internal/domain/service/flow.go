package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
)

// FlowCoordinator routes a provider's event stream into the reconciliation
// engine. It caches the latest catalog batch so purchase events can be
// paired with their product snapshot, finalizes each completed purchase with
// the provider, and forwards purchase failures to an optional observer for
// the embedding application to render.
type FlowCoordinator struct {
	engine *ReconciliationEngine
	logger *zap.Logger

	// onFailure, if set, receives purchase failures as (code, productID).
	onFailure func(code int, productID string)

	mu      sync.Mutex
	catalog map[string]entity.ProductInfo
	ordered []entity.ProductInfo
}

// NewFlowCoordinator creates a coordinator feeding the given engine.
func NewFlowCoordinator(engine *ReconciliationEngine, onFailure func(code int, productID string), logger *zap.Logger) *FlowCoordinator {
	return &FlowCoordinator{
		engine:    engine,
		logger:    logger,
		onFailure: onFailure,
		catalog:   make(map[string]entity.ProductInfo),
	}
}

// Sink builds the event sink to register with a provider adapter.
func (f *FlowCoordinator) Sink(ctx context.Context) provider.Sink {
	return provider.Sink{
		CatalogLoaded: func(products []entity.ProductInfo) {
			f.mu.Lock()
			f.ordered = products
			for _, p := range products {
				f.catalog[p.ID] = p
			}
			f.mu.Unlock()
			f.logger.Info("catalog loaded", zap.Int("products", len(products)))
		},
		PurchasesUpdated: func(records []entity.PurchaseRecord) {
			f.observe(ctx, records)
		},
		PurchasesQueried: func(records []entity.PurchaseRecord) {
			// Owned purchases surface here after a restore or startup query.
			// They may still be unconsumed; run them through the same path.
			f.observe(ctx, records)
		},
		PurchaseFailed: func(code int, productID string) {
			f.logger.Warn("purchase failed",
				zap.Int("code", code),
				zap.String("product_id", productID),
			)
			if f.onFailure != nil {
				f.onFailure(code, productID)
			}
		},
		Consumed: func(record entity.PurchaseRecord) {
			f.logger.Info("purchase consumed", zap.String("transaction_id", record.TransactionID))
		},
		Acknowledged: func(record entity.PurchaseRecord) {
			f.logger.Info("purchase acknowledged", zap.String("transaction_id", record.TransactionID))
		},
		RecurringChanged: func(record entity.PurchaseRecord, action provider.RecurringAction) {
			f.logger.Info("recurring state changed",
				zap.String("transaction_id", record.TransactionID),
				zap.String("action", string(action)),
			)
		},
	}
}

// Product returns the cached catalog snapshot for a product id.
func (f *FlowCoordinator) Product(id string) (entity.ProductInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.catalog[id]
	return p, ok
}

// Catalog returns the last delivered catalog in display order.
func (f *FlowCoordinator) Catalog() []entity.ProductInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.ProductInfo, len(f.ordered))
	copy(out, f.ordered)
	return out
}

func (f *FlowCoordinator) observe(ctx context.Context, records []entity.PurchaseRecord) {
	// Ledger insertion order follows delivery order within a batch.
	for _, record := range records {
		product, ok := f.Product(record.ProductID)
		if !ok {
			// Snapshot missing when the purchase arrives before the catalog;
			// record what we know, the id is what verification needs.
			product = entity.ProductInfo{ID: record.ProductID, Type: record.Type}
		}
		if err := f.engine.ObservePurchase(ctx, record, product); err != nil {
			f.logger.Error("failed to record pending purchase",
				zap.String("transaction_id", record.TransactionID),
				zap.Error(err),
			)
			continue
		}
		if err := f.engine.Finalize(ctx, record); err != nil {
			// Finalization retries on the next owned-purchase query; the
			// order stays pending either way.
			continue
		}
	}
}
