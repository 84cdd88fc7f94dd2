package storefront

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// GenericCaller is the outbound surface of the generic storefront SDK.
// Unlike the Korean-market store, this SDK delivers results as complete
// arrays, so no batch assembly is needed on the inbound side.
type GenericCaller interface {
	Initialize(ctx context.Context, productIDs []string) error
	IsInitialized() bool
	InitiatePurchase(ctx context.Context, productID string) error
	RestorePurchases(ctx context.Context) error
	ConfirmPendingPurchase(ctx context.Context, purchase service.GenericStorePurchase) error
}

// GenericStoreProduct is the SDK's native catalog shape.
type GenericStoreProduct struct {
	ID    string
	Title string
	Price string
	Type  entity.ProductType
}

// GenericStore adapts the generic storefront SDK to the provider contract.
type GenericStore struct {
	caller GenericCaller
	sink   provider.Sink
	norm   *service.Normalizer
	logger *zap.Logger

	productIDs []string
}

// NewGenericStore creates the adapter for the given product set.
func NewGenericStore(caller GenericCaller, sink provider.Sink, productIDs []string, logger *zap.Logger) *GenericStore {
	return &GenericStore{
		caller:     caller,
		sink:       sink,
		norm:       service.NewNormalizer(logger),
		logger:     logger,
		productIDs: productIDs,
	}
}

// Connect initializes the purchasing module. Initialization keeps retrying
// in the background inside the SDK; a hard error here means configuration is
// broken, not that the network is down.
func (s *GenericStore) Connect(ctx context.Context) error {
	if s.caller.IsInitialized() {
		return nil
	}
	if err := s.caller.Initialize(ctx, s.productIDs); err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	}
	return nil
}

func (s *GenericStore) IsServiceAvailable() bool {
	return s.caller.IsInitialized()
}

// QueryCatalog is satisfied from the initialization response; the SDK has no
// separate catalog query. The full catalog arrives via OnInitialized.
func (s *GenericStore) QueryCatalog(ctx context.Context, _ []string) error {
	return s.Connect(ctx)
}

func (s *GenericStore) QueryOwnedPurchases(ctx context.Context, _ entity.ProductType) error {
	return s.caller.RestorePurchases(ctx)
}

func (s *GenericStore) LaunchPurchase(ctx context.Context, productID string, _ entity.ProductType) error {
	if !s.caller.IsInitialized() {
		return domainErrors.ErrProviderUnavailable
	}
	return s.caller.InitiatePurchase(ctx, productID)
}

// Consume confirms a pending consumable with the store. The generic SDK has
// one confirmation call for every product type.
func (s *GenericStore) Consume(ctx context.Context, record entity.PurchaseRecord) error {
	return s.confirm(ctx, record)
}

func (s *GenericStore) Acknowledge(ctx context.Context, record entity.PurchaseRecord) error {
	return s.confirm(ctx, record)
}

// ManageRecurring is not supported by the generic SDK; subscription state is
// managed in the platform store UI.
func (s *GenericStore) ManageRecurring(_ context.Context, record entity.PurchaseRecord, action provider.RecurringAction) error {
	return fmt.Errorf("%w: manage recurring (%s) for %s", domainErrors.ErrProductUnavailable, action, record.ProductID)
}

// Listener surface, invoked by the SDK glue.

// OnInitialized receives the complete catalog once the SDK is ready.
func (s *GenericStore) OnInitialized(products []GenericStoreProduct) {
	infos := make([]entity.ProductInfo, 0, len(products))
	for _, p := range products {
		infos = append(infos, entity.ProductInfo{
			ID:    p.ID,
			Price: p.Price,
			Title: p.Title,
			Type:  p.Type,
		})
	}
	sorted := s.norm.SortCatalog(infos)
	if s.sink.CatalogLoaded != nil {
		s.sink.CatalogLoaded(sorted)
	}
}

// OnPurchaseCompleted receives a successful purchase, from a live flow or a
// restore.
func (s *GenericStore) OnPurchaseCompleted(purchase service.GenericStorePurchase) {
	record := s.norm.FromGenericStore(purchase)
	if s.sink.PurchasesUpdated != nil {
		s.sink.PurchasesUpdated([]entity.PurchaseRecord{record})
	}
}

// OnPurchasesRestored receives the owned purchases after a restore sweep.
func (s *GenericStore) OnPurchasesRestored(purchases []service.GenericStorePurchase) {
	records := make([]entity.PurchaseRecord, 0, len(purchases))
	for _, p := range purchases {
		records = append(records, s.norm.FromGenericStore(p))
	}
	if s.sink.PurchasesQueried != nil {
		s.sink.PurchasesQueried(records)
	}
}

// OnPurchaseFailed receives a failed purchase attempt.
func (s *GenericStore) OnPurchaseFailed(code int, productID string) {
	s.logger.Warn("purchase failed",
		zap.Int("code", code),
		zap.String("product_id", productID),
	)
	if s.sink.PurchaseFailed != nil {
		s.sink.PurchaseFailed(code, productID)
	}
}

func (s *GenericStore) confirm(ctx context.Context, record entity.PurchaseRecord) error {
	err := s.caller.ConfirmPendingPurchase(ctx, service.GenericStorePurchase{
		ID:            record.ProductID,
		TransactionID: record.TransactionID,
		Receipt:       record.ReceiptToken,
		Type:          record.Type,
	})
	if err != nil {
		return err
	}
	if record.Type == entity.ProductConsumable {
		if s.sink.Consumed != nil {
			s.sink.Consumed(record)
		}
	} else if s.sink.Acknowledged != nil {
		s.sink.Acknowledged(record)
	}
	return nil
}
