package storefront

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// OneStore native product type strings.
const (
	OneStoreTypeInApp = "inapp"
	OneStoreTypeAuto  = "auto"
	OneStoreTypeAll   = "all"
)

// OneStore native response codes the adapter must surface upward instead of
// resolving itself.
const (
	oneStoreResultNeedLogin  = 10
	oneStoreResultNeedUpdate = 11
)

// OneStoreCaller is the outbound half of the Korean-market store SDK: every
// call is fire-and-forget, results arrive through the adapter's listener
// methods. This is the seam test doubles replace.
type OneStoreCaller interface {
	StartConnection(ctx context.Context, publicKey string) error
	IsServiceAvailable() bool
	QueryProductDetails(ctx context.Context, productIDs []string, productType string) error
	QueryPurchases(ctx context.Context, productType string) error
	LaunchPurchaseFlow(ctx context.Context, productID, productType string) error
	Consume(ctx context.Context, purchase service.OneStorePurchase) error
	Acknowledge(ctx context.Context, purchase service.OneStorePurchase) error
	ManageRecurring(ctx context.Context, purchase service.OneStorePurchase, action string) error
}

// OneStoreProductDetail is the store's native catalog shape.
type OneStoreProductDetail struct {
	ProductID string
	Title     string
	Price     string // minor-unit integer string
	Type      entity.ProductType
}

// OneStore adapts the Korean-market storefront SDK to the provider contract.
// The SDK delivers query results as "item i of n" callback chunks; the
// adapter assembles them with batch collectors, one per stream, and emits
// completed batches through its sink.
type OneStore struct {
	caller OneStoreCaller
	sink   provider.Sink
	norm   *service.Normalizer
	logger *zap.Logger

	publicKey string

	catalog *service.BatchCollector[OneStoreProductDetail]
	updated *service.BatchCollector[service.OneStorePurchase]
	queried *service.BatchCollector[service.OneStorePurchase]
}

// NewOneStore creates the adapter. The sink is owned by this instance alone.
func NewOneStore(caller OneStoreCaller, sink provider.Sink, publicKey string, logger *zap.Logger) *OneStore {
	s := &OneStore{
		caller:    caller,
		sink:      sink,
		norm:      service.NewNormalizer(logger),
		logger:    logger,
		publicKey: publicKey,
	}
	s.catalog = service.NewBatchCollector(s.emitCatalog, logger)
	s.updated = service.NewBatchCollector(s.emitBatch(func(records []entity.PurchaseRecord) {
		if s.sink.PurchasesUpdated != nil {
			s.sink.PurchasesUpdated(records)
		}
	}), logger)
	s.queried = service.NewBatchCollector(s.emitBatch(func(records []entity.PurchaseRecord) {
		if s.sink.PurchasesQueried != nil {
			s.sink.PurchasesQueried(records)
		}
	}), logger)
	return s
}

// Connect establishes the payment-module connection. Need-login and
// need-update results become FlowErrors for the embedding application to
// resolve.
func (s *OneStore) Connect(ctx context.Context) error {
	if s.caller.IsServiceAvailable() {
		s.logger.Debug("already connected to the payment module")
		return nil
	}
	if err := s.caller.StartConnection(ctx, s.publicKey); err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	}
	return nil
}

func (s *OneStore) IsServiceAvailable() bool {
	return s.caller.IsServiceAvailable()
}

func (s *OneStore) QueryCatalog(ctx context.Context, productIDs []string) error {
	return s.caller.QueryProductDetails(ctx, productIDs, OneStoreTypeAll)
}

func (s *OneStore) QueryOwnedPurchases(ctx context.Context, productType entity.ProductType) error {
	return s.caller.QueryPurchases(ctx, nativeType(productType))
}

func (s *OneStore) LaunchPurchase(ctx context.Context, productID string, productType entity.ProductType) error {
	return s.caller.LaunchPurchaseFlow(ctx, productID, nativeType(productType))
}

func (s *OneStore) Consume(ctx context.Context, record entity.PurchaseRecord) error {
	return s.caller.Consume(ctx, toNative(record))
}

func (s *OneStore) Acknowledge(ctx context.Context, record entity.PurchaseRecord) error {
	return s.caller.Acknowledge(ctx, toNative(record))
}

func (s *OneStore) ManageRecurring(ctx context.Context, record entity.PurchaseRecord, action provider.RecurringAction) error {
	return s.caller.ManageRecurring(ctx, toNative(record), string(action))
}

// Listener surface: the SDK glue invokes these as results arrive. Callbacks
// for one request are serialized by the SDK.

// OnProductDetail receives catalog chunk position of total.
func (s *OneStore) OnProductDetail(detail *OneStoreProductDetail, position, total int) {
	s.catalog.OnItem(detail, position, total)
}

// OnPurchaseUpdated receives a launch-purchase result chunk. The signature
// accompanying each chunk is validated SDK-side; entitlement verification
// goes through the backend receipt check, so it stops at this seam.
func (s *OneStore) OnPurchaseUpdated(purchase *service.OneStorePurchase, _ string, position, total int) {
	s.updated.OnItem(purchase, position, total)
}

// OnPurchasesQueried receives an owned-purchase query result chunk.
func (s *OneStore) OnPurchasesQueried(purchase *service.OneStorePurchase, _ string, position, total int) {
	s.queried.OnItem(purchase, position, total)
}

// OnPurchaseFailed receives a failed purchase result. Codes that demand an
// external flow are named in the log; the raw code reaches the sink either
// way so the failure observer sees every outcome.
func (s *OneStore) OnPurchaseFailed(code int, productID string) {
	var flowErr *domainErrors.FlowError
	if err := ClassifyResult(code); errors.As(err, &flowErr) {
		s.logger.Warn("purchase interrupted, external flow required",
			zap.String("flow", flowErr.Flow),
			zap.String("product_id", productID),
		)
	} else if err != nil {
		s.logger.Warn("purchase failed",
			zap.Int("code", code),
			zap.String("product_id", productID),
		)
	}
	if s.sink.PurchaseFailed != nil {
		s.sink.PurchaseFailed(code, productID)
	}
}

// OnConsumed receives a consume confirmation.
func (s *OneStore) OnConsumed(purchase service.OneStorePurchase) {
	if s.sink.Consumed != nil {
		s.sink.Consumed(s.norm.FromOneStore(purchase))
	}
}

// OnAcknowledged receives an acknowledge confirmation.
func (s *OneStore) OnAcknowledged(purchase service.OneStorePurchase) {
	if s.sink.Acknowledged != nil {
		s.sink.Acknowledged(s.norm.FromOneStore(purchase))
	}
}

// OnRecurringChanged receives a subscription state-change confirmation.
func (s *OneStore) OnRecurringChanged(purchase service.OneStorePurchase, action string) {
	if s.sink.RecurringChanged != nil {
		s.sink.RecurringChanged(s.norm.FromOneStore(purchase), provider.RecurringAction(action))
	}
}

// ClassifyResult maps a native response code to the adapter's error
// taxonomy. Codes needing an external flow come back as FlowErrors.
func ClassifyResult(code int) error {
	switch code {
	case 0:
		return nil
	case oneStoreResultNeedLogin:
		return &domainErrors.FlowError{Flow: "login", Err: domainErrors.ErrNeedLogin}
	case oneStoreResultNeedUpdate:
		return &domainErrors.FlowError{Flow: "update", Err: domainErrors.ErrNeedUpdate}
	default:
		return fmt.Errorf("%w: code %d", domainErrors.ErrProviderUnavailable, code)
	}
}

func (s *OneStore) emitCatalog(details []OneStoreProductDetail) {
	products := make([]entity.ProductInfo, 0, len(details))
	for _, d := range details {
		products = append(products, entity.ProductInfo{
			ID:    d.ProductID,
			Price: d.Price,
			Title: d.Title,
			Type:  d.Type,
		})
	}
	sorted := s.norm.SortCatalog(products)
	if s.sink.CatalogLoaded != nil {
		s.sink.CatalogLoaded(sorted)
	}
}

func (s *OneStore) emitBatch(deliver func([]entity.PurchaseRecord)) func([]service.OneStorePurchase) {
	return func(purchases []service.OneStorePurchase) {
		records := make([]entity.PurchaseRecord, 0, len(purchases))
		for _, p := range purchases {
			records = append(records, s.norm.FromOneStore(p))
		}
		deliver(records)
	}
}

func toNative(record entity.PurchaseRecord) service.OneStorePurchase {
	return service.OneStorePurchase{
		ProductID:      record.ProductID,
		PurchaseID:     record.TransactionID,
		PurchaseToken:  record.ReceiptToken,
		ProductType:    record.Type,
		RecurringState: record.RecurringState,
	}
}

func nativeType(t entity.ProductType) string {
	if t == entity.ProductSubscription {
		return OneStoreTypeAuto
	}
	return OneStoreTypeInApp
}
