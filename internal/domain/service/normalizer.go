package service

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
)

// Normalizer turns provider-native catalog and purchase shapes into the
// canonical entities the engine works with, and orders catalogs
// deterministically for display.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// SortCatalog returns the products ordered ascending by parsed price, ties
// broken by original provider order. Entries whose price cannot be parsed
// are dropped from the result rather than aborting the batch; each drop is
// logged with ErrMalformedCatalogEntry.
func (n *Normalizer) SortCatalog(products []entity.ProductInfo) []entity.ProductInfo {
	type priced struct {
		product entity.ProductInfo
		price   decimal.Decimal
	}

	valid := make([]priced, 0, len(products))
	for _, p := range products {
		price, err := p.ParsedPrice()
		if err != nil {
			n.logger.Warn("dropping catalog entry",
				zap.String("product_id", p.ID),
				zap.String("price", p.Price),
				zap.Error(domainErrors.ErrMalformedCatalogEntry),
			)
			continue
		}
		valid = append(valid, priced{product: p, price: price})
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].price.LessThan(valid[j].price)
	})

	sorted := make([]entity.ProductInfo, len(valid))
	for i, v := range valid {
		sorted[i] = v.product
	}
	return sorted
}

// OneStorePurchase is the Korean-market store's native purchase shape.
type OneStorePurchase struct {
	ProductID      string
	PurchaseID     string
	PurchaseToken  string
	ProductType    entity.ProductType
	RecurringState entity.RecurringState
}

// FromOneStore maps a OneStore purchase to the canonical record. PurchaseID
// and PurchaseToken become TransactionID and ReceiptToken verbatim; neither
// is re-encoded or truncated, the backend needs them exactly as issued.
func (n *Normalizer) FromOneStore(p OneStorePurchase) entity.PurchaseRecord {
	recurring := p.RecurringState
	if recurring == "" {
		recurring = entity.RecurringNone
	}
	return entity.PurchaseRecord{
		ProductID:      p.ProductID,
		TransactionID:  p.PurchaseID,
		ReceiptToken:   p.PurchaseToken,
		RecurringState: recurring,
		Type:           p.ProductType,
	}
}

// GenericStorePurchase is the generic storefront's native purchase shape.
type GenericStorePurchase struct {
	ID            string
	TransactionID string
	Receipt       string
	Type          entity.ProductType
}

// FromGenericStore maps a generic storefront purchase to the canonical
// record, preserving transaction id and receipt verbatim.
func (n *Normalizer) FromGenericStore(p GenericStorePurchase) entity.PurchaseRecord {
	return entity.PurchaseRecord{
		ProductID:      p.ID,
		TransactionID:  p.TransactionID,
		ReceiptToken:   p.Receipt,
		RecurringState: entity.RecurringNone,
		Type:           p.Type,
	}
}
