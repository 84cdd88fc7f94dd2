package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
)

func TestSortCatalog(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	t.Run("orders products cheapest first", func(t *testing.T) {
		products := []entity.ProductInfo{
			{ID: "pay_480dia", Price: "480"},
			{ID: "pay_50dia", Price: "50"},
			{ID: "pay_1980dia", Price: "1980"},
			{ID: "pay_260dia", Price: "260"},
		}

		sorted := n.SortCatalog(products)

		ids := make([]string, len(sorted))
		for i, p := range sorted {
			ids[i] = p.ID
		}
		assert.Equal(t, []string{"pay_50dia", "pay_260dia", "pay_480dia", "pay_1980dia"}, ids)
	})

	t.Run("drops entries with unparseable prices", func(t *testing.T) {
		products := []entity.ProductInfo{
			{ID: "good", Price: "100"},
			{ID: "bad", Price: "₩1,000"},
			{ID: "also_good", Price: "50"},
		}

		sorted := n.SortCatalog(products)

		assert.Len(t, sorted, 2)
		assert.Equal(t, "also_good", sorted[0].ID)
		assert.Equal(t, "good", sorted[1].ID)
	})

	t.Run("price ties keep provider order", func(t *testing.T) {
		products := []entity.ProductInfo{
			{ID: "first", Price: "100"},
			{ID: "second", Price: "100"},
		}

		sorted := n.SortCatalog(products)

		assert.Equal(t, "first", sorted[0].ID)
		assert.Equal(t, "second", sorted[1].ID)
	})

	t.Run("decimal prices sort numerically", func(t *testing.T) {
		products := []entity.ProductInfo{
			{ID: "ten", Price: "10.00"},
			{ID: "nine_fifty", Price: "9.50"},
		}

		sorted := n.SortCatalog(products)

		assert.Equal(t, "nine_fifty", sorted[0].ID)
	})

	t.Run("empty catalog stays empty", func(t *testing.T) {
		assert.Empty(t, n.SortCatalog(nil))
	})
}

func TestFromOneStore(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	t.Run("maps identifiers verbatim", func(t *testing.T) {
		record := n.FromOneStore(OneStorePurchase{
			ProductID:     "pay_50dia",
			PurchaseID:    "ONESTORE_TX_00017",
			PurchaseToken: "tok+/=opaque.bytes",
			ProductType:   entity.ProductConsumable,
		})

		assert.Equal(t, "pay_50dia", record.ProductID)
		assert.Equal(t, "ONESTORE_TX_00017", record.TransactionID)
		assert.Equal(t, "tok+/=opaque.bytes", record.ReceiptToken)
		assert.Equal(t, entity.RecurringNone, record.RecurringState)
		assert.Equal(t, entity.ProductConsumable, record.Type)
	})

	t.Run("keeps an explicit recurring state", func(t *testing.T) {
		record := n.FromOneStore(OneStorePurchase{
			PurchaseID:     "tx",
			ProductType:    entity.ProductSubscription,
			RecurringState: entity.RecurringActive,
		})

		assert.Equal(t, entity.RecurringActive, record.RecurringState)
	})
}

func TestFromGenericStore(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	record := n.FromGenericStore(GenericStorePurchase{
		ID:            "premium_pass",
		TransactionID: "GPA.1234-5678",
		Receipt:       `{"json":"payload"}`,
		Type:          entity.ProductNonConsumable,
	})

	assert.Equal(t, "premium_pass", record.ProductID)
	assert.Equal(t, "GPA.1234-5678", record.TransactionID)
	assert.Equal(t, `{"json":"payload"}`, record.ReceiptToken)
	assert.Equal(t, entity.ProductNonConsumable, record.Type)
}
