package storefront

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// fakeGenericCaller records outbound SDK calls.
type fakeGenericCaller struct {
	initialized bool
	initErr     error
	confirmErr  error

	initProducts []string
	purchases    []string
	restores     int
	confirmed    []service.GenericStorePurchase
}

func (f *fakeGenericCaller) Initialize(_ context.Context, productIDs []string) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initProducts = productIDs
	f.initialized = true
	return nil
}

func (f *fakeGenericCaller) IsInitialized() bool { return f.initialized }

func (f *fakeGenericCaller) InitiatePurchase(_ context.Context, productID string) error {
	f.purchases = append(f.purchases, productID)
	return nil
}

func (f *fakeGenericCaller) RestorePurchases(context.Context) error {
	f.restores++
	return nil
}

func (f *fakeGenericCaller) ConfirmPendingPurchase(_ context.Context, p service.GenericStorePurchase) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, p)
	return nil
}

func TestGenericStoreConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes with the configured product set", func(t *testing.T) {
		caller := &fakeGenericCaller{}
		s := NewGenericStore(caller, provider.Sink{}, []string{"pay_50dia", "pay_260dia"}, zap.NewNop())

		require.NoError(t, s.Connect(ctx))
		assert.Equal(t, []string{"pay_50dia", "pay_260dia"}, caller.initProducts)
		assert.True(t, s.IsServiceAvailable())
	})

	t.Run("initialization failure wraps provider unavailable", func(t *testing.T) {
		caller := &fakeGenericCaller{initErr: errors.New("no billing service")}
		s := NewGenericStore(caller, provider.Sink{}, nil, zap.NewNop())

		assert.ErrorIs(t, s.Connect(ctx), domainErrors.ErrProviderUnavailable)
	})

	t.Run("launch before initialization is rejected", func(t *testing.T) {
		s := NewGenericStore(&fakeGenericCaller{}, provider.Sink{}, nil, zap.NewNop())
		assert.ErrorIs(t, s.LaunchPurchase(ctx, "pay_50dia", entity.ProductConsumable), domainErrors.ErrProviderUnavailable)
	})
}

func TestGenericStoreEvents(t *testing.T) {
	t.Run("initialization delivers a sorted catalog", func(t *testing.T) {
		rec := &recordingSink{}
		s := NewGenericStore(&fakeGenericCaller{}, rec.sink(), nil, zap.NewNop())

		s.OnInitialized([]GenericStoreProduct{
			{ID: "pay_480dia", Price: "480"},
			{ID: "pay_50dia", Price: "50"},
		})

		require.Len(t, rec.catalogs, 1)
		assert.Equal(t, "pay_50dia", rec.catalogs[0][0].ID)
		assert.Equal(t, "pay_480dia", rec.catalogs[0][1].ID)
	})

	t.Run("completed purchase becomes a one-record update", func(t *testing.T) {
		rec := &recordingSink{}
		s := NewGenericStore(&fakeGenericCaller{}, rec.sink(), nil, zap.NewNop())

		s.OnPurchaseCompleted(service.GenericStorePurchase{
			ID:            "pay_50dia",
			TransactionID: "GPA.1",
			Receipt:       "receipt-1",
			Type:          entity.ProductConsumable,
		})

		require.Len(t, rec.updated, 1)
		require.Len(t, rec.updated[0], 1)
		assert.Equal(t, "GPA.1", rec.updated[0][0].TransactionID)
		assert.Equal(t, "receipt-1", rec.updated[0][0].ReceiptToken)
	})

	t.Run("restore delivers owned purchases as a queried batch", func(t *testing.T) {
		rec := &recordingSink{}
		s := NewGenericStore(&fakeGenericCaller{}, rec.sink(), nil, zap.NewNop())

		s.OnPurchasesRestored([]service.GenericStorePurchase{
			{ID: "a", TransactionID: "T1"},
			{ID: "b", TransactionID: "T2"},
		})

		require.Len(t, rec.queried, 1)
		assert.Len(t, rec.queried[0], 2)
	})

	t.Run("failure code is forwarded", func(t *testing.T) {
		rec := &recordingSink{}
		s := NewGenericStore(&fakeGenericCaller{}, rec.sink(), nil, zap.NewNop())

		s.OnPurchaseFailed(2, "pay_50dia")
		assert.Equal(t, []int{2}, rec.failures)
	})
}

func TestGenericStoreConfirm(t *testing.T) {
	ctx := context.Background()

	record := func(productType entity.ProductType) entity.PurchaseRecord {
		return entity.PurchaseRecord{
			ProductID:     "p",
			TransactionID: "T1",
			ReceiptToken:  "r",
			Type:          productType,
		}
	}

	t.Run("consume confirms and fires the consumed event", func(t *testing.T) {
		rec := &recordingSink{}
		caller := &fakeGenericCaller{}
		s := NewGenericStore(caller, rec.sink(), nil, zap.NewNop())

		require.NoError(t, s.Consume(ctx, record(entity.ProductConsumable)))
		assert.Len(t, caller.confirmed, 1)
		assert.Len(t, rec.consumed, 1)
		assert.Empty(t, rec.acked)
	})

	t.Run("acknowledge fires the acknowledged event for durables", func(t *testing.T) {
		rec := &recordingSink{}
		s := NewGenericStore(&fakeGenericCaller{}, rec.sink(), nil, zap.NewNop())

		require.NoError(t, s.Acknowledge(ctx, record(entity.ProductNonConsumable)))
		assert.Len(t, rec.acked, 1)
		assert.Empty(t, rec.consumed)
	})

	t.Run("confirmation failure emits no event", func(t *testing.T) {
		rec := &recordingSink{}
		caller := &fakeGenericCaller{confirmErr: errors.New("store rejected")}
		s := NewGenericStore(caller, rec.sink(), nil, zap.NewNop())

		assert.Error(t, s.Consume(ctx, record(entity.ProductConsumable)))
		assert.Empty(t, rec.consumed)
	})

	t.Run("manage recurring is unsupported", func(t *testing.T) {
		s := NewGenericStore(&fakeGenericCaller{}, provider.Sink{}, nil, zap.NewNop())
		assert.Error(t, s.ManageRecurring(ctx, record(entity.ProductSubscription), provider.RecurringCancel))
	})
}

func TestDevCaller(t *testing.T) {
	ctx := context.Background()

	t.Run("drives the generic adapter end to end", func(t *testing.T) {
		rec := &recordingSink{}
		dev := NewDevCaller([]GenericStoreProduct{
			{ID: "pay_50dia", Price: "50", Type: entity.ProductConsumable},
		}, zap.NewNop())
		s := NewGenericStore(dev, rec.sink(), []string{"pay_50dia"}, zap.NewNop())
		dev.AttachGeneric(s)

		require.NoError(t, s.Connect(ctx))
		require.Len(t, rec.catalogs, 1)

		require.NoError(t, s.LaunchPurchase(ctx, "pay_50dia", entity.ProductConsumable))
		require.Len(t, rec.updated, 1)
		purchase := rec.updated[0][0]
		assert.Equal(t, "pay_50dia", purchase.ProductID)
		assert.NotEmpty(t, purchase.TransactionID)
		assert.NotEmpty(t, purchase.ReceiptToken)

		// The purchase stays owned until confirmed, so a restore resurfaces it.
		require.NoError(t, s.QueryOwnedPurchases(ctx, entity.ProductConsumable))
		require.Len(t, rec.queried, 1)
		require.Len(t, rec.queried[0], 1)

		require.NoError(t, s.Consume(ctx, purchase))
		require.NoError(t, s.QueryOwnedPurchases(ctx, entity.ProductConsumable))
		assert.Empty(t, rec.queried[1])
	})

	t.Run("drives the onestore adapter end to end", func(t *testing.T) {
		rec := &recordingSink{}
		dev := NewDevCaller([]GenericStoreProduct{
			{ID: "pay_50dia", Price: "50", Type: entity.ProductConsumable},
			{ID: "pay_260dia", Price: "260", Type: entity.ProductConsumable},
		}, zap.NewNop())
		s := NewOneStore(dev, rec.sink(), "pk", zap.NewNop())
		dev.AttachOneStore(s)

		require.NoError(t, s.Connect(ctx))
		require.NoError(t, s.QueryCatalog(ctx, []string{"pay_50dia", "pay_260dia"}))
		require.Len(t, rec.catalogs, 1)
		assert.Len(t, rec.catalogs[0], 2)

		require.NoError(t, s.LaunchPurchase(ctx, "pay_260dia", entity.ProductConsumable))
		require.Len(t, rec.updated, 1)
		assert.Equal(t, "pay_260dia", rec.updated[0][0].ProductID)
	})
}
