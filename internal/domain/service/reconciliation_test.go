package service

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
)

// fakeLedger is an in-memory PendingOrderLedger preserving insertion order.
type fakeLedger struct {
	orders []entity.PendingOrder

	addErr    error
	removeErr error
}

func (l *fakeLedger) Add(_ context.Context, order entity.PendingOrder) (bool, error) {
	if l.addErr != nil {
		return false, l.addErr
	}
	for _, o := range l.orders {
		if o.TransactionID == order.TransactionID {
			return false, nil
		}
	}
	l.orders = append(l.orders, order)
	return true, nil
}

func (l *fakeLedger) Remove(_ context.Context, transactionID string) (bool, error) {
	if l.removeErr != nil {
		return false, l.removeErr
	}
	for i, o := range l.orders {
		if o.TransactionID == transactionID {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) All() iter.Seq[entity.PendingOrder] {
	snapshot := make([]entity.PendingOrder, len(l.orders))
	copy(snapshot, l.orders)
	return func(yield func(entity.PendingOrder) bool) {
		for _, o := range snapshot {
			if !yield(o) {
				return
			}
		}
	}
}

func (l *fakeLedger) Count() int { return len(l.orders) }

// fakeVerifier returns scripted codes per receipt, 408 when unscripted.
type fakeVerifier struct {
	codes map[string]int
	calls []string
}

func (v *fakeVerifier) VerifyReceipt(_ context.Context, _, receipt string) int {
	v.calls = append(v.calls, receipt)
	if code, ok := v.codes[receipt]; ok {
		return code
	}
	return domainErrors.CodeTimeout
}

// fakeAdapter records consume and acknowledge calls.
type fakeAdapter struct {
	consumed     []string
	acknowledged []string
	finalizeErr  error
}

func (a *fakeAdapter) Connect(context.Context) error                { return nil }
func (a *fakeAdapter) IsServiceAvailable() bool                     { return true }
func (a *fakeAdapter) QueryCatalog(context.Context, []string) error { return nil }

func (a *fakeAdapter) QueryOwnedPurchases(context.Context, entity.ProductType) error {
	return nil
}

func (a *fakeAdapter) LaunchPurchase(context.Context, string, entity.ProductType) error {
	return nil
}

func (a *fakeAdapter) Consume(_ context.Context, record entity.PurchaseRecord) error {
	if a.finalizeErr != nil {
		return a.finalizeErr
	}
	a.consumed = append(a.consumed, record.TransactionID)
	return nil
}

func (a *fakeAdapter) Acknowledge(_ context.Context, record entity.PurchaseRecord) error {
	if a.finalizeErr != nil {
		return a.finalizeErr
	}
	a.acknowledged = append(a.acknowledged, record.TransactionID)
	return nil
}

func (a *fakeAdapter) ManageRecurring(context.Context, entity.PurchaseRecord, provider.RecurringAction) error {
	return nil
}

func newTestEngine(ledger *fakeLedger, verifier *fakeVerifier, adapter *fakeAdapter) *ReconciliationEngine {
	e := NewReconciliationEngine(ledger, verifier, zap.NewNop())
	e.BindStore(adapter)
	return e
}

func testRecord(id, tx string, productType entity.ProductType) entity.PurchaseRecord {
	return entity.PurchaseRecord{
		ProductID:      id,
		TransactionID:  tx,
		ReceiptToken:   "receipt-" + tx,
		RecurringState: entity.RecurringNone,
		Type:           productType,
	}
}

func TestObservePurchase(t *testing.T) {
	t.Run("records the order as pending", func(t *testing.T) {
		ledger := &fakeLedger{}
		e := newTestEngine(ledger, &fakeVerifier{}, &fakeAdapter{})

		record := testRecord("pay_50dia", "T1", entity.ProductConsumable)
		err := e.ObservePurchase(context.Background(), record, entity.ProductInfo{ID: "pay_50dia", Price: "50"})

		require.NoError(t, err)
		assert.Equal(t, 1, e.PendingCount())

		state, ok := e.State("T1")
		assert.True(t, ok)
		assert.Equal(t, StateLedgerRecorded, state)
	})

	t.Run("redelivery of the same transaction is harmless", func(t *testing.T) {
		ledger := &fakeLedger{}
		e := newTestEngine(ledger, &fakeVerifier{}, &fakeAdapter{})

		record := testRecord("pay_50dia", "T1", entity.ProductConsumable)
		product := entity.ProductInfo{ID: "pay_50dia"}

		require.NoError(t, e.ObservePurchase(context.Background(), record, product))
		require.NoError(t, e.ObservePurchase(context.Background(), record, product))
		assert.Equal(t, 1, e.PendingCount())
	})

	t.Run("ledger failure surfaces", func(t *testing.T) {
		ledger := &fakeLedger{addErr: errors.New("disk full")}
		e := newTestEngine(ledger, &fakeVerifier{}, &fakeAdapter{})

		err := e.ObservePurchase(context.Background(), testRecord("p", "T1", entity.ProductConsumable), entity.ProductInfo{ID: "p"})
		assert.Error(t, err)
	})
}

func TestFinalize(t *testing.T) {
	t.Run("consumables are consumed", func(t *testing.T) {
		adapter := &fakeAdapter{}
		e := newTestEngine(&fakeLedger{}, &fakeVerifier{}, adapter)

		err := e.Finalize(context.Background(), testRecord("pay_50dia", "T1", entity.ProductConsumable))

		require.NoError(t, err)
		assert.Equal(t, []string{"T1"}, adapter.consumed)
		assert.Empty(t, adapter.acknowledged)
	})

	t.Run("non-consumables and subscriptions are acknowledged", func(t *testing.T) {
		adapter := &fakeAdapter{}
		e := newTestEngine(&fakeLedger{}, &fakeVerifier{}, adapter)

		require.NoError(t, e.Finalize(context.Background(), testRecord("pass", "T2", entity.ProductNonConsumable)))
		require.NoError(t, e.Finalize(context.Background(), testRecord("sub", "T3", entity.ProductSubscription)))

		assert.Equal(t, []string{"T2", "T3"}, adapter.acknowledged)
		assert.Empty(t, adapter.consumed)
	})

	t.Run("finalization never touches the ledger", func(t *testing.T) {
		ledger := &fakeLedger{}
		adapter := &fakeAdapter{}
		e := newTestEngine(ledger, &fakeVerifier{}, adapter)

		record := testRecord("pay_50dia", "T1", entity.ProductConsumable)
		require.NoError(t, e.ObservePurchase(context.Background(), record, entity.ProductInfo{ID: "pay_50dia"}))
		require.NoError(t, e.Finalize(context.Background(), record))

		assert.Equal(t, 1, e.PendingCount(), "order must stay pending until the backend confirms it")
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	addPending := func(e *ReconciliationEngine, tx string) entity.PendingOrder {
		record := testRecord("pay_50dia", tx, entity.ProductConsumable)
		require.NoError(t, e.ObservePurchase(ctx, record, entity.ProductInfo{ID: "pay_50dia"}))
		for order := range e.ledger.All() {
			if order.TransactionID == tx {
				return order
			}
		}
		t.Fatalf("order %s not in ledger", tx)
		return entity.PendingOrder{}
	}

	t.Run("success clears the order and reports 200", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 0}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		order := addPending(e, "T1")

		code := e.Verify(ctx, "user-1", order)

		assert.Equal(t, domainErrors.CodeOK, code)
		assert.Equal(t, 0, e.PendingCount())

		state, _ := e.State("T1")
		assert.Equal(t, StateResolved, state)
	})

	t.Run("duplicate success reports stale", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 0}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		order := addPending(e, "T1")

		assert.Equal(t, domainErrors.CodeOK, e.Verify(ctx, "user-1", order))
		assert.Equal(t, domainErrors.CodeStale, e.Verify(ctx, "user-1", order))
	})

	t.Run("timeout retains the order", func(t *testing.T) {
		verifier := &fakeVerifier{} // unscripted receipts come back 408
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		order := addPending(e, "T1")

		code := e.Verify(ctx, "user-1", order)

		assert.Equal(t, domainErrors.CodeTimeout, code)
		assert.Equal(t, 1, e.PendingCount(), "timed-out order must stay for a later sweep")

		state, _ := e.State("T1")
		assert.Equal(t, StateVerificationFailed, state)
	})

	t.Run("business rejection retains the order and passes the code through", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 37}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		order := addPending(e, "T1")

		assert.Equal(t, 37, e.Verify(ctx, "user-1", order))
		assert.Equal(t, 1, e.PendingCount())
	})

	t.Run("ledger failure after success reports retryable", func(t *testing.T) {
		ledger := &fakeLedger{}
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 0}}
		e := newTestEngine(ledger, verifier, &fakeAdapter{})
		order := addPending(e, "T1")

		ledger.removeErr = errors.New("save failed")
		assert.Equal(t, domainErrors.CodeTimeout, e.Verify(ctx, "user-1", order))
	})
}

func TestSweepPending(t *testing.T) {
	ctx := context.Background()

	t.Run("sweeps all orders in insertion order", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{
			"receipt-T1": 0,
			"receipt-T2": 5,
			"receipt-T3": 0,
		}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		for _, tx := range []string{"T1", "T2", "T3"} {
			record := testRecord("pay_50dia", tx, entity.ProductConsumable)
			require.NoError(t, e.ObservePurchase(ctx, record, entity.ProductInfo{ID: "pay_50dia"}))
		}

		var codes []int
		var order []string
		err := e.SweepPending(ctx, "user-1", func(code int, o entity.PendingOrder) {
			codes = append(codes, code)
			order = append(order, o.TransactionID)
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"T1", "T2", "T3"}, order)
		assert.Equal(t, []int{domainErrors.CodeOK, 5, domainErrors.CodeOK}, codes)
		assert.Equal(t, 1, e.PendingCount(), "only the rejected order remains")
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 0, "receipt-T2": 0}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		for _, tx := range []string{"T1", "T2"} {
			record := testRecord("p", tx, entity.ProductConsumable)
			require.NoError(t, e.ObservePurchase(ctx, record, entity.ProductInfo{ID: "p"}))
		}

		cancelCtx, cancel := context.WithCancel(ctx)
		var swept int
		err := e.SweepPending(cancelCtx, "user-1", func(int, entity.PendingOrder) {
			swept++
			cancel()
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, swept)
	})

	t.Run("empty ledger sweeps nothing", func(t *testing.T) {
		e := newTestEngine(&fakeLedger{}, &fakeVerifier{}, &fakeAdapter{})

		var swept int
		require.NoError(t, e.SweepPending(ctx, "user-1", func(int, entity.PendingOrder) { swept++ }))
		assert.Zero(t, swept)
	})
}

func TestCancelPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel before verification succeeds", func(t *testing.T) {
		e := newTestEngine(&fakeLedger{}, &fakeVerifier{}, &fakeAdapter{})
		record := testRecord("p", "T1", entity.ProductConsumable)
		require.NoError(t, e.ObservePurchase(ctx, record, entity.ProductInfo{ID: "p"}))

		assert.NoError(t, e.CancelPurchase("T1"))
		_, tracked := e.State("T1")
		assert.False(t, tracked)
	})

	t.Run("cancel after verification started is rejected", func(t *testing.T) {
		verifier := &fakeVerifier{codes: map[string]int{"receipt-T1": 0}}
		e := newTestEngine(&fakeLedger{}, verifier, &fakeAdapter{})
		record := testRecord("p", "T1", entity.ProductConsumable)
		require.NoError(t, e.ObservePurchase(ctx, record, entity.ProductInfo{ID: "p"}))

		var order entity.PendingOrder
		for o := range e.ledger.All() {
			order = o
		}
		e.Verify(ctx, "user-1", order)

		assert.ErrorIs(t, e.CancelPurchase("T1"), domainErrors.ErrVerificationInFlight)
	})

	t.Run("cancel of an unknown transaction is a no-op", func(t *testing.T) {
		e := newTestEngine(&fakeLedger{}, &fakeVerifier{}, &fakeAdapter{})
		assert.NoError(t, e.CancelPurchase("never-seen"))
	})
}
