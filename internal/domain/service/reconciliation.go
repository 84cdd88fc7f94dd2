package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/repository"
)

// TxState tracks where a transaction sits in the reconciliation protocol.
type TxState string

const (
	StateObserved           TxState = "observed"
	StateLedgerRecorded     TxState = "ledger_recorded"
	StateVerificationSent   TxState = "verification_sent"
	StateVerified           TxState = "verified"
	StateVerificationFailed TxState = "verification_failed"
	StateFinalizationSent   TxState = "finalization_sent"
	StateResolved           TxState = "resolved"
)

// ReceiptVerifier posts a receipt to the backend and reports the business
// code: 0 on success, a nonzero business code otherwise. Transport failure,
// timeout and malformed responses are normalized to CodeTimeout by the
// implementation, never surfaced as errors.
type ReceiptVerifier interface {
	VerifyReceipt(ctx context.Context, userID, receipt string) int
}

// ReconciliationEngine drives each observed purchase through
// verify → acknowledge/consume → ledger removal. Every operation is safe to
// repeat: ledger inserts are idempotent, verification of an already-cleared
// order reports CodeStale, and a failed verification simply leaves the order
// pending for a later sweep.
//
// Verification is the only blocking operation. The engine serializes ledger
// mutation but not the network call itself, so new purchase observations stay
// responsive while a verification for another transaction is outstanding.
type ReconciliationEngine struct {
	ledger   repository.PendingOrderLedger
	store    provider.Adapter
	verifier ReceiptVerifier
	logger   *zap.Logger

	mu     sync.Mutex
	states map[string]TxState
}

// NewReconciliationEngine creates the engine. The engine is the only
// component in its process that mutates the ledger; cross-process
// coordination is the ledger's own concern. The provider adapter is bound
// separately because adapter and engine reference each other: events flow in
// through the sink, finalizations flow back out.
func NewReconciliationEngine(
	ledger repository.PendingOrderLedger,
	verifier ReceiptVerifier,
	logger *zap.Logger,
) *ReconciliationEngine {
	return &ReconciliationEngine{
		ledger:   ledger,
		verifier: verifier,
		logger:   logger,
		states:   make(map[string]TxState),
	}
}

// BindStore attaches the provider adapter used for consume and acknowledge
// calls. Must be called before the first purchase event is delivered.
func (e *ReconciliationEngine) BindStore(store provider.Adapter) {
	e.store = store
}

// ObservePurchase records a purchase in the pending ledger. Providers may
// redeliver the same purchase notification; the ledger's idempotent insert
// makes repeated calls for one transaction id harmless.
func (e *ReconciliationEngine) ObservePurchase(ctx context.Context, record entity.PurchaseRecord, product entity.ProductInfo) error {
	order := entity.NewPendingOrder(record, product)

	added, err := e.ledger.Add(ctx, order)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if _, ok := e.states[record.TransactionID]; !ok {
		e.states[record.TransactionID] = StateLedgerRecorded
	}
	e.mu.Unlock()

	if added {
		e.logger.Info("purchase recorded as pending",
			zap.String("transaction_id", record.TransactionID),
			zap.String("product_id", record.ProductID),
		)
	}
	return nil
}

// Finalize confirms the purchase with the provider: consumables are
// consumed, everything else is acknowledged. Finalization does not remove
// the order from the ledger; the ledger tracks backend confirmation, which
// is independent of provider-side consumption.
func (e *ReconciliationEngine) Finalize(ctx context.Context, record entity.PurchaseRecord) error {
	e.setState(record.TransactionID, StateFinalizationSent)

	var err error
	if record.Type == entity.ProductConsumable {
		err = e.store.Consume(ctx, record)
	} else {
		err = e.store.Acknowledge(ctx, record)
	}
	if err != nil {
		e.logger.Warn("finalization failed",
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err),
		)
	}
	return err
}

// Verify posts the order's receipt to the backend and resolves the outcome
// to a single code:
//
//	200  verified, order removed from the ledger
//	409  verified, but the order was already cleared (stale response)
//	408  transport failure, timeout or malformed response; order retained
//	 n   nonzero business code from the backend; order retained
func (e *ReconciliationEngine) Verify(ctx context.Context, userID string, order entity.PendingOrder) int {
	e.setState(order.TransactionID, StateVerificationSent)

	code := e.verifier.VerifyReceipt(ctx, userID, order.ReceiptToken)
	if code != 0 {
		e.setState(order.TransactionID, StateVerificationFailed)
		if code != domainErrors.CodeTimeout {
			e.logger.Warn("backend rejected receipt",
				zap.String("transaction_id", order.TransactionID),
				zap.Int("code", code),
			)
		}
		return code
	}

	removed, err := e.ledger.Remove(ctx, order.TransactionID)
	if err != nil {
		e.setState(order.TransactionID, StateVerificationFailed)
		e.logger.Error("ledger removal failed after verification",
			zap.String("transaction_id", order.TransactionID),
			zap.Error(err),
		)
		return domainErrors.CodeTimeout
	}
	if !removed {
		// A concurrent or duplicate call already resolved this order.
		e.setState(order.TransactionID, StateResolved)
		return domainErrors.CodeStale
	}

	e.setState(order.TransactionID, StateResolved)
	e.logger.Info("purchase verified",
		zap.String("transaction_id", order.TransactionID),
		zap.String("product_id", order.Product.ID),
	)
	return domainErrors.CodeOK
}

// SweepPending verifies every pending order, oldest first, one at a time.
// Serial verification bounds backend load and keeps ledger mutation during
// iteration safe. The per-order outcome is reported through fn. Returns the
// context error if the sweep is cut short.
func (e *ReconciliationEngine) SweepPending(ctx context.Context, userID string, fn func(code int, order entity.PendingOrder)) error {
	for order := range e.ledger.All() {
		code := e.Verify(ctx, userID, order)
		if fn != nil {
			fn(code, order)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// CancelPurchase abandons a purchase flow that has not yet reached
// verification. Once verification has started the cancel is rejected; the
// transaction will resolve through the normal protocol.
func (e *ReconciliationEngine) CancelPurchase(transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.states[transactionID] {
	case StateVerificationSent, StateVerified, StateFinalizationSent, StateResolved:
		return domainErrors.ErrVerificationInFlight
	}
	delete(e.states, transactionID)
	return nil
}

// PendingCount reports how many orders await backend confirmation.
func (e *ReconciliationEngine) PendingCount() int {
	return e.ledger.Count()
}

// State reports the tracked state for a transaction, if any.
func (e *ReconciliationEngine) State(transactionID string) (TxState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[transactionID]
	return s, ok
}

func (e *ReconciliationEngine) setState(transactionID string, s TxState) {
	e.mu.Lock()
	e.states[transactionID] = s
	e.mu.Unlock()
}
