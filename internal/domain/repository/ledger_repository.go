package repository

import (
	"context"
	"iter"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
)

// PendingOrderLedger is the durable, idempotent set of purchases awaiting
// backend verification. Implementations persist the full ledger snapshot
// synchronously on every mutation.
type PendingOrderLedger interface {
	// Add inserts an order keyed by its transaction id. A duplicate id is a
	// no-op; the return value reports whether a new entry was created.
	Add(ctx context.Context, order entity.PendingOrder) (bool, error)

	// Remove deletes the order with the given transaction id and reports
	// whether an entry existed. Removing an absent id is benign: callers use
	// the false return to detect a stale or duplicate verification response.
	Remove(ctx context.Context, transactionID string) (bool, error)

	// All returns a restartable snapshot sequence of current pending orders
	// in insertion order (oldest first). Mutating the ledger while iterating
	// is safe; the snapshot does not change underfoot.
	All() iter.Seq[entity.PendingOrder]

	// Count reports the number of pending orders.
	Count() int
}
