// Package ledger persists the set of purchases awaiting backend
// verification. The whole ledger is serialized as one JSON blob on every
// mutation; per-key storage would preserve the external contract but whole-
// blob writes keep load/save atomic for the small ledgers this tracks.
package ledger

import (
	"context"
	"encoding/json"
	"iter"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	"github.com/bivex/iap-reconciler/internal/infrastructure/logging"
)

// BlobKey is the fixed storage key the ledger blob lives under.
const BlobKey = "iap:pending_orders"

// BlobStore is the persistence seam: a single load/save pair for the ledger
// blob. Load returns (nil, nil) when no blob exists yet.
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// Ledger is the durable pending-order set. The blob is the source of truth;
// the in-memory view is a cache that is refreshed from the blob before every
// mutation and written back synchronously after it. The refresh lets several
// processes (the API and the sweep worker) share one blob without erasing
// each other's entries, though simultaneous saves remain last-writer-wins.
type Ledger struct {
	store  BlobStore
	logger *zap.Logger

	mu     sync.Mutex
	orders map[string]entity.PendingOrder
	keys   []string // insertion order
}

// Open loads the persisted ledger. A missing, unreadable or corrupt blob
// yields an empty ledger with a warning: losing pending orders at this
// boundary is accepted data loss, not a startup failure. Operators should
// treat the warning as a signal, the loss is silent to users otherwise.
func Open(ctx context.Context, store BlobStore, logger *zap.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger,
		orders: make(map[string]entity.PendingOrder),
	}

	blob, err := store.Load(ctx)
	if err != nil {
		logging.CaptureError(logger, "pending ledger unreadable, starting empty", err)
		return l
	}
	if len(blob) == 0 {
		return l
	}

	var loaded map[string]entity.PendingOrder
	if err := json.Unmarshal(blob, &loaded); err != nil {
		logging.CaptureError(logger, "pending ledger blob corrupt, starting empty", err)
		return l
	}

	l.orders = loaded
	for id := range loaded {
		l.keys = append(l.keys, id)
	}
	// Blob order is not authoritative; oldest-first by creation time restores
	// the insertion-order sweep guarantee across restarts.
	sort.Slice(l.keys, func(i, j int) bool {
		return l.orders[l.keys[i]].CreatedAt.Before(l.orders[l.keys[j]].CreatedAt)
	})

	logger.Info("pending ledger loaded", zap.Int("orders", len(l.keys)))
	return l
}

// Add inserts the order unless its transaction id is already present,
// including in a copy of the blob another process persisted.
func (l *Ledger) Add(ctx context.Context, order entity.PendingOrder) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh(ctx)

	if _, ok := l.orders[order.TransactionID]; ok {
		return false, nil
	}

	l.orders[order.TransactionID] = order
	l.keys = append(l.keys, order.TransactionID)

	if err := l.persist(ctx); err != nil {
		delete(l.orders, order.TransactionID)
		l.keys = l.keys[:len(l.keys)-1]
		return false, err
	}
	return true, nil
}

// Remove deletes the order and reports whether it existed. An order another
// process already cleared reports false, which callers surface as a stale
// verification.
func (l *Ledger) Remove(ctx context.Context, transactionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh(ctx)

	order, ok := l.orders[transactionID]
	if !ok {
		return false, nil
	}

	delete(l.orders, transactionID)
	idx := -1
	for i, id := range l.keys {
		if id == transactionID {
			idx = i
			break
		}
	}
	l.keys = append(l.keys[:idx], l.keys[idx+1:]...)

	if err := l.persist(ctx); err != nil {
		l.orders[transactionID] = order
		l.keys = append(l.keys[:idx], append([]string{transactionID}, l.keys[idx:]...)...)
		return false, err
	}
	return true, nil
}

// All returns a restartable sequence over a snapshot of the current orders
// in insertion order.
func (l *Ledger) All() iter.Seq[entity.PendingOrder] {
	l.mu.Lock()
	snapshot := make([]entity.PendingOrder, 0, len(l.keys))
	for _, id := range l.keys {
		snapshot = append(snapshot, l.orders[id])
	}
	l.mu.Unlock()

	return func(yield func(entity.PendingOrder) bool) {
		for _, order := range snapshot {
			if !yield(order) {
				return
			}
		}
	}
}

// Count reports the number of pending orders.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// refresh replaces the cached view with the current blob contents so a
// mutation never persists over another process's writes. Keys already known
// keep their position; keys another process added slot in oldest-first. An
// unreadable or corrupt blob leaves the cached view in place; the following
// persist then restores the blob from it. Callers hold l.mu.
func (l *Ledger) refresh(ctx context.Context) {
	blob, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn("pending ledger reload failed, keeping cached view", zap.Error(err))
		return
	}
	loaded := make(map[string]entity.PendingOrder)
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &loaded); err != nil {
			l.logger.Warn("pending ledger blob corrupt, keeping cached view", zap.Error(err))
			return
		}
	}

	keys := make([]string, 0, len(loaded))
	for _, id := range l.keys {
		if _, ok := loaded[id]; ok {
			keys = append(keys, id)
		}
	}
	var added []string
	for id := range loaded {
		if _, ok := l.orders[id]; !ok {
			added = append(added, id)
		}
	}
	sort.Slice(added, func(i, j int) bool {
		return loaded[added[i]].CreatedAt.Before(loaded[added[j]].CreatedAt)
	})

	l.orders = loaded
	l.keys = append(keys, added...)
}

func (l *Ledger) persist(ctx context.Context) error {
	blob, err := json.Marshal(l.orders)
	if err != nil {
		return err
	}
	return l.store.Save(ctx, blob)
}
