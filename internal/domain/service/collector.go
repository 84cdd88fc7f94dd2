package service

import (
	"go.uber.org/zap"
)

// BatchCollector accumulates a provider's "deliver N items across M
// callbacks" pattern into complete ordered batches. Providers serialize
// callbacks per request, so a collector is single-threaded per stream.
//
// A callback at position 1 always resets the accumulator, discarding any
// still-incomplete prior batch. Providers restart a stream without a
// partial-flush signal; accepting that data-loss boundary keeps the
// collector from wedging on a broken stream.
type BatchCollector[T any] struct {
	items  []T
	emit   func(items []T)
	logger *zap.Logger
}

// NewBatchCollector creates a collector delivering completed batches to emit.
func NewBatchCollector[T any](emit func(items []T), logger *zap.Logger) *BatchCollector[T] {
	return &BatchCollector[T]{
		emit:   emit,
		logger: logger,
	}
}

// OnItem records one chunk of a batched response. position is 1-based;
// total is the number of chunks the provider intends to send. A nil item is
// the provider's degenerate empty success and emits an empty batch
// immediately.
func (c *BatchCollector[T]) OnItem(item *T, position, total int) {
	if item == nil {
		c.items = nil
		c.emit(nil)
		return
	}

	if total <= 0 || position < 1 || position > total {
		// A malformed pair can never complete; drop the chunk and warn so the
		// stream doesn't hang silently.
		c.logger.Warn("discarding batch chunk with malformed position",
			zap.Int("position", position),
			zap.Int("total", total),
		)
		return
	}

	if position == 1 {
		if len(c.items) > 0 {
			c.logger.Warn("provider restarted stream, discarding partial batch",
				zap.Int("discarded", len(c.items)),
			)
		}
		c.items = nil
	}

	c.items = append(c.items, *item)

	if position == total {
		batch := c.items
		c.items = nil
		c.emit(batch)
	}
}

// Pending reports how many chunks of an incomplete batch are buffered.
func (c *BatchCollector[T]) Pending() int {
	return len(c.items)
}
