package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/service"
	"github.com/bivex/iap-reconciler/internal/infrastructure/logging"
)

// Task names
const (
	TypeSweepPending = "reconcile:sweep"
)

// SweepPayload carries the account the sweep verifies on behalf of.
type SweepPayload struct {
	UserID string `json:"user_id"`
}

// NewSweepTask builds an enqueueable sweep task for the given user.
func NewSweepTask(userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sweep payload: %w", err)
	}
	return asynq.NewTask(TypeSweepPending, payload), nil
}

// TaskHandlers holds dependencies for all task handlers.
type TaskHandlers struct {
	engine *service.ReconciliationEngine
	logger *zap.Logger
}

// NewTaskHandlers creates task handlers around the reconciliation engine.
func NewTaskHandlers(engine *service.ReconciliationEngine) *TaskHandlers {
	return &TaskHandlers{
		engine: engine,
		logger: logging.Logger,
	}
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, h *TaskHandlers) {
	mux.HandleFunc(TypeSweepPending, h.HandleSweepPending)
}

// RegisterScheduledTasks registers the recurring sweep. The cron entry only
// makes sense when a sweep user is configured; callers skip this otherwise.
func RegisterScheduledTasks(scheduler *asynq.Scheduler, cronSpec, sweepUserID string) error {
	task, err := NewSweepTask(sweepUserID)
	if err != nil {
		return err
	}
	if _, err := scheduler.Register(cronSpec, task); err != nil {
		return fmt.Errorf("failed to schedule pending sweep: %w", err)
	}
	return nil
}

// HandleSweepPending verifies every pending order with the backend, oldest
// first. Orders that verify clean leave the ledger; the rest stay for the
// next sweep.
func (h *TaskHandlers) HandleSweepPending(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	if payload.UserID == "" {
		return fmt.Errorf("sweep payload missing user_id")
	}

	var swept, cleared, stale, failed int
	err := h.engine.SweepPending(ctx, payload.UserID, func(code int, order entity.PendingOrder) {
		swept++
		switch code {
		case domainErrors.CodeOK:
			cleared++
		case domainErrors.CodeStale:
			stale++
		default:
			failed++
			h.logger.Warn("Pending order failed verification",
				zap.String("transaction_id", order.TransactionID),
				zap.String("product_id", order.Product.ID),
				zap.Int("code", code),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("sweep aborted: %w", err)
	}

	h.logger.Info("Pending sweep completed",
		zap.String("user_id", payload.UserID),
		zap.Int("swept", swept),
		zap.Int("cleared", cleared),
		zap.Int("stale", stale),
		zap.Int("failed", failed),
	)
	return nil
}
