package command

import (
	"context"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/entity"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// SweepPendingCommand verifies every pending order for a user, oldest first.
type SweepPendingCommand struct {
	engine *service.ReconciliationEngine
}

// NewSweepPendingCommand creates a new sweep pending command
func NewSweepPendingCommand(engine *service.ReconciliationEngine) *SweepPendingCommand {
	return &SweepPendingCommand{engine: engine}
}

// Execute executes the sweep pending command
func (c *SweepPendingCommand) Execute(ctx context.Context, userID string) *dto.SweepResponse {
	resp := &dto.SweepResponse{}
	_ = c.engine.SweepPending(ctx, userID, func(code int, order entity.PendingOrder) {
		resp.Results = append(resp.Results, dto.VerifyPendingResponse{
			TransactionID: order.TransactionID,
			ProductID:     order.Product.ID,
			Code:          code,
		})
		resp.Swept++
	})
	return resp
}
