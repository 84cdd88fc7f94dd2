package command

import (
	"context"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/repository"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// VerifyPendingCommand verifies a single pending order against the backend.
type VerifyPendingCommand struct {
	engine *service.ReconciliationEngine
	ledger repository.PendingOrderLedger
}

// NewVerifyPendingCommand creates a new verify pending command
func NewVerifyPendingCommand(engine *service.ReconciliationEngine, ledger repository.PendingOrderLedger) *VerifyPendingCommand {
	return &VerifyPendingCommand{engine: engine, ledger: ledger}
}

// Execute executes the verify pending command
func (c *VerifyPendingCommand) Execute(ctx context.Context, userID string, req *dto.VerifyPendingRequest) (*dto.VerifyPendingResponse, error) {
	var order entity.PendingOrder
	found := false
	for o := range c.ledger.All() {
		if o.TransactionID == req.TransactionID {
			order = o
			found = true
			break
		}
	}
	if !found {
		return nil, domainErrors.ErrOrderNotFound
	}

	code := c.engine.Verify(ctx, userID, order)
	return &dto.VerifyPendingResponse{
		TransactionID: order.TransactionID,
		ProductID:     order.Product.ID,
		Code:          code,
	}, nil
}
