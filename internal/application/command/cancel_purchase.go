package command

import (
	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// CancelPurchaseCommand abandons an unverified purchase flow.
type CancelPurchaseCommand struct {
	engine *service.ReconciliationEngine
}

// NewCancelPurchaseCommand creates a new cancel purchase command
func NewCancelPurchaseCommand(engine *service.ReconciliationEngine) *CancelPurchaseCommand {
	return &CancelPurchaseCommand{engine: engine}
}

// Execute rejects the cancel if verification has already started for the
// transaction.
func (c *CancelPurchaseCommand) Execute(req *dto.CancelPurchaseRequest) error {
	return c.engine.CancelPurchase(req.TransactionID)
}
