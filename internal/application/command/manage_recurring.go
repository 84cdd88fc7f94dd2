package command

import (
	"context"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
	"github.com/bivex/iap-reconciler/internal/domain/repository"
)

// ManageRecurringCommand requests a subscription auto-renew state change
// from the storefront. The outcome arrives asynchronously through the
// provider's recurring-changed event.
type ManageRecurringCommand struct {
	store  provider.Adapter
	ledger repository.PendingOrderLedger
}

// NewManageRecurringCommand creates a new manage recurring command
func NewManageRecurringCommand(store provider.Adapter, ledger repository.PendingOrderLedger) *ManageRecurringCommand {
	return &ManageRecurringCommand{store: store, ledger: ledger}
}

// Execute executes the manage recurring command
func (c *ManageRecurringCommand) Execute(ctx context.Context, req *dto.ManageRecurringRequest) error {
	for order := range c.ledger.All() {
		if order.TransactionID != req.TransactionID {
			continue
		}
		record := entity.PurchaseRecord{
			ProductID:     order.Product.ID,
			TransactionID: order.TransactionID,
			ReceiptToken:  order.ReceiptToken,
			Type:          order.Product.Type,
		}
		if !record.IsSubscription() {
			return domainErrors.ErrProductUnavailable
		}
		return c.store.ManageRecurring(ctx, record, provider.RecurringAction(req.Action))
	}
	return domainErrors.ErrOrderNotFound
}
