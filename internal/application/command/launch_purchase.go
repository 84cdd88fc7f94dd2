package command

import (
	"context"
	"fmt"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/domain/entity"
	domainErrors "github.com/bivex/iap-reconciler/internal/domain/errors"
	"github.com/bivex/iap-reconciler/internal/domain/provider"
)

// LaunchPurchaseCommand starts a purchase flow with the configured
// storefront. The result arrives asynchronously through the provider's event
// sink, not from Execute.
type LaunchPurchaseCommand struct {
	store provider.Adapter
}

// NewLaunchPurchaseCommand creates a new launch purchase command
func NewLaunchPurchaseCommand(store provider.Adapter) *LaunchPurchaseCommand {
	return &LaunchPurchaseCommand{store: store}
}

// Execute executes the launch purchase command
func (c *LaunchPurchaseCommand) Execute(ctx context.Context, req *dto.LaunchPurchaseRequest) error {
	if !c.store.IsServiceAvailable() {
		if err := c.store.Connect(ctx); err != nil {
			return err
		}
	}

	if err := c.store.LaunchPurchase(ctx, req.ProductID, entity.ProductType(req.ProductType)); err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrProductUnavailable, err)
	}
	return nil
}
