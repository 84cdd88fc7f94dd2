package storefront

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/iap-reconciler/internal/domain/entity"
	"github.com/bivex/iap-reconciler/internal/domain/service"
)

// DevCaller simulates a storefront for development and local testing, in the
// spirit of the stores' own fake-store modes. Every launched purchase
// succeeds immediately with a minted transaction id and receipt. It
// satisfies both caller contracts so either adapter can sit on top of it.
type DevCaller struct {
	logger *zap.Logger

	mu        sync.Mutex
	connected bool
	catalog   []GenericStoreProduct

	generic  *GenericStore
	onestore *OneStore

	owned []service.GenericStorePurchase
}

// NewDevCaller creates a simulated store over the given catalog.
func NewDevCaller(catalog []GenericStoreProduct, logger *zap.Logger) *DevCaller {
	return &DevCaller{
		logger:  logger,
		catalog: catalog,
	}
}

// AttachGeneric binds the generic adapter whose listener receives results.
func (d *DevCaller) AttachGeneric(s *GenericStore) { d.generic = s }

// AttachOneStore binds the onestore adapter whose listener receives results.
func (d *DevCaller) AttachOneStore(s *OneStore) { d.onestore = s }

// GenericCaller surface

func (d *DevCaller) Initialize(_ context.Context, _ []string) error {
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	if d.generic != nil {
		d.generic.OnInitialized(d.catalog)
	}
	return nil
}

func (d *DevCaller) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *DevCaller) InitiatePurchase(_ context.Context, productID string) error {
	purchase := d.mint(productID)
	if d.generic != nil {
		d.generic.OnPurchaseCompleted(purchase)
	}
	return nil
}

func (d *DevCaller) RestorePurchases(_ context.Context) error {
	d.mu.Lock()
	owned := make([]service.GenericStorePurchase, len(d.owned))
	copy(owned, d.owned)
	d.mu.Unlock()
	if d.generic != nil {
		d.generic.OnPurchasesRestored(owned)
	}
	return nil
}

func (d *DevCaller) ConfirmPendingPurchase(_ context.Context, purchase service.GenericStorePurchase) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.owned {
		if p.TransactionID == purchase.TransactionID {
			d.owned = append(d.owned[:i], d.owned[i+1:]...)
			break
		}
	}
	return nil
}

// OneStoreCaller surface

func (d *DevCaller) StartConnection(_ context.Context, _ string) error {
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

func (d *DevCaller) IsServiceAvailable() bool {
	return d.IsInitialized()
}

func (d *DevCaller) QueryProductDetails(_ context.Context, _ []string, _ string) error {
	if d.onestore == nil {
		return nil
	}
	total := len(d.catalog)
	if total == 0 {
		d.onestore.OnProductDetail(nil, 0, 0)
		return nil
	}
	for i, p := range d.catalog {
		detail := OneStoreProductDetail{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Type:      p.Type,
		}
		d.onestore.OnProductDetail(&detail, i+1, total)
	}
	return nil
}

func (d *DevCaller) QueryPurchases(_ context.Context, _ string) error {
	d.mu.Lock()
	owned := make([]service.GenericStorePurchase, len(d.owned))
	copy(owned, d.owned)
	d.mu.Unlock()

	if d.onestore == nil {
		return nil
	}
	if len(owned) == 0 {
		d.onestore.OnPurchasesQueried(nil, "", 0, 0)
		return nil
	}
	for i, p := range owned {
		chunk := service.OneStorePurchase{
			ProductID:      p.ID,
			PurchaseID:     p.TransactionID,
			PurchaseToken:  p.Receipt,
			ProductType:    p.Type,
			RecurringState: entity.RecurringNone,
		}
		d.onestore.OnPurchasesQueried(&chunk, devSignature(p.TransactionID), i+1, len(owned))
	}
	return nil
}

func (d *DevCaller) LaunchPurchaseFlow(_ context.Context, productID, _ string) error {
	purchase := d.mint(productID)
	if d.onestore != nil {
		chunk := service.OneStorePurchase{
			ProductID:      purchase.ID,
			PurchaseID:     purchase.TransactionID,
			PurchaseToken:  purchase.Receipt,
			ProductType:    purchase.Type,
			RecurringState: entity.RecurringNone,
		}
		d.onestore.OnPurchaseUpdated(&chunk, devSignature(purchase.TransactionID), 1, 1)
	}
	return nil
}

func (d *DevCaller) Consume(_ context.Context, purchase service.OneStorePurchase) error {
	d.drop(purchase.PurchaseID)
	if d.onestore != nil {
		d.onestore.OnConsumed(purchase)
	}
	return nil
}

func (d *DevCaller) Acknowledge(_ context.Context, purchase service.OneStorePurchase) error {
	if d.onestore != nil {
		d.onestore.OnAcknowledged(purchase)
	}
	return nil
}

func (d *DevCaller) ManageRecurring(_ context.Context, purchase service.OneStorePurchase, action string) error {
	if d.onestore != nil {
		d.onestore.OnRecurringChanged(purchase, action)
	}
	return nil
}

func (d *DevCaller) mint(productID string) service.GenericStorePurchase {
	productType := entity.ProductConsumable
	for _, p := range d.catalog {
		if p.ID == productID {
			productType = p.Type
			break
		}
	}
	purchase := service.GenericStorePurchase{
		ID:            productID,
		TransactionID: uuid.New().String(),
		Receipt:       fmt.Sprintf("dev-receipt-%s", uuid.New().String()),
		Type:          productType,
	}

	d.mu.Lock()
	d.owned = append(d.owned, purchase)
	d.mu.Unlock()

	d.logger.Debug("dev store minted purchase",
		zap.String("product_id", productID),
		zap.String("transaction_id", purchase.TransactionID),
	)
	return purchase
}

func (d *DevCaller) drop(transactionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.owned {
		if p.TransactionID == transactionID {
			d.owned = append(d.owned[:i], d.owned[i+1:]...)
			return
		}
	}
}

func devSignature(transactionID string) string {
	return "dev-sig-" + transactionID
}
