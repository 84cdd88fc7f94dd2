package entity

import "time"

// PendingOrder is a purchase observed locally but not yet confirmed verified
// by the backend. It exists in the ledger exactly for that window: created on
// first observation, removed only after the backend returns a definitive
// success for its transaction id.
type PendingOrder struct {
	TransactionID string      `json:"transaction_id"`
	Product       ProductInfo `json:"product"`
	ReceiptToken  string      `json:"receipt_token"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewPendingOrder creates a pending order from a normalized purchase record
// and the catalog snapshot for its product.
func NewPendingOrder(record PurchaseRecord, product ProductInfo) PendingOrder {
	return PendingOrder{
		TransactionID: record.TransactionID,
		Product:       product,
		ReceiptToken:  record.ReceiptToken,
		CreatedAt:     time.Now().UTC(),
	}
}
