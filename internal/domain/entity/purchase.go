package entity

type RecurringState string

const (
	RecurringNone      RecurringState = "none"
	RecurringActive    RecurringState = "active"
	RecurringCancelled RecurringState = "cancelled"
)

// PurchaseRecord is the canonical representation of a purchase reported by
// any storefront provider. TransactionID and ReceiptToken are carried
// verbatim from the provider: the transaction id keys the pending-order
// ledger and the receipt token is forwarded untouched to the backend for
// verification.
type PurchaseRecord struct {
	ProductID      string         `json:"product_id"`
	TransactionID  string         `json:"transaction_id"`
	ReceiptToken   string         `json:"receipt_token"`
	RecurringState RecurringState `json:"recurring_state"`
	Type           ProductType    `json:"type"`
}

// IsSubscription reports whether the record tracks an auto-renewing product.
func (r PurchaseRecord) IsSubscription() bool {
	return r.Type == ProductSubscription
}
