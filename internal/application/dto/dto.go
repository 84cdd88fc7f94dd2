package dto

// ========== PURCHASE DTOs ==========

// LaunchPurchaseRequest starts a purchase flow for a product.
type LaunchPurchaseRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	ProductType string `json:"product_type" binding:"required,oneof=consumable non_consumable subscription"`
}

// CancelPurchaseRequest abandons a purchase flow that has not reached
// verification yet.
type CancelPurchaseRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// ManageRecurringRequest changes a subscription's auto-renew state.
type ManageRecurringRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Action        string `json:"action" binding:"required,oneof=reactivate cancel"`
}

// ========== VERIFICATION DTOs ==========

// VerifyPendingRequest verifies a single pending order.
type VerifyPendingRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// VerifyPendingResponse carries the reconciliation outcome for one order.
type VerifyPendingResponse struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	Code          int    `json:"code"`
}

// SweepResponse reports the outcome of a full pending-order sweep.
type SweepResponse struct {
	Results []VerifyPendingResponse `json:"results"`
	Swept   int                     `json:"swept"`
}

// PendingOrdersResponse lists orders still awaiting backend confirmation.
type PendingOrdersResponse struct {
	Orders []PendingOrderDTO `json:"orders"`
	Count  int               `json:"count"`
}

// PendingOrderDTO is the API shape of a ledger entry.
type PendingOrderDTO struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	ProductTitle  string `json:"product_title"`
	CreatedAt     string `json:"created_at"`
}

// ========== CATALOG DTOs ==========

// CatalogResponse lists the storefront catalog in display order.
type CatalogResponse struct {
	Products []ProductDTO `json:"products"`
}

// ProductDTO is the API shape of a catalog entry.
type ProductDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	Type  string `json:"type"`
}

// ========== AUTH DTOs ==========

// TokenRequest asks for an access token for a user.
type TokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// ========== CHARGE DTOs ==========

// ChargeRequest is the receipt-verification request body. Field names match
// the client wire contract exactly.
type ChargeRequest struct {
	UserID  string `json:"userID" binding:"required"`
	Receipt string `json:"receipt" binding:"required"`
}

// ChargeResponse answers a charge request: code 0 means the receipt
// verified, any nonzero code is a business error described by msg.
type ChargeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
}
