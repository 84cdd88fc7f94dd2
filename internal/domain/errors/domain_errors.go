package errors

import (
	"errors"
	"fmt"
)

var (
	// Catalog errors
	ErrMalformedCatalogEntry = errors.New("catalog entry has an unparseable price")

	// Ledger errors
	ErrOrderNotFound = errors.New("pending order not found")

	// Purchase flow errors
	ErrProductUnavailable   = errors.New("product is not available for purchase")
	ErrPurchaseInFlight     = errors.New("a purchase for this product is already in flight")
	ErrVerificationInFlight = errors.New("verification already started for this transaction")

	// Provider connection errors
	ErrProviderUnavailable = errors.New("storefront service unavailable")
	ErrNeedLogin           = errors.New("storefront requires login")
	ErrNeedUpdate          = errors.New("storefront client requires update or install")

	// Verification errors
	ErrVerificationFailed = errors.New("receipt verification failed")
)

// Sentinel result codes shared with the backend verification contract.
// Transport failures, timeouts and malformed responses are all folded into
// CodeTimeout; CodeStale marks a success that arrived for an order already
// cleared from the ledger.
const (
	CodeOK      = 200
	CodeTimeout = 408
	CodeStale   = 409
)

// FlowError signals a provider condition the engine cannot resolve itself
// (login or update flows are launched by the embedding application).
type FlowError struct {
	Flow string // "login" or "update"
	Err  error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("provider requires %s flow: %v", e.Flow, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}
