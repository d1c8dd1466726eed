package orders

import "fmt"

// Validation error codes surfaced to the storefront as 400s.
const (
	CodeUnsupportedCountry   = "UNSUPPORTED_COUNTRY"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodeMissingShippingInfo  = "MISSING_SHIPPING_INFO"
	CodeEmptyCart            = "EMPTY_CART"
	CodeInvalidSize          = "INVALID_SIZE"
	CodeSKUNotFound          = "SKU_NOT_FOUND"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidPrice         = "INVALID_PRICE"
)

// ValidationError is a client-fixable rejection; nothing was persisted.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErr(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// PaymentLinkError means the order was created and inventory decremented but
// the payment processor failed to issue a link. The order number lets the
// storefront steer the buyer to a manual payment flow.
type PaymentLinkError struct {
	OrderNumber string
	Err         error
}

func (e *PaymentLinkError) Error() string {
	return fmt.Sprintf("payment link for order %s: %v", e.OrderNumber, e.Err)
}

func (e *PaymentLinkError) Unwrap() error {
	return e.Err
}
