package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInsufficientQuantity = errors.New("insufficient_quantity")
	ErrUnknownReference     = errors.New("unknown_reference")
	ErrSymbolNotFound       = errors.New("symbol_not_found")
	ErrTradeNotFound        = errors.New("trade_not_found")
	ErrDecimalOutOfRange    = errors.New("decimal out of range")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
