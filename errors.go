package elementorder

import (
	"errors"
	"fmt"
)

var (
	// ErrParse represents a malformed external order payload
	ErrParse = errors.New("parse error")

	// ErrInvalidNonce represents a nonce outside its 48 bit budget
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrInvalidOrder represents a hash mismatch or a nonce that maps to no item
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidSignature represents a recovered signer that is not the maker
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnsupportedChain represents a chain with no network configuration
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrNotFillable represents an order whose on-chain preconditions no longer hold
	ErrNotFillable = errors.New("not fillable")

	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNegativeBitField is returned when a negative value is bit-packed
	ErrNegativeBitField = errors.New("negative bit field value")

	// ErrBitAlignment is returned when packed fields do not end on a byte boundary
	ErrBitAlignment = errors.New("bit fields are not byte aligned")
)

// OrderError carries one of the sentinel errors above together with the
// order it was raised for.
type OrderError struct {
	Kind      error
	OrderHash string
	Message   string
}

func (e *OrderError) Error() string {
	if e.OrderHash == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s (order %s)", e.Kind, e.Message, e.OrderHash)
}

func (e *OrderError) Unwrap() error {
	return e.Kind
}

func newOrderError(kind error, hash string, format string, args ...interface{}) *OrderError {
	return &OrderError{
		Kind:      kind,
		OrderHash: hash,
		Message:   fmt.Sprintf(format, args...),
	}
}

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Unwrap() error {
	return ErrInvalidParam
}

// OpenAPIError represents an order book API error with context
type OpenAPIError struct {
	Message string
}

func (e *OpenAPIError) Error() string {
	return e.Message
}
