package checkout

import (
	"errors"
	"fmt"
)

// ErrDuplicateTransaction rejects a manual payment whose transaction
// reference was already claimed by a previous submission.
var ErrDuplicateTransaction = errors.New("checkout: transaction reference already submitted")

// ValidationError marks malformed or missing request input. The message is
// safe to surface to the client.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError aborts a checkout when a line item cannot be covered
// by the remaining inventory. It names the product (and size, when tracked
// per size) together with the quantity still available.
type InsufficientStockError struct {
	ProductID string
	Title     string
	Size      string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	name := e.Title
	if name == "" {
		name = e.ProductID
	}
	if e.Size != "" {
		return fmt.Sprintf("insufficient stock for %s (size %s): requested %d, available %d", name, e.Size, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}
