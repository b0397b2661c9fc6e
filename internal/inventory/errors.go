package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrNoItems means the order has no line items to operate on.
	ErrNoItems = errors.New("order has no items")

	// ErrAlreadyReserved means every item of the order already carries a
	// warehouse binding; a repeated reserve call must never increment the
	// ledger a second time.
	ErrAlreadyReserved = errors.New("order is already reserved")

	// ErrMixedItemState means some items are bound to a warehouse and some
	// are not. That state can only come from a bug, so the operation fails
	// fast instead of partially applying.
	ErrMixedItemState = errors.New("order items are in mixed reservation state")

	// ErrNotReserved means an operation that needs bound items (settle,
	// release, restock) found an item without a warehouse binding.
	ErrNotReserved = errors.New("order items carry no warehouse binding")
)

// InsufficientStockError is returned when no single warehouse can cover a
// line item. MaxAvailable reports the best any warehouse could do, so the
// caller can offer a smaller quantity or fail the order.
type InsufficientStockError struct {
	ProductID    int64
	Requested    int
	MaxAvailable int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.MaxAvailable)
}
