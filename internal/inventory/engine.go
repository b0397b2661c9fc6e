package inventory

import (
	"context"
	"fmt"
	"sort"
)

// Tx is the slice of a storage transaction the engine needs. Every method
// runs inside the transaction the caller opened; the caller decides when to
// commit or roll back, so a failure in any step discards all earlier steps.
type Tx interface {
	// OrderItems returns the line items of an order.
	OrderItems(ctx context.Context, orderID string) ([]Item, error)

	// StockForUpdate returns the ledger rows of a product with row-level
	// locks held until the transaction ends, ordered by warehouse id.
	StockForUpdate(ctx context.Context, productID int64) ([]StockEntry, error)

	// AddReserved grows the hold on one ledger row. Fails if the new
	// reserved total would exceed quantity.
	AddReserved(ctx context.Context, productID, warehouseID int64, qty int) error

	// DeductStock shrinks quantity and reserved together, converting a hold
	// into a permanent deduction. Fails if either would go negative.
	DeductStock(ctx context.Context, productID, warehouseID int64, qty int) error

	// ReleaseReserved gives a hold back without touching quantity.
	ReleaseReserved(ctx context.Context, productID, warehouseID int64, qty int) error

	// AddQuantity returns physical goods to a ledger row.
	AddQuantity(ctx context.Context, productID, warehouseID int64, qty int) error

	// BindWarehouse records which warehouse fulfills an order item. Written
	// exactly once per item.
	BindWarehouse(ctx context.Context, itemID, warehouseID int64) error
}

// Engine executes the four stock transitions of the order lifecycle against
// the ledger. It is the only writer of the reserved column; all methods must
// be called inside a transaction supplied by the caller so that a multi-item
// operation is all-or-nothing.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Reserve places a hold for every item of the order and binds each item to
// the warehouse chosen for it. Either every item ends up reserved and bound,
// or the caller's transaction is poisoned by the returned error and nothing
// sticks. Calling it again on a reserved order returns ErrAlreadyReserved.
func (e *Engine) Reserve(ctx context.Context, tx Tx, orderID string) error {
	items, err := load(ctx, tx, orderID)
	if err != nil {
		return err
	}

	bound := 0
	for _, it := range items {
		if it.WarehouseID != nil {
			bound++
		}
	}
	if bound == len(items) {
		return ErrAlreadyReserved
	}
	if bound > 0 {
		return ErrMixedItemState
	}

	// Locks are taken in ascending (product, item) order on every code path
	// so two orders over overlapping products cannot deadlock each other.
	sortItems(items)

	for _, it := range items {
		entries, err := tx.StockForUpdate(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("lock stock for product %d: %w", it.ProductID, err)
		}
		warehouseID, err := PickWarehouse(it.ProductID, entries, it.Quantity)
		if err != nil {
			return err
		}
		if err := tx.AddReserved(ctx, it.ProductID, warehouseID, it.Quantity); err != nil {
			return fmt.Errorf("reserve %d units of product %d at warehouse %d: %w",
				it.Quantity, it.ProductID, warehouseID, err)
		}
		if err := tx.BindWarehouse(ctx, it.ID, warehouseID); err != nil {
			return fmt.Errorf("bind item %d to warehouse %d: %w", it.ID, warehouseID, err)
		}
	}
	return nil
}

// Settle turns the order's holds into permanent deductions on payment:
// quantity and reserved shrink together, so the goods leave and the hold
// clears in one step.
func (e *Engine) Settle(ctx context.Context, tx Tx, orderID string) error {
	return e.apply(ctx, tx, orderID, tx.DeductStock)
}

// Release gives the order's holds back on cancellation before settlement.
// Quantity is untouched since nothing ever left the warehouse.
func (e *Engine) Release(ctx context.Context, tx Tx, orderID string) error {
	return e.apply(ctx, tx, orderID, tx.ReleaseReserved)
}

// Restock returns the order's physical quantity after a post-settlement
// refund. Reserved is untouched since settlement already cleared it.
func (e *Engine) Restock(ctx context.Context, tx Tx, orderID string) error {
	return e.apply(ctx, tx, orderID, tx.AddQuantity)
}

func (e *Engine) apply(ctx context.Context, tx Tx, orderID string,
	move func(ctx context.Context, productID, warehouseID int64, qty int) error) error {

	items, err := load(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.WarehouseID == nil {
			return ErrNotReserved
		}
	}
	sortItems(items)

	for _, it := range items {
		if err := move(ctx, it.ProductID, *it.WarehouseID, it.Quantity); err != nil {
			return fmt.Errorf("move %d units of product %d at warehouse %d: %w",
				it.Quantity, it.ProductID, *it.WarehouseID, err)
		}
	}
	return nil
}

func load(ctx context.Context, tx Tx, orderID string) ([]Item, error) {
	items, err := tx.OrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items of order %s: %w", orderID, err)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	return items, nil
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProductID != items[j].ProductID {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].ID < items[j].ID
	})
}
