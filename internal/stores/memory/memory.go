// Package memory is an in-memory implementation of the storage layer with
// the same transactional semantics as the Postgres store: a transaction sees
// and mutates live state under a store-wide lock, and an error restores the
// pre-transaction snapshot. The store-wide lock serializes transactions the
// way row locks serialize conflicting ones in Postgres. Used by tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/fulfillment"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"

	"github.com/google/uuid"
)

type stockKey struct {
	productID   int64
	warehouseID int64
}

type Store struct {
	mu         sync.Mutex
	stock      map[stockKey]inventory.StockEntry
	orders     map[string]orders.Order
	items      map[string][]orders.OrderItem
	nextItemID int64
}

func NewStore() *Store {
	return &Store{
		stock:  make(map[stockKey]inventory.StockEntry),
		orders: make(map[string]orders.Order),
		items:  make(map[string][]orders.OrderItem),
	}
}

// WithTx runs fn with the store locked. On error the pre-transaction
// snapshot is restored, so partial mutations never survive.
func (s *Store) WithTx(ctx context.Context, fn func(fulfillment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(&memTx{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) snapshot() *Store {
	snap := &Store{
		stock:      make(map[stockKey]inventory.StockEntry, len(s.stock)),
		orders:     make(map[string]orders.Order, len(s.orders)),
		items:      make(map[string][]orders.OrderItem, len(s.items)),
		nextItemID: s.nextItemID,
	}
	for k, v := range s.stock {
		snap.stock[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.items {
		items := make([]orders.OrderItem, len(v))
		for i, it := range v {
			items[i] = it
			if it.WarehouseID != nil {
				wh := *it.WarehouseID
				items[i].WarehouseID = &wh
			}
		}
		snap.items[k] = items
	}
	return snap
}

func (s *Store) restore(snap *Store) {
	s.stock = snap.stock
	s.orders = snap.orders
	s.items = snap.items
	s.nextItemID = snap.nextItemID
}

// CreateOrder mirrors orders.Conf.CreateOrder.
func (s *Store) CreateOrder(_ context.Context, no orders.NewOrder) (orders.Order, []orders.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range no.Items {
		total += it.PriceCents * int64(it.Quantity)
	}
	now := time.Now().UTC()
	order := orders.Order{
		ID:              uuid.NewString(),
		UserID:          no.UserID,
		Status:          orders.StatusPending,
		TotalPriceCents: total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	var items []orders.OrderItem
	for _, it := range no.Items {
		s.nextItemID++
		items = append(items, orders.OrderItem{
			ID:         s.nextItemID,
			OrderID:    order.ID,
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}
	s.orders[order.ID] = order
	s.items[order.ID] = items
	return order, items, nil
}

// GetOrder mirrors orders.Conf.GetOrder.
func (s *Store) GetOrder(_ context.Context, orderID string) (orders.Order, []orders.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, nil, orders.ErrNotFound
	}
	items := make([]orders.OrderItem, len(s.items[orderID]))
	copy(items, s.items[orderID])
	return order, items, nil
}

// GetStock mirrors the Postgres store's ledger read.
func (s *Store) GetStock(_ context.Context, productID int64) ([]inventory.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockOf(productID), nil
}

// Intake mirrors the Postgres store's intake upsert.
func (s *Store) Intake(_ context.Context, productID, warehouseID int64, qty int) (inventory.StockEntry, error) {
	if qty <= 0 {
		return inventory.StockEntry{}, fmt.Errorf("intake quantity must be positive, got %d", qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey{productID, warehouseID}
	e, ok := s.stock[key]
	if !ok {
		e = inventory.StockEntry{ProductID: productID, WarehouseID: warehouseID}
	}
	e.Quantity += qty
	e.UpdatedAt = time.Now().UTC()
	s.stock[key] = e
	return e, nil
}

func (s *Store) stockOf(productID int64) []inventory.StockEntry {
	var entries []inventory.StockEntry
	for _, e := range s.stock {
		if e.ProductID == productID {
			entries = append(entries, e)
		}
	}
	// deterministic order, same as the SQL store
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].WarehouseID > entries[j].WarehouseID; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	return entries
}

type memTx struct {
	store *Store
}

func (t *memTx) OrderItems(_ context.Context, orderID string) ([]inventory.Item, error) {
	var items []inventory.Item
	for _, it := range t.store.items[orderID] {
		item := inventory.Item{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		}
		if it.WarehouseID != nil {
			wh := *it.WarehouseID
			item.WarehouseID = &wh
		}
		items = append(items, item)
	}
	return items, nil
}

func (t *memTx) StockForUpdate(_ context.Context, productID int64) ([]inventory.StockEntry, error) {
	return t.store.stockOf(productID), nil
}

func (t *memTx) AddReserved(_ context.Context, productID, warehouseID int64, qty int) error {
	return t.move(productID, warehouseID, func(e *inventory.StockEntry) error {
		if e.Reserved+qty > e.Quantity {
			return fmt.Errorf("reserving %d units would exceed quantity %d", qty, e.Quantity)
		}
		e.Reserved += qty
		return nil
	})
}

func (t *memTx) DeductStock(_ context.Context, productID, warehouseID int64, qty int) error {
	return t.move(productID, warehouseID, func(e *inventory.StockEntry) error {
		if e.Quantity < qty || e.Reserved < qty {
			return fmt.Errorf("deducting %d units would violate ledger invariant", qty)
		}
		e.Quantity -= qty
		e.Reserved -= qty
		return nil
	})
}

func (t *memTx) ReleaseReserved(_ context.Context, productID, warehouseID int64, qty int) error {
	return t.move(productID, warehouseID, func(e *inventory.StockEntry) error {
		if e.Reserved < qty {
			return fmt.Errorf("releasing %d units would make reserved negative", qty)
		}
		e.Reserved -= qty
		return nil
	})
}

func (t *memTx) AddQuantity(_ context.Context, productID, warehouseID int64, qty int) error {
	return t.move(productID, warehouseID, func(e *inventory.StockEntry) error {
		e.Quantity += qty
		return nil
	})
}

func (t *memTx) BindWarehouse(_ context.Context, itemID, warehouseID int64) error {
	for orderID, items := range t.store.items {
		for i := range items {
			if items[i].ID != itemID {
				continue
			}
			if items[i].WarehouseID != nil {
				return fmt.Errorf("order item %d is already bound to a warehouse", itemID)
			}
			wh := warehouseID
			t.store.items[orderID][i].WarehouseID = &wh
			return nil
		}
	}
	return fmt.Errorf("order item %d not found", itemID)
}

func (t *memTx) OrderStatusForUpdate(_ context.Context, orderID string) (orders.Status, error) {
	order, ok := t.store.orders[orderID]
	if !ok {
		return "", orders.ErrNotFound
	}
	return order.Status, nil
}

func (t *memTx) SetOrderStatus(_ context.Context, orderID string, status orders.Status) error {
	order, ok := t.store.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	t.store.orders[orderID] = order
	return nil
}

func (t *memTx) move(productID, warehouseID int64, fn func(*inventory.StockEntry) error) error {
	key := stockKey{productID, warehouseID}
	e, ok := t.store.stock[key]
	if !ok {
		return fmt.Errorf("no stock entry for product %d at warehouse %d", productID, warehouseID)
	}
	if err := fn(&e); err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()
	t.store.stock[key] = e
	return nil
}
