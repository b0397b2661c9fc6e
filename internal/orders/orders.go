package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Conf wraps the database handle for order reads and creation. The four
// stock transitions never go through here; they run in the fulfillment
// service's transaction so status and ledger move together.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

// CreateOrder inserts the order and all its line items in one transaction.
// The order starts in pending with no warehouse bindings; reservation
// happens later through the fulfillment service.
func (c *Conf) CreateOrder(ctx context.Context, no NewOrder) (Order, []OrderItem, error) {
	var (
		order Order
		items []OrderItem
	)

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		orderID := uuid.NewString()
		var total int64
		for _, it := range no.Items {
			total += it.PriceCents * int64(it.Quantity)
		}

		queryInsertOrder := `
			INSERT INTO orders (id, user_id, status, total_price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id, user_id, status, total_price_cents, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, queryInsertOrder, orderID, no.UserID, StatusPending, total).
			Scan(&order.ID, &order.UserID, &order.Status, &order.TotalPriceCents, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryInsertItem := `
			INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		for _, it := range no.Items {
			item := OrderItem{
				OrderID:    orderID,
				ProductID:  it.ProductID,
				Quantity:   it.Quantity,
				PriceCents: it.PriceCents,
			}
			err := tx.QueryRowContext(ctx, queryInsertItem, orderID, it.ProductID, it.Quantity, it.PriceCents).
				Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

// GetOrder returns the order and its line items, or ErrNotFound.
func (c *Conf) GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	var order Order

	queryOrder := `
		SELECT id, user_id, status, total_price_cents, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	err := c.db.QueryRowContext(ctx, queryOrder, orderID).
		Scan(&order.ID, &order.UserID, &order.Status, &order.TotalPriceCents, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, fmt.Errorf("failed to query order: %w", err)
	}

	queryItems := `
		SELECT id, order_id, product_id, quantity, price_cents, warehouse_id
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, queryItems, orderID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceCents, &item.WarehouseID); err != nil {
			return Order{}, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return order, items, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
