// Package postgres is the storage layer for orders and the stock ledger.
// Transactions are explicit: callers receive a Tx scoped to one database
// transaction, and row-level locks (SELECT ... FOR UPDATE) serialize
// concurrent work on the same ledger rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/fulfillment"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return db, nil
}

// Migrate applies the goose migrations from the given filesystem.
func Migrate(db *sql.DB, migrations fs.FS) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ErrTxAborted marks a storage-level transaction failure (lock timeout,
// connection loss). Nothing partial persisted, so the caller may retry the
// whole operation.
var ErrTxAborted = errors.New("transaction aborted")

// Store wraps the database handle. Its WithTx satisfies fulfillment.Store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// WithTx runs fn inside one database transaction. fn returning an error
// rolls everything back; nil commits.
func (s *Store) WithTx(ctx context.Context, fn func(fulfillment.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin: %v", ErrTxAborted, err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %v", ErrTxAborted, err)
	}
	return nil
}

// GetStock returns the ledger rows of one product. Plain read, no locks.
func (s *Store) GetStock(ctx context.Context, productID int64) ([]inventory.StockEntry, error) {
	query := `
		SELECT product_id, warehouse_id, quantity, reserved, updated_at
		FROM stock_entries
		WHERE product_id = $1
		ORDER BY warehouse_id
	`
	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock entries: %w", err)
	}
	defer rows.Close()
	return scanStockEntries(rows)
}

// Intake records goods arriving at a warehouse: it creates the ledger row on
// first intake and adds to quantity afterwards.
func (s *Store) Intake(ctx context.Context, productID, warehouseID int64, qty int) (inventory.StockEntry, error) {
	if qty <= 0 {
		return inventory.StockEntry{}, fmt.Errorf("intake quantity must be positive, got %d", qty)
	}
	query := `
		INSERT INTO stock_entries (product_id, warehouse_id, quantity, reserved, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = stock_entries.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING product_id, warehouse_id, quantity, reserved, updated_at
	`
	var e inventory.StockEntry
	err := s.db.QueryRowContext(ctx, query, productID, warehouseID, qty).
		Scan(&e.ProductID, &e.WarehouseID, &e.Quantity, &e.Reserved, &e.UpdatedAt)
	if err != nil {
		return inventory.StockEntry{}, fmt.Errorf("failed to upsert stock entry: %w", err)
	}
	return e, nil
}

// pgTx adapts one *sql.Tx to the fulfillment.Tx interface.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]inventory.Item, error) {
	query := `
		SELECT id, product_id, quantity, warehouse_id
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := t.tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []inventory.Item
	for rows.Next() {
		var it inventory.Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.WarehouseID); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

// StockForUpdate locks every ledger row of the product for the rest of the
// transaction. Rows come back ordered by warehouse id so lock acquisition
// order is the same in every transaction.
func (t *pgTx) StockForUpdate(ctx context.Context, productID int64) ([]inventory.StockEntry, error) {
	query := `
		SELECT product_id, warehouse_id, quantity, reserved, updated_at
		FROM stock_entries
		WHERE product_id = $1
		ORDER BY warehouse_id
		FOR UPDATE
	`
	rows, err := t.tx.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock entries: %w", err)
	}
	defer rows.Close()
	return scanStockEntries(rows)
}

func (t *pgTx) AddReserved(ctx context.Context, productID, warehouseID int64, qty int) error {
	query := `
		UPDATE stock_entries
		SET reserved = reserved + $3, updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2 AND reserved + $3 <= quantity
	`
	return t.execOne(ctx, query, productID, warehouseID, qty)
}

func (t *pgTx) DeductStock(ctx context.Context, productID, warehouseID int64, qty int) error {
	query := `
		UPDATE stock_entries
		SET quantity = quantity - $3, reserved = reserved - $3, updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2 AND quantity >= $3 AND reserved >= $3
	`
	return t.execOne(ctx, query, productID, warehouseID, qty)
}

func (t *pgTx) ReleaseReserved(ctx context.Context, productID, warehouseID int64, qty int) error {
	query := `
		UPDATE stock_entries
		SET reserved = reserved - $3, updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2 AND reserved >= $3
	`
	return t.execOne(ctx, query, productID, warehouseID, qty)
}

func (t *pgTx) AddQuantity(ctx context.Context, productID, warehouseID int64, qty int) error {
	query := `
		UPDATE stock_entries
		SET quantity = quantity + $3, updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2
	`
	return t.execOne(ctx, query, productID, warehouseID, qty)
}

// BindWarehouse writes the warehouse binding exactly once; a second write is
// refused via the IS NULL guard.
func (t *pgTx) BindWarehouse(ctx context.Context, itemID, warehouseID int64) error {
	query := `
		UPDATE order_items
		SET warehouse_id = $2
		WHERE id = $1 AND warehouse_id IS NULL
	`
	result, err := t.tx.ExecContext(ctx, query, itemID, warehouseID)
	if err != nil {
		return fmt.Errorf("failed to bind warehouse: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("order item %d is already bound to a warehouse", itemID)
	}
	return nil
}

func (t *pgTx) OrderStatusForUpdate(ctx context.Context, orderID string) (orders.Status, error) {
	query := `SELECT status FROM orders WHERE id = $1 FOR UPDATE`
	var status orders.Status
	err := t.tx.QueryRowContext(ctx, query, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", orders.ErrNotFound
		}
		return "", fmt.Errorf("failed to lock order row: %w", err)
	}
	return status, nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, status orders.Status) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return orders.ErrNotFound
	}
	return nil
}

// execOne runs a guarded ledger update and treats zero affected rows as a
// violated guard: the row either does not exist or the move would break the
// 0 <= reserved <= quantity invariant.
func (t *pgTx) execOne(ctx context.Context, query string, productID, warehouseID int64, qty int) error {
	result, err := t.tx.ExecContext(ctx, query, productID, warehouseID, qty)
	if err != nil {
		return fmt.Errorf("failed to update stock entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("stock entry (product %d, warehouse %d) missing or move of %d units would violate ledger invariant",
			productID, warehouseID, qty)
	}
	return nil
}

func scanStockEntries(rows *sql.Rows) ([]inventory.StockEntry, error) {
	var entries []inventory.StockEntry
	for rows.Next() {
		var e inventory.StockEntry
		if err := rows.Scan(&e.ProductID, &e.WarehouseID, &e.Quantity, &e.Reserved, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock entries: %w", err)
	}
	return entries, nil
}
