package inventory

import "time"

// StockEntry is one row of the stock ledger: the quantity of a product
// physically held at one warehouse, plus the part of it held against
// unsettled orders.
type StockEntry struct {
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Quantity    int       `json:"quantity"` // total physical units, never negative
	Reserved    int       `json:"reserved"` // 0 <= reserved <= quantity
	UpdatedAt   time.Time `json:"updated_at"`
}

// Available is the amount a new order may still claim from this entry.
func (e StockEntry) Available() int {
	return e.Quantity - e.Reserved
}

// Item is the engine's view of one order line: enough to pick a warehouse,
// move ledger quantities and record the binding back on the row.
type Item struct {
	ID          int64
	ProductID   int64
	Quantity    int
	WarehouseID *int64 // nil until a reservation binds the item to a warehouse
}
