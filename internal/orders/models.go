package orders

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// Order is an order row in the database.
type Order struct {
	ID              string    `json:"id"`      // UUID
	UserID          string    `json:"user_id"` // UUID of the user placing the order
	Status          Status    `json:"status"`
	TotalPriceCents int64     `json:"total_price_cents"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OrderItem is one product line within an order. WarehouseID stays nil until
// the reservation engine binds the item to the warehouse that fulfills it.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
	WarehouseID *int64 `json:"warehouse_id,omitempty"`
}

// NewOrder is the payload for creating an order.
type NewOrder struct {
	UserID string         `json:"user_id" validate:"required,uuid4"`
	Items  []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

type NewOrderItem struct {
	ProductID  int64 `json:"product_id" validate:"required,min=1"`
	Quantity   int   `json:"quantity" validate:"required,min=1"`
	PriceCents int64 `json:"price_cents" validate:"min=0"`
}
