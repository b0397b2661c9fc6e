package handlers

import (
	"context"
	"net/http"
	"os"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"
	"github.com/StereoSachiiii/royal-liqour-sub000/middleware"

	"github.com/gin-gonic/gin"
)

// OrderStore creates and reads orders. Satisfied by orders.Conf and the
// memory store.
type OrderStore interface {
	CreateOrder(ctx context.Context, no orders.NewOrder) (orders.Order, []orders.OrderItem, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, []orders.OrderItem, error)
}

// StockStore reads the stock ledger and records intake.
type StockStore interface {
	GetStock(ctx context.Context, productID int64) ([]inventory.StockEntry, error)
	Intake(ctx context.Context, productID, warehouseID int64, qty int) (inventory.StockEntry, error)
}

// Fulfillment is the order lifecycle surface. Satisfied by
// fulfillment.Service.
type Fulfillment interface {
	Reserve(ctx context.Context, orderID string) error
	ConfirmPayment(ctx context.Context, orderID string) error
	Ship(ctx context.Context, orderID string) error
	Deliver(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) error
	Refund(ctx context.Context, orderID string) error
}

type Handler struct {
	o OrderStore
	s StockStore
	f Fulfillment
}

func NewHandler(o OrderStore, s StockStore, f Fulfillment) *Handler {
	return &Handler{o: o, s: s, f: f}
}

func API(endpointPrefix string, o OrderStore, s StockStore, f Fulfillment) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	h := NewHandler(o, s, f)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders/:id", h.GetOrder)

		v1.POST("/orders/:id/reserve", h.Reserve)
		v1.POST("/orders/:id/confirm-payment", h.ConfirmPayment)
		v1.POST("/orders/:id/ship", h.Ship)
		v1.POST("/orders/:id/deliver", h.Deliver)
		v1.POST("/orders/:id/cancel", h.Cancel)
		v1.POST("/orders/:id/refund", h.Refund)

		v1.GET("/stock/:productID", h.GetStock)
		v1.POST("/stock/intake", h.Intake)

		v1.POST("/webhook", h.Webhook)
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
