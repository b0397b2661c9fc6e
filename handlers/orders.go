package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/stores/postgres"
	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/ctxmanage"
	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId),
			slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var newOrder orders.NewOrder
	if err := c.ShouldBindJSON(&newOrder); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	validate := validator.New()
	if err := validate.Struct(newOrder); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			slog.Error("validation failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErrs[0].Field() + " value invalid"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	order, items, err := h.o.CreateOrder(c.Request.Context(), newOrder)
	if err != nil {
		slog.Error("error creating order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Order Creation Failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID := c.Param("id")

	order, items, err := h.o.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error retrieving order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) Reserve(c *gin.Context) {
	h.runTransition(c, "reserve", h.f.Reserve)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	h.runTransition(c, "confirm-payment", h.f.ConfirmPayment)
}

func (h *Handler) Ship(c *gin.Context) {
	h.runTransition(c, "ship", h.f.Ship)
}

func (h *Handler) Deliver(c *gin.Context) {
	h.runTransition(c, "deliver", h.f.Deliver)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.runTransition(c, "cancel", h.f.Cancel)
}

func (h *Handler) Refund(c *gin.Context) {
	h.runTransition(c, "refund", h.f.Refund)
}

func (h *Handler) runTransition(c *gin.Context, name string,
	fn func(ctx context.Context, orderID string) error) {

	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID := c.Param("id")

	err := fn(c.Request.Context(), orderID)
	if err != nil {
		status, message := transitionErrorResponse(err)
		slog.Error("order transition failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String("transition", name),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "transition": name})
}

// transitionErrorResponse maps engine and state-machine errors onto HTTP
// statuses: caller mistakes are 409/404, everything else is a 500 the caller
// may retry since failed transitions never partially apply.
func transitionErrorResponse(err error) (int, string) {
	var insufficient *inventory.InsufficientStockError
	var invalid *orders.InvalidTransitionError

	switch {
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.As(err, &insufficient):
		return http.StatusConflict, insufficient.Error()
	case errors.Is(err, inventory.ErrAlreadyReserved):
		return http.StatusConflict, inventory.ErrAlreadyReserved.Error()
	case errors.As(err, &invalid):
		return http.StatusConflict, invalid.Error()
	case errors.Is(err, inventory.ErrNoItems),
		errors.Is(err, inventory.ErrNotReserved),
		errors.Is(err, inventory.ErrMixedItemState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, postgres.ErrTxAborted):
		return http.StatusServiceUnavailable, "Transaction aborted, retry the operation"
	default:
		return http.StatusInternalServerError, "Order transition failed"
	}
}
