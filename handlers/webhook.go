package handlers

import (
	"log/slog"
	"net/http"

	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/ctxmanage"
	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

type paymentEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
}

// Webhook receives payment callbacks from the payment gateway integration
// (owned by the order service, not this core) and settles the order on
// confirmation.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var event paymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		slog.Error("failed to bind webhook payload", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event.Type {
	case "payment.confirmed":
		if event.OrderID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "order_id missing"})
			return
		}
		if err := h.f.ConfirmPayment(c.Request.Context(), event.OrderID); err != nil {
			status, message := transitionErrorResponse(err)
			slog.Error("payment confirmation failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, event.OrderID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}
		slog.Info("payment confirmed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, event.OrderID))
		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled webhook event type", slog.String(logkey.TraceID, traceId),
			slog.String("event_type", event.Type))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not handled", "event": event.Type})
	}
}
