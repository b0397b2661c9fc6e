package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/ctxmanage"
	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type intakeRequest struct {
	ProductID   int64 `json:"product_id" validate:"required,min=1"`
	WarehouseID int64 `json:"warehouse_id" validate:"required,min=1"`
	Quantity    int   `json:"quantity" validate:"required,min=1"`
}

func (h *Handler) GetStock(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
	if err != nil || productID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	entries, err := h.s.GetStock(c.Request.Context(), productID)
	if err != nil {
		slog.Error("error retrieving stock", slog.String(logkey.TraceID, traceId),
			slog.Int64("product_id", productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stock"})
		return
	}

	available := 0
	for _, e := range entries {
		available += e.Available()
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"available":  available,
		"entries":    entries,
	})
}

// Intake records a delivery of goods into a warehouse. Admin surface; the
// reservation engine never creates ledger rows itself.
func (h *Handler) Intake(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErrs[0].Field() + " value invalid"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	entry, err := h.s.Intake(c.Request.Context(), req.ProductID, req.WarehouseID, req.Quantity)
	if err != nil {
		slog.Error("error recording stock intake", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to record intake"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
