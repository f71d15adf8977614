package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Wizard2999/el-super-cafe-backend/internal/apierror"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

type adjustStockRequest struct {
	Delta  decimal.Decimal `json:"delta"  validate:"required"`
	Reason string          `json:"reason" validate:"omitempty,oneof=admin_update initial_stock"`
}

// AdjustStock applies a manual stock correction outside the sale path.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req adjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.AdjustStock(c.Request.Context(), id, req.Delta, req.Reason); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrProductNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}
