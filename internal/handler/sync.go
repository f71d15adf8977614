package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wizard2999/el-super-cafe-backend/internal/apierror"
	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
)

type SyncHandler struct{ svc service.SyncService }

func NewSyncHandler(svc service.SyncService) *SyncHandler { return &SyncHandler{svc: svc} }

// syncError maps reconciler failures. Stock shortfalls and duplicate-open
// refusals abort the whole upload with nothing persisted, so they come back
// as request-level 409s; anything else is a 500.
func syncError(c *gin.Context, err error) {
	var stockConflict *service.StockConflictError
	if errors.As(err, &stockConflict) {
		c.JSON(http.StatusConflict, apierror.NewStockConflict(stockConflict.Error(), stockConflict.Shortfalls))
		return
	}
	var shiftConflict *service.DuplicateOpenShiftError
	if errors.As(err, &shiftConflict) {
		c.JSON(http.StatusConflict, apierror.NewShiftConflict(shiftConflict.Error(), shiftConflict.ExistingID.String()))
		return
	}
	c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
}

// Batch reconciles a full device upload: shifts, sales, items, movements.
// Malformed records come back as per-record errors in a 200; a stock
// shortfall or duplicate open shift rolls everything back and 409s.
func (h *SyncHandler) Batch(c *gin.Context) {
	var req dto.SyncBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SyncBatch(c.Request.Context(), deviceID(c), req)
	if err != nil {
		syncError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) Sales(c *gin.Context) {
	var req dto.SyncSalesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SyncSales(c.Request.Context(), deviceID(c), req)
	if err != nil {
		syncError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) Movements(c *gin.Context) {
	var req dto.SyncMovementsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SyncMovements(c.Request.Context(), deviceID(c), req)
	if err != nil {
		syncError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) Status(c *gin.Context) {
	resp, err := h.svc.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Users is the device download of operators for offline PIN validation.
func (h *SyncHandler) Users(c *gin.Context) {
	resp, err := h.svc.Users(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}
