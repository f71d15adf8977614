package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wizard2999/el-super-cafe-backend/internal/apierror"
	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
)

type SalesHandler struct{ svc service.SaleService }

func NewSalesHandler(svc service.SaleService) *SalesHandler { return &SalesHandler{svc: svc} }

// Checkout uploads one sale with stock validation. A shortfall rejects the
// whole sale with 409 and the itemized list; nothing is written.
func (h *SalesHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Checkout(c.Request.Context(), req)
	if err != nil {
		var conflict *service.StockConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, apierror.NewStockConflict(conflict.Error(), conflict.Shortfalls))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelSaleRequest
	_ = c.ShouldBindJSON(&req) // body optional

	resp, err := h.svc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrSaleNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalesHandler) DeleteItem(c *gin.Context) {
	saleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemId")
	if !ok {
		return
	}
	resp, err := h.svc.DeleteItem(c.Request.Context(), saleID, itemID)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrItemNotFound) || errors.Is(err, service.ErrSaleNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SalesHandler) UpdateItemStatus(c *gin.Context) {
	saleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemId")
	if !ok {
		return
	}
	var req dto.UpdateItemStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.UpdateItemStatus(c.Request.Context(), saleID, itemID, req.PreparationStatus); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrItemNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}
