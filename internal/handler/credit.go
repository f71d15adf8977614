package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wizard2999/el-super-cafe-backend/internal/apierror"
	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
)

type CreditHandler struct{ svc service.CreditService }

func NewCreditHandler(svc service.CreditService) *CreditHandler { return &CreditHandler{svc: svc} }

// RegisterPayment applies a payment FIFO across the customer's open charges.
func (h *CreditHandler) RegisterPayment(c *gin.Context) {
	customerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CreditPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegisterPayment(c.Request.Context(), customerID, actor(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CreditHandler) OpeningBalance(c *gin.Context) {
	customerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.OpeningBalanceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateOpeningBalance(c.Request.Context(), customerID, actor(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CreditHandler) Detail(c *gin.Context) {
	customerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.CustomerDetail(c.Request.Context(), customerID)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}
