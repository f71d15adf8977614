package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Wizard2999/el-super-cafe-backend/internal/apierror"
	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/middleware"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/service"
)

type ShiftsHandler struct{ svc service.ShiftService }

func NewShiftsHandler(svc service.ShiftService) *ShiftsHandler { return &ShiftsHandler{svc: svc} }

// Active resolves the caller's working shift: their own waiting shift wins
// over the globally open one. 404 when neither exists.
func (h *ShiftsHandler) Active(c *gin.Context) {
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.GetActive(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenShift) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) Activate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActivateShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Activate(c.Request.Context(), id, userID, req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrNotShiftOwner) {
			status = http.StatusForbidden
		}
		c.JSON(status, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) Close(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), id, actor(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) Handover(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.HandoverRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.HandoverPendingSales(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) HandoverAndClose(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.HandoverAndCloseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.HandoverAndClose(c.Request.Context(), id, actor(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) AtomicHandover(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AtomicHandoverRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AtomicHandover(c.Request.Context(), id, actor(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OpenShifts lists open shifts for the handover target picker. The optional
// `exclude` query param hides the caller's own shift.
func (h *ShiftsHandler) OpenShifts(c *gin.Context) {
	var exclude *uuid.UUID
	if raw := c.Query("exclude"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("exclude inválido"))
			return
		}
		exclude = &id
	}
	resp, err := h.svc.ListOpen(c.Request.Context(), exclude)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ShiftsHandler) TransferTables(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.TransferTablesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.TransferTablesToUser(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}
