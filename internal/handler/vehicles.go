package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streetmaint/internal/service"
)

// VehicleHandler serves the query surface. Successful responses use the
// vehicle/location shapes directly; only errors use the envelope.
type VehicleHandler struct {
	Service *service.VehicleQueryService
	Logger  *zap.Logger
}

func (h *VehicleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/vehicles")
	group.GET("", h.list)
	group.GET("/:id", h.detail)
}

func (h *VehicleHandler) list(c *gin.Context) {
	params, err := h.Service.ParseParams(c.Request.URL.Query())
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	views, err := h.Service.List(c.Request.Context(), params)
	if err != nil {
		h.Logger.Warn("vehicle list query failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, "query failed", nil)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *VehicleHandler) detail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid vehicle id", nil)
		return
	}

	params, err := h.Service.ParseParams(c.Request.URL.Query())
	if err != nil {
		var paramErr *service.ParamError
		if errors.As(err, &paramErr) {
			Error(c, http.StatusBadRequest, paramErr.Error(), nil)
			return
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	view, err := h.Service.Detail(c.Request.Context(), id, params)
	if err != nil {
		h.Logger.Warn("vehicle detail query failed", zap.Uint64("id", id), zap.Error(err))
		Error(c, http.StatusInternalServerError, "query failed", nil)
		return
	}
	if view == nil {
		Error(c, http.StatusNotFound, "vehicle not found", nil)
		return
	}
	c.JSON(http.StatusOK, view)
}
