package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type depreciationService interface {
	Latest(ctx context.Context, deviceID int64) (*models.DepreciationRecord, error)
	History(ctx context.Context, deviceID int64) ([]models.DepreciationRecord, error)
	Calculate(ctx context.Context, deviceID int64, actor models.Actor) (*models.DepreciationRecord, error)
	EndOfLife(ctx context.Context, within time.Duration, actor models.Actor) ([]models.EndOfLifeDevice, error)
}

// DepreciationHandler exposes book values.
type DepreciationHandler struct {
	service depreciationService
}

// NewDepreciationHandler builds a new handler.
func NewDepreciationHandler(service depreciationService) *DepreciationHandler {
	return &DepreciationHandler{service: service}
}

// Latest godoc
// @Summary Latest depreciation snapshot of a device
// @Tags Depreciation
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /devices/{id}/depreciation [get]
func (h *DepreciationHandler) Latest(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Latest(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// History godoc
// @Summary All depreciation snapshots of a device
// @Tags Depreciation
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} response.Envelope
// @Router /devices/{id}/depreciation/history [get]
func (h *DepreciationHandler) History(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Calculate godoc
// @Summary Record a fresh depreciation snapshot
// @Tags Depreciation
// @Produce json
// @Param id path int true "Device ID"
// @Success 201 {object} response.Envelope
// @Router /devices/{id}/depreciation [post]
func (h *DepreciationHandler) Calculate(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Calculate(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// EndOfLife godoc
// @Summary Devices reaching the end of their expected lifetime
// @Tags Depreciation
// @Produce json
// @Param withinDays query int false "Look-ahead window in days"
// @Success 200 {object} response.Envelope
// @Router /depreciation/end-of-life [get]
func (h *DepreciationHandler) EndOfLife(c *gin.Context) {
	var within time.Duration
	if raw := c.Query("withinDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "withinDays must be a positive integer"))
			return
		}
		within = time.Duration(days) * 24 * time.Hour
	}
	devices, err := h.service.EndOfLife(c.Request.Context(), within, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, devices, nil)
}
