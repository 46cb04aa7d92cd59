package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/middleware"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type deviceService interface {
	Create(ctx context.Context, req dto.CreateDeviceRequest, actor models.Actor) (*dto.CreateDeviceResult, error)
	Update(ctx context.Context, id int64, req dto.UpdateDeviceRequest, actor models.Actor) (*models.DeviceDetail, error)
	Get(ctx context.Context, id int64) (*models.DeviceDetail, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.DeviceDetail, error)
	List(ctx context.Context, query dto.DeviceQuery) ([]models.DeviceDetail, *models.Pagination, error)
	Stats(ctx context.Context) (*dto.DeviceStats, error)
	GetPublic(ctx context.Context, token string) (*dto.PublicDevice, bool, error)
}

// publicMaxAge bounds how long browsers and proxies keep a scanned card.
const publicMaxAge = time.Minute

// DeviceHandler exposes the device registry.
type DeviceHandler struct {
	service deviceService
}

// NewDeviceHandler builds a new handler.
func NewDeviceHandler(service deviceService) *DeviceHandler {
	return &DeviceHandler{service: service}
}

// Create godoc
// @Summary Register a device
// @Tags Devices
// @Accept json
// @Produce json
// @Param payload body dto.CreateDeviceRequest true "Device payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /devices [post]
func (h *DeviceHandler) Create(c *gin.Context) {
	var req dto.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid device payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update editable device fields
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path int true "Device ID"
// @Param payload body dto.UpdateDeviceRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /devices/{id} [patch]
func (h *DeviceHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid device payload"))
		return
	}
	device, err := h.service.Update(c.Request.Context(), id, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, device, nil)
}

// Get godoc
// @Summary Get a device
// @Tags Devices
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /devices/{id} [get]
func (h *DeviceHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	device, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, device, nil)
}

// GetByCode godoc
// @Summary Get a device by its device code
// @Tags Devices
// @Produce json
// @Param deviceId path string true "Device code, e.g. DEV-SCI-2025-0001"
// @Success 200 {object} response.Envelope
// @Router /devices/code/{deviceId} [get]
func (h *DeviceHandler) GetByCode(c *gin.Context) {
	device, err := h.service.GetByDeviceID(c.Request.Context(), c.Param("deviceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, device, nil)
}

// List godoc
// @Summary List devices
// @Tags Devices
// @Produce json
// @Param facultyId query int false "Faculty filter"
// @Param departmentId query int false "Department filter"
// @Param laboratoryId query int false "Laboratory filter"
// @Param status query string false "working, under_maintenance or out_of_service"
// @Param category query string false "Category filter"
// @Param q query string false "Name or device code search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	var query dto.DeviceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	devices, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, devices, pagination)
}

// Stats godoc
// @Summary Device counts by status, category, faculty and top brands
// @Tags Devices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /devices/stats [get]
func (h *DeviceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Public godoc
// @Summary Public device card for a scanned QR code
// @Tags Public
// @Produce json
// @Param token path string true "QR code token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/devices/{token} [get]
func (h *DeviceHandler) Public(c *gin.Context) {
	card, hit, err := h.service.GetPublic(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.Public(c, card, publicMaxAge, middleware.ExtractMeta(c))
}
