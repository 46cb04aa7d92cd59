package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type maintenanceService interface {
	Create(ctx context.Context, req dto.CreateMaintenanceRequest, actor models.Actor) (int64, error)
	Approve(ctx context.Context, id int64, req dto.ApproveMaintenanceRequest, actor models.Actor) (*models.MaintenanceRequest, error)
	Start(ctx context.Context, id int64, actor models.Actor) (*models.MaintenanceRequest, error)
	Complete(ctx context.Context, id int64, req dto.CompleteMaintenanceRequest, actor models.Actor) (*models.MaintenanceHistory, error)
	Cancel(ctx context.Context, id int64, req dto.CancelMaintenanceRequest, actor models.Actor) (*models.MaintenanceRequest, error)
	Get(ctx context.Context, id int64) (*models.MaintenanceRequest, error)
	List(ctx context.Context, query dto.MaintenanceQuery) ([]models.MaintenanceRequest, *models.Pagination, error)
	HistoryByDevice(ctx context.Context, deviceID int64) ([]models.MaintenanceHistory, error)
}

// MaintenanceHandler exposes the maintenance workflow.
type MaintenanceHandler struct {
	service maintenanceService
}

// NewMaintenanceHandler builds a new handler.
func NewMaintenanceHandler(service maintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: service}
}

// Create godoc
// @Summary Request maintenance for a device
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body dto.CreateMaintenanceRequest true "Maintenance request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /maintenance [post]
func (h *MaintenanceHandler) Create(c *gin.Context) {
	var req dto.CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid maintenance payload"))
		return
	}
	id, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.IDResponse{ID: id})
}

// Approve godoc
// @Summary Approve a maintenance request and assign a technician
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.ApproveMaintenanceRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/approve [post]
func (h *MaintenanceHandler) Approve(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApproveMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid approval payload"))
		return
	}
	request, err := h.service.Approve(c.Request.Context(), id, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Start godoc
// @Summary Start approved maintenance work
// @Tags Maintenance
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/start [post]
func (h *MaintenanceHandler) Start(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	request, err := h.service.Start(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Complete godoc
// @Summary Complete maintenance and record history
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.CompleteMaintenanceRequest false "Cost and notes"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/complete [post]
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CompleteMaintenanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid completion payload"))
			return
		}
	}
	history, err := h.service.Complete(c.Request.Context(), id, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Cancel godoc
// @Summary Cancel an open maintenance request
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.CancelMaintenanceRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/cancel [post]
func (h *MaintenanceHandler) Cancel(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CancelMaintenanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid cancel payload"))
			return
		}
	}
	request, err := h.service.Cancel(c.Request.Context(), id, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Get a maintenance request
// @Tags Maintenance
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id} [get]
func (h *MaintenanceHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	request, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List maintenance requests
// @Tags Maintenance
// @Produce json
// @Param deviceId query int false "Device filter"
// @Param assignedTo query int false "Assignee filter"
// @Param status query []string false "Status filter, repeatable or comma separated"
// @Success 200 {object} response.Envelope
// @Router /maintenance [get]
func (h *MaintenanceHandler) List(c *gin.Context) {
	var query dto.MaintenanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// History godoc
// @Summary Completed maintenance for a device
// @Tags Maintenance
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} response.Envelope
// @Router /devices/{id}/maintenance-history [get]
func (h *MaintenanceHandler) History(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.service.HistoryByDevice(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
