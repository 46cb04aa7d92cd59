package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type transferService interface {
	Create(ctx context.Context, req dto.CreateTransferRequest, actor models.Actor) (int64, error)
	Approve(ctx context.Context, id int64, actor models.Actor) (*models.Transfer, error)
	Get(ctx context.Context, id int64) (*models.Transfer, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]models.Transfer, error)
	List(ctx context.Context, query dto.TransferQuery) ([]models.Transfer, *models.Pagination, error)
}

// TransferHandler exposes device transfers.
type TransferHandler struct {
	service transferService
}

// NewTransferHandler builds a new handler.
func NewTransferHandler(service transferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// Create godoc
// @Summary Transfer a device to another laboratory
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.CreateTransferRequest true "Transfer payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid transfer payload"))
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
// @Summary Approve a transfer
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transfers/{id}/approve [post]
func (h *TransferHandler) Approve(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	transfer, err := h.service.Approve(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// Get godoc
// @Summary Get a transfer
// @Tags Transfers
// @Produce json
// @Param id path int true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id} [get]
func (h *TransferHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	transfer, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// ListByDevice godoc
// @Summary Transfer history of a device, newest first
// @Tags Transfers
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} response.Envelope
// @Router /devices/{id}/transfers [get]
func (h *TransferHandler) ListByDevice(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	transfers, err := h.service.ListByDevice(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfers, nil)
}

// List godoc
// @Summary List transfers
// @Tags Transfers
// @Produce json
// @Param deviceId query int false "Device filter"
// @Param facultyId query int false "Faculty filter (origin or destination)"
// @Param approved query bool false "Approval filter"
// @Success 200 {object} response.Envelope
// @Router /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	var query dto.TransferQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	transfers, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfers, pagination)
}
