package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, query dto.AuditQuery, actor models.Actor) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit ledger.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param entityType query string false "device, transfer or maintenance"
// @Param entityId query int false "Entity ID"
// @Param userId query int false "Acting user"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var query dto.AuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	logs, pagination, err := h.service.List(c.Request.Context(), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
