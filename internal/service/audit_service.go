package service

import (
	"context"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
)

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit ledger to administrators.
type AuditService struct {
	repo auditReader
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit entries matching the query, newest first.
func (s *AuditService) List(ctx context.Context, query dto.AuditQuery, actor models.Actor) ([]models.AuditLog, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, nil, err
	}
	page, size := pageParams(query.Page, query.PageSize)
	logs, total, err := s.repo.List(ctx, models.AuditFilter{
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		UserID:     query.UserID,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
