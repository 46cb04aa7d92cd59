package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

// AuditRepository is the append-only audit ledger. It exposes no update or delete.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry, inside exec's transaction when given.
func (r *AuditRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	const query = `
INSERT INTO audit_logs (entity_type, entity_id, action, user_id, old_values, new_values, ip_address)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
		nullableJSON(entry.OldValues), nullableJSON(entry.NewValues), entry.IPAddress,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first, plus the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	where := sq.And{}
	if filter.EntityType != "" {
		where = append(where, sq.Eq{"entity_type": filter.EntityType})
	}
	if filter.EntityID != nil {
		where = append(where, sq.Eq{"entity_id": *filter.EntityID})
	}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"user_id": *filter.UserID})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("audit_logs").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := psql.Select(
		"id", "entity_type", "entity_id", "action", "user_id",
		"COALESCE(old_values, 'null'::jsonb) AS old_values",
		"COALESCE(new_values, 'null'::jsonb) AS new_values",
		"ip_address", "created_at",
	).From("audit_logs").Where(where).
		OrderBy("created_at DESC", "id DESC").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit list: %w", err)
	}
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
