package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditAppender interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
}

var allRoles = []models.UserRole{models.RoleAdmin, models.RoleUnitManager, models.RoleTechnician, models.RoleUser}

// inTx runs fn inside a transaction and commits when fn succeeds.
func inTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit transaction")
	}
	return nil
}

func requireRole(actor models.Actor, roles ...models.UserRole) error {
	if actor.UserID <= 0 || actor.Role == "" {
		return appErrors.ErrUnauthorized
	}
	if !actor.HasRole(roles...) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	return nil
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// notFoundOr maps sql.ErrNoRows to a NotFound error with message and anything else to an internal error.
func notFoundOr(err error, message, internalMessage string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, internalMessage)
}

func newAuditEntry(entityType string, entityID int64, action string, actor models.Actor, before, after interface{}) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     actor.UserID,
	}
	if actor.IPAddress != "" {
		ip := actor.IPAddress
		entry.IPAddress = &ip
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return nil, internalError(err, "failed to encode audit snapshot")
		}
		entry.OldValues = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return nil, internalError(err, "failed to encode audit snapshot")
		}
		entry.NewValues = payload
	}
	return entry, nil
}

func appendAudit(ctx context.Context, audit auditAppender, exec sqlx.ExtContext, entityType string, entityID int64, action string, actor models.Actor, before, after interface{}) error {
	entry, err := newAuditEntry(entityType, entityID, action, actor, before, after)
	if err != nil {
		return err
	}
	if err := audit.Append(ctx, exec, entry); err != nil {
		return internalError(err, "failed to write audit log")
	}
	return nil
}

// trimOptional returns nil for nil or whitespace-only input.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// parseDay accepts a calendar date or an RFC3339 timestamp and keeps the UTC day.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	parsed = parsed.UTC()
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseOptionalDay is parseDay for optional fields; blank input yields nil.
func parseOptionalDay(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := parseDay(*raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func formatOptionalDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(dateLayout)
	return &formatted
}

func pageParams(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}

func publicCacheKey(token string) string {
	return "device:public:" + token
}

const statsCacheKey = "device:stats"

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
