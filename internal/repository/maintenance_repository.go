package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

const maintenanceColumns = `id, device_id, maintenance_type, status, requested_by, assigned_to,
	scheduled_date, completed_date, cost, current_issue, notes, created_by, created_at, updated_at`

const maintenanceHistoryColumns = `id, device_id, maintenance_request_id, maintenance_type, technician_name,
	technician_id, maintenance_date, cost, notes, created_by, created_at`

// MaintenanceRepository persists maintenance requests and their history.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs the repository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// Create inserts a maintenance request.
func (r *MaintenanceRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.MaintenanceRequest) error {
	if req.Status == "" {
		req.Status = models.MaintenanceStatusRequested
	}
	const query = `
INSERT INTO maintenance_requests (device_id, maintenance_type, status, requested_by, assigned_to,
	scheduled_date, current_issue, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at, updated_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		req.DeviceID, req.MaintenanceType, req.Status, req.RequestedBy, req.AssignedTo,
		req.ScheduledDate, req.CurrentIssue, req.Notes, req.CreatedBy,
	)
	if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return fmt.Errorf("insert maintenance request: %w", err)
	}
	return nil
}

// GetByID loads a maintenance request.
func (r *MaintenanceRepository) GetByID(ctx context.Context, id int64) (*models.MaintenanceRequest, error) {
	return r.get(ctx, r.db, `SELECT `+maintenanceColumns+` FROM maintenance_requests WHERE id = $1`, id)
}

// Lock loads a request and holds a row lock until the transaction ends.
func (r *MaintenanceRepository) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.MaintenanceRequest, error) {
	return r.get(ctx, executor(r.db, exec), `SELECT `+maintenanceColumns+` FROM maintenance_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *MaintenanceRepository) get(ctx context.Context, exec sqlx.ExtContext, query string, id int64) (*models.MaintenanceRequest, error) {
	var req models.MaintenanceRequest
	if err := sqlx.GetContext(ctx, exec, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasOpenRequest reports whether the device has a request that is not yet completed or cancelled.
func (r *MaintenanceRepository) HasOpenRequest(ctx context.Context, exec sqlx.ExtContext, deviceID int64) (bool, error) {
	query, args, err := psql.Select("1").From("maintenance_requests").
		Where(sq.Eq{"device_id": deviceID, "status": models.OpenMaintenanceStatuses}).
		Prefix("SELECT EXISTS(").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build open request check: %w", err)
	}
	found, err := exists(ctx, executor(r.db, exec), query, args...)
	if err != nil {
		return false, fmt.Errorf("check open maintenance: %w", err)
	}
	return found, nil
}

// Transition describes a status change guarded by the expected current status.
type Transition struct {
	ID            int64
	From          models.MaintenanceStatus
	To            models.MaintenanceStatus
	AssignedTo    *int64
	ScheduledDate *time.Time
	CompletedDate *time.Time
	Cost          *float64
	Notes         *string
}

// UpdateStatus applies a transition. A request no longer in From yields sql.ErrNoRows.
func (r *MaintenanceRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, t Transition) error {
	builder := psql.Update("maintenance_requests").
		Set("status", t.To).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": t.ID, "status": t.From})
	if t.AssignedTo != nil {
		builder = builder.Set("assigned_to", *t.AssignedTo)
	}
	if t.ScheduledDate != nil {
		builder = builder.Set("scheduled_date", *t.ScheduledDate)
	}
	if t.CompletedDate != nil {
		builder = builder.Set("completed_date", *t.CompletedDate)
	}
	if t.Cost != nil {
		builder = builder.Set("cost", *t.Cost)
	}
	if t.Notes != nil {
		builder = builder.Set("notes", *t.Notes)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build maintenance transition: %w", err)
	}
	return execOne(ctx, executor(r.db, exec), "update maintenance status", query, args...)
}

// CreateHistory appends the completion record for a request. The unique
// constraint on maintenance_request_id rejects a second record.
func (r *MaintenanceRepository) CreateHistory(ctx context.Context, exec sqlx.ExtContext, h *models.MaintenanceHistory) error {
	const query = `
INSERT INTO maintenance_history (device_id, maintenance_request_id, maintenance_type, technician_name,
	technician_id, maintenance_date, cost, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		h.DeviceID, h.MaintenanceRequestID, h.MaintenanceType, h.TechnicianName,
		h.TechnicianID, h.MaintenanceDate, h.Cost, h.Notes, h.CreatedBy,
	)
	if err := row.Scan(&h.ID, &h.CreatedAt); err != nil {
		return fmt.Errorf("insert maintenance history: %w", err)
	}
	return nil
}

// ListHistoryByDevice returns completed maintenance for a device, newest first.
func (r *MaintenanceRepository) ListHistoryByDevice(ctx context.Context, deviceID int64) ([]models.MaintenanceHistory, error) {
	query := `SELECT ` + maintenanceHistoryColumns + ` FROM maintenance_history WHERE device_id = $1 ORDER BY maintenance_date DESC, id DESC`
	var history []models.MaintenanceHistory
	if err := r.db.SelectContext(ctx, &history, query, deviceID); err != nil {
		return nil, fmt.Errorf("list maintenance history: %w", err)
	}
	return history, nil
}

// List returns requests matching the filter plus the total match count.
func (r *MaintenanceRepository) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	where := sq.And{}
	if filter.DeviceID != nil {
		where = append(where, sq.Eq{"device_id": *filter.DeviceID})
	}
	if filter.AssignedTo != nil {
		where = append(where, sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	if len(filter.Status) > 0 {
		where = append(where, sq.Eq{"status": filter.Status})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("maintenance_requests").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build maintenance count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance requests: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := psql.Select(maintenanceColumns).From("maintenance_requests").Where(where).
		OrderBy("created_at DESC", "id DESC").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build maintenance list: %w", err)
	}
	var requests []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance requests: %w", err)
	}
	return requests, total, nil
}
