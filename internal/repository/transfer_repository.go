package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

const transferColumns = `id, device_id, from_laboratory_id, from_department_id, from_faculty_id,
	to_laboratory_id, to_department_id, to_faculty_id, transfer_date, reason, notes,
	approved_by, approval_date, created_by, created_at`

// TransferRepository persists transfer records. Rows are never deleted and
// only the approval columns are ever updated.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a transfer row.
func (r *TransferRepository) Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.Transfer) error {
	const query = `
INSERT INTO transfers (device_id, from_laboratory_id, from_department_id, from_faculty_id,
	to_laboratory_id, to_department_id, to_faculty_id, transfer_date, reason, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		transfer.DeviceID, transfer.FromLaboratoryID, transfer.FromDepartmentID, transfer.FromFacultyID,
		transfer.ToLaboratoryID, transfer.ToDepartmentID, transfer.ToFacultyID,
		transfer.TransferDate, transfer.Reason, transfer.Notes, transfer.CreatedBy,
	)
	if err := row.Scan(&transfer.ID, &transfer.CreatedAt); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID loads a transfer.
func (r *TransferRepository) GetByID(ctx context.Context, id int64) (*models.Transfer, error) {
	return r.get(ctx, r.db, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
}

// Lock loads a transfer and holds a row lock until the transaction ends.
func (r *TransferRepository) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Transfer, error) {
	return r.get(ctx, executor(r.db, exec), `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransferRepository) get(ctx context.Context, exec sqlx.ExtContext, query string, id int64) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := sqlx.GetContext(ctx, exec, &transfer, query, id); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// Approve records the approver. Already approved transfers are left untouched
// and reported as sql.ErrNoRows.
func (r *TransferRepository) Approve(ctx context.Context, exec sqlx.ExtContext, id, approvedBy int64, at time.Time) error {
	const query = `UPDATE transfers SET approved_by = $1, approval_date = $2 WHERE id = $3 AND approved_by IS NULL`
	return execOne(ctx, executor(r.db, exec), "approve transfer", query, approvedBy, at, id)
}

// ListByDevice returns the transfer history of a device, newest first.
func (r *TransferRepository) ListByDevice(ctx context.Context, deviceID int64) ([]models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE device_id = $1 ORDER BY transfer_date DESC, id DESC`
	var transfers []models.Transfer
	if err := r.db.SelectContext(ctx, &transfers, query, deviceID); err != nil {
		return nil, fmt.Errorf("list device transfers: %w", err)
	}
	return transfers, nil
}

// List returns transfers matching the filter plus the total match count.
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.Transfer, int, error) {
	where := sq.And{}
	if filter.DeviceID != nil {
		where = append(where, sq.Eq{"device_id": *filter.DeviceID})
	}
	if filter.FacultyID != nil {
		where = append(where, sq.Or{
			sq.Eq{"from_faculty_id": *filter.FacultyID},
			sq.Eq{"to_faculty_id": *filter.FacultyID},
		})
	}
	if filter.Approved != nil {
		if *filter.Approved {
			where = append(where, sq.NotEq{"approved_by": nil})
		} else {
			where = append(where, sq.Eq{"approved_by": nil})
		}
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("transfers").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build transfer count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := psql.Select(transferColumns).From("transfers").Where(where).
		OrderBy("transfer_date DESC", "id DESC").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build transfer list: %w", err)
	}
	var transfers []models.Transfer
	if err := r.db.SelectContext(ctx, &transfers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, total, nil
}
