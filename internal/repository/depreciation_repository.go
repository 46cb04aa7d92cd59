package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

const depreciationColumns = `id, device_id, original_price, expected_lifetime_years, annual_depreciation,
	calculation_date, current_book_value, depreciation_percentage, created_at`

// DepreciationRepository stores depreciation snapshots. Records are append-only.
type DepreciationRepository struct {
	db *sqlx.DB
}

// NewDepreciationRepository constructs the repository.
func NewDepreciationRepository(db *sqlx.DB) *DepreciationRepository {
	return &DepreciationRepository{db: db}
}

// Create appends a snapshot.
func (r *DepreciationRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.DepreciationRecord) error {
	const query = `
INSERT INTO depreciation_records (device_id, original_price, expected_lifetime_years, annual_depreciation,
	calculation_date, current_book_value, depreciation_percentage)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		record.DeviceID, record.OriginalPrice, record.ExpectedLifetimeYears, record.AnnualDepreciation,
		record.CalculationDate, record.CurrentBookValue, record.DepreciationPercentage,
	)
	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("insert depreciation record: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a device, or sql.ErrNoRows.
func (r *DepreciationRepository) Latest(ctx context.Context, deviceID int64) (*models.DepreciationRecord, error) {
	query := `SELECT ` + depreciationColumns + ` FROM depreciation_records WHERE device_id = $1 ORDER BY calculation_date DESC, id DESC LIMIT 1`
	var record models.DepreciationRecord
	if err := r.db.GetContext(ctx, &record, query, deviceID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByDevice returns every snapshot for a device, newest first.
func (r *DepreciationRepository) ListByDevice(ctx context.Context, deviceID int64) ([]models.DepreciationRecord, error) {
	query := `SELECT ` + depreciationColumns + ` FROM depreciation_records WHERE device_id = $1 ORDER BY calculation_date DESC, id DESC`
	var records []models.DepreciationRecord
	if err := r.db.SelectContext(ctx, &records, query, deviceID); err != nil {
		return nil, fmt.Errorf("list depreciation records: %w", err)
	}
	return records, nil
}
