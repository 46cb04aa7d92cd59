package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

func TestDepreciationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepreciationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO depreciation_records")).
		WithArgs(int64(7), 1000.0, 4, 250.0, sqlmock.AnyArg(), 1000.0, 0.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, now))

	record := &models.DepreciationRecord{
		DeviceID: 7, OriginalPrice: 1000, ExpectedLifetimeYears: 4,
		AnnualDepreciation: 250, CalculationDate: now, CurrentBookValue: 1000,
	}
	require.NoError(t, repo.Create(context.Background(), nil, record))
	assert.EqualValues(t, 5, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepreciationRepositoryLatestEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepreciationRepository(db)

	mock.ExpectQuery(`(?s)FROM depreciation_records WHERE device_id = \$1 ORDER BY calculation_date DESC, id DESC LIMIT 1`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), 7)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
