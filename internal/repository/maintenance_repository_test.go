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

var maintenanceRowColumns = []string{
	"id", "device_id", "maintenance_type", "status", "requested_by", "assigned_to",
	"scheduled_date", "completed_date", "cost", "current_issue", "notes", "created_by", "created_at", "updated_at",
}

func TestMaintenanceRepositoryHasOpenRequest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS( SELECT 1 FROM maintenance_requests WHERE device_id = $1 AND status IN ($2,$3,$4) )")).
		WithArgs(int64(7), "requested", "approved", "in_progress").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	open, err := repo.HasOpenRequest(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.True(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM maintenance_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(maintenanceRowColumns).
			AddRow(4, 7, "emergency", "approved", 9, 12, nil, nil, nil, "no signal", nil, 9, now, now))

	req, err := repo.Lock(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusApproved, req.Status)
	require.NotNil(t, req.AssignedTo)
	assert.EqualValues(t, 12, *req.AssignedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryUpdateStatusGuardsCurrentState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	assignee := int64(12)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE maintenance_requests SET status = $1, updated_at = $2, assigned_to = $3 WHERE id = $4 AND status = $5")).
		WithArgs("approved", sqlmock.AnyArg(), assignee, int64(4), "requested").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, Transition{
		ID:         4,
		From:       models.MaintenanceStatusRequested,
		To:         models.MaintenanceStatusApproved,
		AssignedTo: &assignee,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryCreateHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	now := time.Now()
	cost := 120.5
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO maintenance_history")).
		WithArgs(int64(7), int64(4), "emergency", "Rina", nil, sqlmock.AnyArg(), cost, nil, int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))

	history := &models.MaintenanceHistory{
		DeviceID: 7, MaintenanceRequestID: 4, MaintenanceType: models.MaintenanceTypeEmergency,
		TechnicianName: "Rina", MaintenanceDate: now, Cost: &cost, CreatedBy: 9,
	}
	require.NoError(t, repo.CreateHistory(context.Background(), nil, history))
	assert.EqualValues(t, 1, history.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM maintenance_requests WHERE (status IN ($1))")).
		WithArgs("requested").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)FROM maintenance_requests WHERE \(status IN \(\$1\)\) ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0`).
		WithArgs("requested").
		WillReturnRows(sqlmock.NewRows(maintenanceRowColumns))

	_, total, err := repo.List(context.Background(), models.MaintenanceFilter{
		Status: []models.MaintenanceStatus{models.MaintenanceStatusRequested},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
