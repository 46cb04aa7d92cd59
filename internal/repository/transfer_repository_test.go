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

var transferRowColumns = []string{
	"id", "device_id", "from_laboratory_id", "from_department_id", "from_faculty_id",
	"to_laboratory_id", "to_department_id", "to_faculty_id", "transfer_date", "reason", "notes",
	"approved_by", "approval_date", "created_by", "created_at",
}

func TestTransferRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transfers")).
		WithArgs(int64(7), int64(1), int64(2), int64(3), int64(4), int64(5), int64(6), sqlmock.AnyArg(), nil, nil, int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))

	transfer := &models.Transfer{
		DeviceID:         7,
		FromLaboratoryID: 1, FromDepartmentID: 2, FromFacultyID: 3,
		ToLaboratoryID: 4, ToDepartmentID: 5, ToFacultyID: 6,
		TransferDate: now, CreatedBy: 9,
	}
	require.NoError(t, repo.Create(context.Background(), nil, transfer))
	assert.EqualValues(t, 11, transfer.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryApproveIsGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transfers SET approved_by = $1, approval_date = $2 WHERE id = $3 AND approved_by IS NULL")).
		WithArgs(int64(2), sqlmock.AnyArg(), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Approve(context.Background(), nil, 11, 2, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListByDevice(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(transferRowColumns).
		AddRow(2, 7, 4, 5, 6, 1, 2, 3, now, nil, nil, nil, nil, 9, now).
		AddRow(1, 7, 1, 2, 3, 4, 5, 6, now.Add(-time.Hour), "move", nil, 2, now, 9, now)
	mock.ExpectQuery(`(?s)FROM transfers WHERE device_id = \$1 ORDER BY transfer_date DESC, id DESC`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	list, err := repo.ListByDevice(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].ApprovedBy)
	require.NotNil(t, list[1].ApprovedBy)
	assert.EqualValues(t, 2, *list[1].ApprovedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListPendingForFaculty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	faculty := int64(3)
	approved := false
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transfers WHERE ((from_faculty_id = $1 OR to_faculty_id = $2) AND approved_by IS NULL)")).
		WithArgs(faculty, faculty).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`(?s)FROM transfers WHERE .+ LIMIT 50 OFFSET 0`).
		WithArgs(faculty, faculty).
		WillReturnRows(sqlmock.NewRows(transferRowColumns))

	list, total, err := repo.List(context.Background(), models.TransferFilter{FacultyID: &faculty, Approved: &approved})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
