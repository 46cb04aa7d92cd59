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
)

func TestHierarchyRepositoryResolveLab(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHierarchyRepository(db)

	mock.ExpectQuery(`(?s)FROM laboratories l.+WHERE l\.id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"laboratory_id", "department_id", "faculty_id", "laboratory_name", "laboratory_code", "department_name", "faculty_name"}).
			AddRow(3, 2, 1, "Signals Lab", "SIG", "Electrical", "Engineering"))

	chain, err := repo.ResolveLab(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, chain.DepartmentID)
	assert.EqualValues(t, 1, chain.FacultyID)
	assert.Equal(t, "Signals Lab", chain.LaboratoryName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHierarchyRepositoryResolveLabMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHierarchyRepository(db)

	mock.ExpectQuery(`(?s)FROM laboratories l`).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveLab(context.Background(), nil, 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestHierarchyRepositoryListDepartments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHierarchyRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, faculty_id, name, code, created_at, updated_at FROM departments WHERE faculty_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "faculty_id", "name", "code", "created_at", "updated_at"}).
			AddRow(2, 1, "Electrical", "EE", now, now))

	departments, err := repo.ListDepartments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, departments, 1)
	assert.Equal(t, "EE", departments[0].Code)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM departments WHERE id = $1)")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	found, err := repo.DepartmentExists(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
