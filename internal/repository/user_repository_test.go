package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, role, faculty_id, created_at, updated_at FROM users WHERE id = $1")).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "faculty_id", "created_at", "updated_at"}).
			AddRow(12, "Rina", "rina@lab.test", "technician", nil, now, now))

	user, err := repo.FindByID(context.Background(), nil, 12)
	require.NoError(t, err)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Rina", *user.Name)
	assert.Equal(t, models.RoleTechnician, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
