package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPageBounds(t *testing.T) {
	limit, offset := pageBounds(0, -5)
	require.EqualValues(t, defaultPageSize, limit)
	require.EqualValues(t, 0, offset)

	limit, offset = pageBounds(500, 20)
	require.EqualValues(t, defaultPageSize, limit)
	require.EqualValues(t, 20, offset)

	limit, _ = pageBounds(10, 0)
	require.EqualValues(t, 10, limit)
}
