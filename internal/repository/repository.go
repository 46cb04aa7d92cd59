package repository

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// psql renders squirrel builders with PostgreSQL placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// executor returns exec when the caller runs inside a transaction, otherwise the pool.
func executor(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

func pageBounds(limit, offset int) (uint64, uint64) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return uint64(limit), uint64(offset)
}
