package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

// UserRepository reads users. Accounts are managed by the identity provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user, inside exec's transaction when given.
func (r *UserRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.User, error) {
	const query = `SELECT id, name, email, role, faculty_id, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}
