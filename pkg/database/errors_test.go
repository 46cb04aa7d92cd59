package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert device: %w", &pq.Error{Code: "23505", Constraint: "devices_device_id_key"})
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, "devices_device_id_key", ConstraintName(err))

	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
	assert.Empty(t, ConstraintName(sql.ErrNoRows))
}
