package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCodeAndOverridesMessage(t *testing.T) {
	clone := Clone(ErrNotFound, "device not found")
	assert.Equal(t, "device not found", clone.Message)
	assert.Equal(t, ErrNotFound.Code, clone.Code)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", Clone(ErrConflict, "device location changed since it was read"))
	assert.True(t, HasCode(wrapped, ErrConflict))
	assert.False(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(nil, ErrConflict))
}
