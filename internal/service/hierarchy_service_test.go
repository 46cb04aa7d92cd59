package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

func TestHierarchyServiceLookups(t *testing.T) {
	svc := NewHierarchyService(newHierarchyStub())
	ctx := context.Background()

	faculties, err := svc.ListFaculties(ctx)
	require.NoError(t, err)
	assert.Len(t, faculties, 2)

	departments, err := svc.ListDepartments(ctx, 30)
	require.NoError(t, err)
	require.Len(t, departments, 1)
	assert.Equal(t, "Chemistry", departments[0].Name)

	labs, err := svc.ListLaboratories(ctx, 21)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, "RB1", labs[0].Code)

	_, err = svc.ListDepartments(ctx, 999)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	_, err = svc.ListLaboratories(ctx, 999)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
