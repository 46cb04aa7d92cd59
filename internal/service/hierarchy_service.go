package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

type hierarchyReader interface {
	ListFaculties(ctx context.Context) ([]models.Faculty, error)
	ListDepartments(ctx context.Context, facultyID int64) ([]models.Department, error)
	ListLaboratories(ctx context.Context, departmentID int64) ([]models.Laboratory, error)
	FacultyExists(ctx context.Context, facultyID int64) (bool, error)
	DepartmentExists(ctx context.Context, exec sqlx.ExtContext, departmentID int64) (bool, error)
}

// HierarchyService serves the read-only faculty tree.
type HierarchyService struct {
	repo hierarchyReader
}

// NewHierarchyService constructs the service.
func NewHierarchyService(repo hierarchyReader) *HierarchyService {
	return &HierarchyService{repo: repo}
}

func (s *HierarchyService) ListFaculties(ctx context.Context) ([]models.Faculty, error) {
	faculties, err := s.repo.ListFaculties(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list faculties")
	}
	return faculties, nil
}

func (s *HierarchyService) ListDepartments(ctx context.Context, facultyID int64) ([]models.Department, error) {
	exists, err := s.repo.FacultyExists(ctx, facultyID)
	if err != nil {
		return nil, internalError(err, "failed to load faculty")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
	}
	departments, err := s.repo.ListDepartments(ctx, facultyID)
	if err != nil {
		return nil, internalError(err, "failed to list departments")
	}
	return departments, nil
}

func (s *HierarchyService) ListLaboratories(ctx context.Context, departmentID int64) ([]models.Laboratory, error) {
	exists, err := s.repo.DepartmentExists(ctx, nil, departmentID)
	if err != nil {
		return nil, internalError(err, "failed to load department")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}
	labs, err := s.repo.ListLaboratories(ctx, departmentID)
	if err != nil {
		return nil, internalError(err, "failed to list laboratories")
	}
	return labs, nil
}
