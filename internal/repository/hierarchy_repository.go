package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/models"
)

// HierarchyRepository reads the faculty, department and laboratory tree.
type HierarchyRepository struct {
	db *sqlx.DB
}

// NewHierarchyRepository constructs the repository.
func NewHierarchyRepository(db *sqlx.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// ListFaculties returns every faculty ordered by name.
func (r *HierarchyRepository) ListFaculties(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, name, code, created_at, updated_at FROM faculties ORDER BY name`
	var faculties []models.Faculty
	if err := r.db.SelectContext(ctx, &faculties, query); err != nil {
		return nil, fmt.Errorf("list faculties: %w", err)
	}
	return faculties, nil
}

// ListDepartments returns the departments of a faculty.
func (r *HierarchyRepository) ListDepartments(ctx context.Context, facultyID int64) ([]models.Department, error) {
	const query = `SELECT id, faculty_id, name, code, created_at, updated_at FROM departments WHERE faculty_id = $1 ORDER BY name`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, facultyID); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// ListLaboratories returns the laboratories of a department.
func (r *HierarchyRepository) ListLaboratories(ctx context.Context, departmentID int64) ([]models.Laboratory, error) {
	const query = `SELECT id, department_id, name, code, location, created_at, updated_at FROM laboratories WHERE department_id = $1 ORDER BY name`
	var labs []models.Laboratory
	if err := r.db.SelectContext(ctx, &labs, query, departmentID); err != nil {
		return nil, fmt.Errorf("list laboratories: %w", err)
	}
	return labs, nil
}

// FacultyExists reports whether the faculty id is known.
func (r *HierarchyRepository) FacultyExists(ctx context.Context, facultyID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM faculties WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, facultyID); err != nil {
		return false, fmt.Errorf("check faculty: %w", err)
	}
	return exists, nil
}

// FacultyCode returns the short code of a faculty. Missing faculties yield sql.ErrNoRows.
func (r *HierarchyRepository) FacultyCode(ctx context.Context, facultyID int64) (string, error) {
	const query = `SELECT code FROM faculties WHERE id = $1`
	var code string
	if err := r.db.GetContext(ctx, &code, query, facultyID); err != nil {
		return "", err
	}
	return code, nil
}

// ResolveLab walks a laboratory up to its faculty. Missing laboratories yield sql.ErrNoRows.
func (r *HierarchyRepository) ResolveLab(ctx context.Context, exec sqlx.ExtContext, laboratoryID int64) (*models.LabChain, error) {
	const query = `
SELECT
	l.id AS laboratory_id,
	d.id AS department_id,
	f.id AS faculty_id,
	l.name AS laboratory_name,
	l.code AS laboratory_code,
	d.name AS department_name,
	f.name AS faculty_name
FROM laboratories l
JOIN departments d ON d.id = l.department_id
JOIN faculties f ON f.id = d.faculty_id
WHERE l.id = $1`
	var chain models.LabChain
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &chain, query, laboratoryID); err != nil {
		return nil, err
	}
	return &chain, nil
}

// DepartmentExists reports whether the department id is known.
func (r *HierarchyRepository) DepartmentExists(ctx context.Context, exec sqlx.ExtContext, departmentID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM departments WHERE id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &exists, query, departmentID); err != nil {
		return false, fmt.Errorf("check department: %w", err)
	}
	return exists, nil
}
