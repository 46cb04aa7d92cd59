package models

import "time"

// Faculty is the top level of the organisational hierarchy.
type Faculty struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Department belongs to exactly one faculty.
type Department struct {
	ID        int64     `db:"id" json:"id"`
	FacultyID int64     `db:"faculty_id" json:"facultyId"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Laboratory belongs to exactly one department.
type Laboratory struct {
	ID           int64     `db:"id" json:"id"`
	DepartmentID int64     `db:"department_id" json:"departmentId"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Location     *string   `db:"location" json:"location,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Location is the denormalised laboratory/department/faculty triple carried by a device.
type Location struct {
	LaboratoryID int64 `db:"laboratory_id" json:"laboratoryId"`
	DepartmentID int64 `db:"department_id" json:"departmentId"`
	FacultyID    int64 `db:"faculty_id" json:"facultyId"`
}

// LabChain is a laboratory resolved up to its faculty.
type LabChain struct {
	Location
	LaboratoryName string `db:"laboratory_name" json:"laboratoryName"`
	LaboratoryCode string `db:"laboratory_code" json:"laboratoryCode"`
	DepartmentName string `db:"department_name" json:"departmentName"`
	FacultyName    string `db:"faculty_name" json:"facultyName"`
}
