package models

import "time"

// Transfer records one relocation of a device. Rows are append-only; only the
// approval columns are ever filled in afterwards.
type Transfer struct {
	ID               int64      `db:"id" json:"id"`
	DeviceID         int64      `db:"device_id" json:"deviceId"`
	FromLaboratoryID int64      `db:"from_laboratory_id" json:"fromLaboratoryId"`
	FromDepartmentID int64      `db:"from_department_id" json:"fromDepartmentId"`
	FromFacultyID    int64      `db:"from_faculty_id" json:"fromFacultyId"`
	ToLaboratoryID   int64      `db:"to_laboratory_id" json:"toLaboratoryId"`
	ToDepartmentID   int64      `db:"to_department_id" json:"toDepartmentId"`
	ToFacultyID      int64      `db:"to_faculty_id" json:"toFacultyId"`
	TransferDate     time.Time  `db:"transfer_date" json:"transferDate"`
	Reason           *string    `db:"reason" json:"reason,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	ApprovedBy       *int64     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate     *time.Time `db:"approval_date" json:"approvalDate,omitempty"`
	CreatedBy        int64      `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// From returns the origin triple.
func (t Transfer) From() Location {
	return Location{LaboratoryID: t.FromLaboratoryID, DepartmentID: t.FromDepartmentID, FacultyID: t.FromFacultyID}
}

// To returns the destination triple.
func (t Transfer) To() Location {
	return Location{LaboratoryID: t.ToLaboratoryID, DepartmentID: t.ToDepartmentID, FacultyID: t.ToFacultyID}
}

// TransferFilter constrains transfer listings.
type TransferFilter struct {
	DeviceID  *int64
	FacultyID *int64
	Approved  *bool
	Limit     int
	Offset    int
}
