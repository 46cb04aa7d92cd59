package models

import "time"

// DeviceStatus is the operational state of a device.
type DeviceStatus string

const (
	DeviceStatusWorking          DeviceStatus = "working"
	DeviceStatusUnderMaintenance DeviceStatus = "under_maintenance"
	DeviceStatusOutOfService     DeviceStatus = "out_of_service"
)

// Valid reports whether the status is one of the known values.
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusWorking, DeviceStatusUnderMaintenance, DeviceStatusOutOfService:
		return true
	}
	return false
}

// Device is a physical piece of lab equipment tracked by the ledger.
type Device struct {
	ID                    int64        `db:"id" json:"id"`
	DeviceID              string       `db:"device_id" json:"deviceId"`
	QRCodeToken           string       `db:"qr_code_token" json:"qrCodeToken"`
	Name                  string       `db:"name" json:"name"`
	Brand                 *string      `db:"brand" json:"brand,omitempty"`
	Category              string       `db:"category" json:"category"`
	CurrentLaboratoryID   int64        `db:"current_laboratory_id" json:"currentLaboratoryId"`
	CurrentDepartmentID   int64        `db:"current_department_id" json:"currentDepartmentId"`
	CurrentFacultyID      int64        `db:"current_faculty_id" json:"currentFacultyId"`
	PurchaseDate          time.Time    `db:"purchase_date" json:"purchaseDate"`
	PurchasePrice         float64      `db:"purchase_price" json:"purchasePrice"`
	ExpectedLifetimeYears int          `db:"expected_lifetime_years" json:"expectedLifetimeYears"`
	CurrentStatus         DeviceStatus `db:"current_status" json:"currentStatus"`
	CurrentIssue          *string      `db:"current_issue" json:"currentIssue,omitempty"`
	Notes                 *string      `db:"notes" json:"notes,omitempty"`
	CreatedBy             int64        `db:"created_by" json:"createdBy"`
	CreatedAt             time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updatedAt"`
}

// Location returns the device's current placement.
func (d Device) Location() Location {
	return Location{
		LaboratoryID: d.CurrentLaboratoryID,
		DepartmentID: d.CurrentDepartmentID,
		FacultyID:    d.CurrentFacultyID,
	}
}

// DeviceDetail joins a device with the names of its current location.
type DeviceDetail struct {
	Device
	LaboratoryName string `db:"laboratory_name" json:"laboratoryName"`
	LaboratoryCode string `db:"laboratory_code" json:"laboratoryCode"`
	DepartmentName string `db:"department_name" json:"departmentName"`
	FacultyName    string `db:"faculty_name" json:"facultyName"`
}

// DeviceFilter constrains device listings.
type DeviceFilter struct {
	FacultyID    *int64
	DepartmentID *int64
	LaboratoryID *int64
	Status       *DeviceStatus
	Category     string
	Search       string
	Limit        int
	Offset       int
}

// DeviceGroupCount is one bucket of a breakdown keyed by a text column such
// as category, faculty name or brand.
type DeviceGroupCount struct {
	Label string `db:"label" json:"label"`
	Total int    `db:"total" json:"total"`
}

// DeviceStatusCount is one bucket of the status breakdown.
type DeviceStatusCount struct {
	Status DeviceStatus `db:"status" json:"status"`
	Total  int          `db:"total" json:"total"`
}
