package models

import "time"

// MaintenanceType distinguishes scheduled from reactive maintenance.
type MaintenanceType string

const (
	MaintenanceTypePeriodic  MaintenanceType = "periodic"
	MaintenanceTypeEmergency MaintenanceType = "emergency"
)

// Valid reports whether the type is known.
func (t MaintenanceType) Valid() bool {
	return t == MaintenanceTypePeriodic || t == MaintenanceTypeEmergency
}

// MaintenanceStatus captures the request state machine.
type MaintenanceStatus string

const (
	MaintenanceStatusRequested  MaintenanceStatus = "requested"
	MaintenanceStatusApproved   MaintenanceStatus = "approved"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
	MaintenanceStatusCancelled  MaintenanceStatus = "cancelled"
)

// OpenMaintenanceStatuses are the states that keep a device under maintenance.
var OpenMaintenanceStatuses = []MaintenanceStatus{
	MaintenanceStatusRequested,
	MaintenanceStatusApproved,
	MaintenanceStatusInProgress,
}

// Open reports whether the request is still in flight.
func (s MaintenanceStatus) Open() bool {
	for _, open := range OpenMaintenanceStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// Valid reports whether the status is known.
func (s MaintenanceStatus) Valid() bool {
	return s.Open() || s == MaintenanceStatusCompleted || s == MaintenanceStatusCancelled
}

// MaintenanceRequest tracks a maintenance job from request to completion.
type MaintenanceRequest struct {
	ID              int64             `db:"id" json:"id"`
	DeviceID        int64             `db:"device_id" json:"deviceId"`
	MaintenanceType MaintenanceType   `db:"maintenance_type" json:"maintenanceType"`
	Status          MaintenanceStatus `db:"status" json:"status"`
	RequestedBy     int64             `db:"requested_by" json:"requestedBy"`
	AssignedTo      *int64            `db:"assigned_to" json:"assignedTo,omitempty"`
	ScheduledDate   *time.Time        `db:"scheduled_date" json:"scheduledDate,omitempty"`
	CompletedDate   *time.Time        `db:"completed_date" json:"completedDate,omitempty"`
	Cost            *float64          `db:"cost" json:"cost,omitempty"`
	CurrentIssue    *string           `db:"current_issue" json:"currentIssue,omitempty"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedBy       int64             `db:"created_by" json:"createdBy"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// MaintenanceHistory is the immutable record written when a request completes.
type MaintenanceHistory struct {
	ID                   int64           `db:"id" json:"id"`
	DeviceID             int64           `db:"device_id" json:"deviceId"`
	MaintenanceRequestID int64           `db:"maintenance_request_id" json:"maintenanceRequestId"`
	MaintenanceType      MaintenanceType `db:"maintenance_type" json:"maintenanceType"`
	TechnicianName       string          `db:"technician_name" json:"technicianName"`
	TechnicianID         *int64          `db:"technician_id" json:"technicianId,omitempty"`
	MaintenanceDate      time.Time       `db:"maintenance_date" json:"maintenanceDate"`
	Cost                 *float64        `db:"cost" json:"cost,omitempty"`
	Notes                *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy            int64           `db:"created_by" json:"createdBy"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt"`
}

// MaintenanceFilter constrains request listings.
type MaintenanceFilter struct {
	DeviceID   *int64
	AssignedTo *int64
	Status     []MaintenanceStatus
	Limit      int
	Offset     int
}
