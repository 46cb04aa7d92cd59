package dto

import "github.com/noah-isme/lab-asset-api/internal/models"

// CreateMaintenanceRequest opens a maintenance request for a device.
type CreateMaintenanceRequest struct {
	DeviceID        int64                  `json:"deviceId" validate:"required,gt=0"`
	MaintenanceType models.MaintenanceType `json:"maintenanceType" validate:"required,oneof=periodic emergency"`
	ScheduledDate   *string                `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
	CurrentIssue    *string                `json:"currentIssue"`
	Notes           *string                `json:"notes"`
}

// ApproveMaintenanceRequest assigns a technician and optionally a schedule.
type ApproveMaintenanceRequest struct {
	AssignedTo    int64   `json:"assignedTo" validate:"required,gt=0"`
	ScheduledDate *string `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
}

// CompleteMaintenanceRequest closes a request. Cost is free text as entered;
// blank means no cost was recorded.
type CompleteMaintenanceRequest struct {
	Cost  *string `json:"cost"`
	Notes *string `json:"notes"`
}

// CancelMaintenanceRequest withdraws an open request.
type CancelMaintenanceRequest struct {
	Reason *string `json:"reason"`
}

// MaintenanceQuery mirrors supported listing filters.
type MaintenanceQuery struct {
	DeviceID   *int64   `form:"deviceId"`
	AssignedTo *int64   `form:"assignedTo"`
	Status     []string `form:"status"`
	Page       int      `form:"page"`
	PageSize   int      `form:"pageSize"`
}
