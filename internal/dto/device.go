package dto

import "github.com/noah-isme/lab-asset-api/internal/models"

// CreateDeviceRequest registers a new device in a laboratory. Department and
// faculty are optional; when present they must match the laboratory's chain.
type CreateDeviceRequest struct {
	Name                  string   `json:"name" validate:"required,max=255"`
	Brand                 *string  `json:"brand" validate:"omitempty,max=255"`
	Category              string   `json:"category" validate:"required,max=100"`
	LaboratoryID          int64    `json:"laboratoryId" validate:"required,gt=0"`
	DepartmentID          *int64   `json:"departmentId" validate:"omitempty,gt=0"`
	FacultyID             *int64   `json:"facultyId" validate:"omitempty,gt=0"`
	PurchaseDate          string   `json:"purchaseDate" validate:"required,datetime=2006-01-02"`
	PurchasePrice         *float64 `json:"purchasePrice" validate:"required,gte=0"`
	ExpectedLifetimeYears int      `json:"expectedLifetimeYears" validate:"gte=1,lte=100"`
	Notes                 *string  `json:"notes"`
}

// CreateDeviceResult returns the identifiers assigned to a new device.
type CreateDeviceResult struct {
	ID          int64  `json:"id"`
	DeviceID    string `json:"deviceId"`
	QRCodeToken string `json:"qrCodeToken"`
}

// UpdateDeviceRequest carries a partial update. Nil fields are left untouched.
type UpdateDeviceRequest struct {
	Name          *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Category      *string              `json:"category" validate:"omitempty,min=1,max=100"`
	CurrentStatus *models.DeviceStatus `json:"currentStatus"`
	Notes         *string              `json:"notes"`
}

// Empty reports whether the request changes nothing.
func (r UpdateDeviceRequest) Empty() bool {
	return r.Name == nil && r.Category == nil && r.CurrentStatus == nil && r.Notes == nil
}

// DeviceQuery mirrors supported listing filters.
type DeviceQuery struct {
	FacultyID    *int64  `form:"facultyId"`
	DepartmentID *int64  `form:"departmentId"`
	LaboratoryID *int64  `form:"laboratoryId"`
	Status       *string `form:"status"`
	Category     string  `form:"category"`
	Search       string  `form:"q"`
	Page         int     `form:"page"`
	PageSize     int     `form:"pageSize"`
}

// DeviceStats summarises the fleet. The grouped lists are ordered largest first.
type DeviceStats struct {
	Total      int                         `json:"total"`
	ByStatus   map[models.DeviceStatus]int `json:"byStatus"`
	ByCategory []models.DeviceGroupCount   `json:"byCategory"`
	ByFaculty  []models.DeviceGroupCount   `json:"byFaculty"`
	TopBrands  []models.DeviceGroupCount   `json:"topBrands"`
}

// PublicDevice is the card shown to anyone scanning a device's QR code.
type PublicDevice struct {
	DeviceID       string              `json:"deviceId"`
	Name           string              `json:"name"`
	Brand          *string             `json:"brand,omitempty"`
	Category       string              `json:"category"`
	CurrentStatus  models.DeviceStatus `json:"currentStatus"`
	CurrentIssue   *string             `json:"currentIssue,omitempty"`
	PurchaseDate   string              `json:"purchaseDate"`
	FacultyName    string              `json:"facultyName"`
	DepartmentName string              `json:"departmentName"`
	LaboratoryName string              `json:"laboratoryName"`
	LaboratoryCode string              `json:"laboratoryCode"`
}
