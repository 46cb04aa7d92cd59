package dto

// CreateTransferRequest moves a device. The from-triple is what the caller
// last saw; it must still match the device when the transfer is applied.
// TransferDate is YYYY-MM-DD or an RFC3339 timestamp.
type CreateTransferRequest struct {
	DeviceID         int64   `json:"deviceId" validate:"required,gt=0"`
	FromLaboratoryID int64   `json:"fromLaboratoryId" validate:"required,gt=0"`
	FromDepartmentID int64   `json:"fromDepartmentId" validate:"required,gt=0"`
	FromFacultyID    int64   `json:"fromFacultyId" validate:"required,gt=0"`
	ToLaboratoryID   int64   `json:"toLaboratoryId" validate:"required,gt=0"`
	ToDepartmentID   int64   `json:"toDepartmentId" validate:"required,gt=0"`
	ToFacultyID      int64   `json:"toFacultyId" validate:"required,gt=0"`
	TransferDate     string  `json:"transferDate" validate:"required"`
	Reason           *string `json:"reason"`
	Notes            *string `json:"notes"`
}

// TransferQuery mirrors supported listing filters.
type TransferQuery struct {
	DeviceID  *int64 `form:"deviceId"`
	FacultyID *int64 `form:"facultyId"`
	Approved  *bool  `form:"approved"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// IDResponse is returned by create endpoints that only expose the new row id.
type IDResponse struct {
	ID int64 `json:"id"`
}
