package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lab-asset-api/internal/depreciation"
	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/internal/repository"
	"github.com/noah-isme/lab-asset-api/pkg/database"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

const unknownTechnician = "Unknown"

type maintenanceRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.MaintenanceRequest) error
	GetByID(ctx context.Context, id int64) (*models.MaintenanceRequest, error)
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.MaintenanceRequest, error)
	HasOpenRequest(ctx context.Context, exec sqlx.ExtContext, deviceID int64) (bool, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, t repository.Transition) error
	CreateHistory(ctx context.Context, exec sqlx.ExtContext, h *models.MaintenanceHistory) error
	ListHistoryByDevice(ctx context.Context, deviceID int64) ([]models.MaintenanceHistory, error)
	List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error)
}

type maintenanceDeviceStore interface {
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error)
	SetCondition(ctx context.Context, exec sqlx.ExtContext, id int64, status models.DeviceStatus, issue *string) error
	GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error)
}

type userFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.User, error)
}

// MaintenanceService drives maintenance requests through their lifecycle and
// keeps the device status in step with them.
type MaintenanceService struct {
	tx          txProvider
	maintenance maintenanceRepository
	devices     maintenanceDeviceStore
	users       userFinder
	audit       auditAppender
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(
	tx txProvider,
	maintenance maintenanceRepository,
	devices maintenanceDeviceStore,
	users userFinder,
	audit auditAppender,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *MaintenanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		tx:          tx,
		maintenance: maintenance,
		devices:     devices,
		users:       users,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a request and puts the device under maintenance. A device can
// have only one open request at a time.
func (s *MaintenanceService) Create(ctx context.Context, req dto.CreateMaintenanceRequest, actor models.Actor) (id int64, err error) {
	defer func() { s.metrics.RecordWorkflow("maintenance", "create", err) }()

	if err = requireRole(actor, allRoles...); err != nil {
		return 0, err
	}
	if err = s.validator.Struct(req); err != nil {
		return 0, validationError(err, "invalid maintenance payload")
	}
	scheduled, parseErr := parseOptionalDay(req.ScheduledDate)
	if parseErr != nil {
		err = validationError(parseErr, "scheduledDate must be YYYY-MM-DD")
		return 0, err
	}

	issue := trimOptional(req.CurrentIssue)
	notes := trimOptional(req.Notes)
	if issue == nil {
		issue = notes
	}

	var token string
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		device, err := s.devices.Lock(ctx, tx, req.DeviceID)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		token = device.QRCodeToken

		open, err := s.maintenance.HasOpenRequest(ctx, tx, device.ID)
		if err != nil {
			return internalError(err, "failed to check maintenance state")
		}
		if open {
			return appErrors.Clone(appErrors.ErrConflict, "device already has an open maintenance request")
		}

		request := &models.MaintenanceRequest{
			DeviceID:        device.ID,
			MaintenanceType: req.MaintenanceType,
			Status:          models.MaintenanceStatusRequested,
			RequestedBy:     actor.UserID,
			ScheduledDate:   scheduled,
			CurrentIssue:    issue,
			Notes:           notes,
			CreatedBy:       actor.UserID,
		}
		if err := s.maintenance.Create(ctx, tx, request); err != nil {
			return internalError(err, "failed to create maintenance request")
		}
		if err := s.devices.SetCondition(ctx, tx, device.ID, models.DeviceStatusUnderMaintenance, issue); err != nil {
			return notFoundOr(err, "device not found", "failed to update device status")
		}

		id = request.ID
		return appendAudit(ctx, s.audit, tx, models.AuditEntityMaintenance, request.ID, models.AuditActionCreate, actor,
			map[string]interface{}{"deviceStatus": device.CurrentStatus, "currentIssue": device.CurrentIssue},
			map[string]interface{}{
				"deviceId":        device.ID,
				"maintenanceType": req.MaintenanceType,
				"status":          request.Status,
				"deviceStatus":    models.DeviceStatusUnderMaintenance,
				"currentIssue":    issue,
				"notes":           notes,
				"scheduledDate":   formatOptionalDay(scheduled),
			},
		)
	})
	if err != nil {
		return 0, err
	}

	_ = s.cache.Invalidate(ctx, publicCacheKey(token), statsCacheKey)
	s.logger.Info("maintenance requested", zap.Int64("request_id", id), zap.Int64("device", req.DeviceID), zap.Int64("actor", actor.UserID))
	return id, nil
}

// Approve assigns a technician to a requested job.
func (s *MaintenanceService) Approve(ctx context.Context, id int64, req dto.ApproveMaintenanceRequest, actor models.Actor) (request *models.MaintenanceRequest, err error) {
	defer func() { s.metrics.RecordWorkflow("maintenance", "approve", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager); err != nil {
		return nil, err
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid approval payload")
	}
	scheduled, parseErr := parseOptionalDay(req.ScheduledDate)
	if parseErr != nil {
		err = validationError(parseErr, "scheduledDate must be YYYY-MM-DD")
		return nil, err
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.maintenance.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "maintenance request not found", "failed to load maintenance request")
		}
		if current.Status != models.MaintenanceStatusRequested {
			return appErrors.Clone(appErrors.ErrConflict, "only requested maintenance can be approved")
		}
		if _, err := s.users.FindByID(ctx, tx, req.AssignedTo); err != nil {
			return notFoundOr(err, "assigned user not found", "failed to load assigned user")
		}

		assignee := req.AssignedTo
		if err := s.transition(ctx, tx, repository.Transition{
			ID:            id,
			From:          current.Status,
			To:            models.MaintenanceStatusApproved,
			AssignedTo:    &assignee,
			ScheduledDate: scheduled,
		}); err != nil {
			return err
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityMaintenance, id, models.AuditActionApprove, actor,
			map[string]interface{}{"status": current.Status, "assignedTo": current.AssignedTo},
			map[string]interface{}{"status": models.MaintenanceStatusApproved, "assignedTo": assignee, "scheduledDate": scheduled},
		)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance approved", zap.Int64("request_id", id), zap.Int64("assigned_to", req.AssignedTo), zap.Int64("actor", actor.UserID))
	return s.Get(ctx, id)
}

// Start marks approved work as in progress.
func (s *MaintenanceService) Start(ctx context.Context, id int64, actor models.Actor) (request *models.MaintenanceRequest, err error) {
	defer func() { s.metrics.RecordWorkflow("maintenance", "start", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager, models.RoleTechnician); err != nil {
		return nil, err
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.maintenance.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "maintenance request not found", "failed to load maintenance request")
		}
		if current.Status != models.MaintenanceStatusApproved {
			return appErrors.Clone(appErrors.ErrConflict, "only approved maintenance can be started")
		}
		if err := s.transition(ctx, tx, repository.Transition{
			ID:   id,
			From: current.Status,
			To:   models.MaintenanceStatusInProgress,
		}); err != nil {
			return err
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityMaintenance, id, models.AuditActionStart, actor,
			map[string]interface{}{"status": current.Status},
			map[string]interface{}{"status": models.MaintenanceStatusInProgress},
		)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance started", zap.Int64("request_id", id), zap.Int64("actor", actor.UserID))
	return s.Get(ctx, id)
}

// Complete closes an open request, returns the device to service and writes
// the single history record for the job.
func (s *MaintenanceService) Complete(ctx context.Context, id int64, req dto.CompleteMaintenanceRequest, actor models.Actor) (history *models.MaintenanceHistory, err error) {
	defer func() { s.metrics.RecordWorkflow("maintenance", "complete", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager, models.RoleTechnician); err != nil {
		return nil, err
	}
	cost, err := parseCost(req.Cost)
	if err != nil {
		return nil, err
	}
	notes := trimOptional(req.Notes)
	now := s.now().UTC()

	var token string
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.maintenance.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "maintenance request not found", "failed to load maintenance request")
		}
		if !current.Status.Open() {
			return appErrors.Clone(appErrors.ErrConflict, "maintenance request is already closed")
		}
		device, err := s.devices.Lock(ctx, tx, current.DeviceID)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		token = device.QRCodeToken

		if err := s.transition(ctx, tx, repository.Transition{
			ID:            id,
			From:          current.Status,
			To:            models.MaintenanceStatusCompleted,
			CompletedDate: &now,
			Cost:          cost,
			Notes:         notes,
		}); err != nil {
			return err
		}
		if err := s.devices.SetCondition(ctx, tx, device.ID, models.DeviceStatusWorking, nil); err != nil {
			return notFoundOr(err, "device not found", "failed to update device status")
		}

		record := &models.MaintenanceHistory{
			DeviceID:             device.ID,
			MaintenanceRequestID: current.ID,
			MaintenanceType:      current.MaintenanceType,
			TechnicianName:       s.technicianName(ctx, tx, current.AssignedTo),
			TechnicianID:         current.AssignedTo,
			MaintenanceDate:      now,
			Cost:                 cost,
			Notes:                notes,
			CreatedBy:            actor.UserID,
		}
		if err := s.maintenance.CreateHistory(ctx, tx, record); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "maintenance history already recorded")
			}
			return internalError(err, "failed to record maintenance history")
		}
		history = record

		return appendAudit(ctx, s.audit, tx, models.AuditEntityMaintenance, id, models.AuditActionComplete, actor,
			map[string]interface{}{"status": current.Status, "deviceStatus": device.CurrentStatus, "currentIssue": device.CurrentIssue},
			map[string]interface{}{
				"status":         models.MaintenanceStatusCompleted,
				"deviceStatus":   models.DeviceStatusWorking,
				"currentIssue":   nil,
				"cost":           cost,
				"technicianName": record.TechnicianName,
			},
		)
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, publicCacheKey(token), statsCacheKey)
	s.logger.Info("maintenance completed", zap.Int64("request_id", id), zap.Int64("actor", actor.UserID))
	return history, nil
}

// Cancel withdraws an open request and returns the device to service. No
// history is written for cancelled work.
func (s *MaintenanceService) Cancel(ctx context.Context, id int64, req dto.CancelMaintenanceRequest, actor models.Actor) (request *models.MaintenanceRequest, err error) {
	defer func() { s.metrics.RecordWorkflow("maintenance", "cancel", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager); err != nil {
		return nil, err
	}
	reason := trimOptional(req.Reason)

	var token string
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.maintenance.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "maintenance request not found", "failed to load maintenance request")
		}
		if !current.Status.Open() {
			return appErrors.Clone(appErrors.ErrConflict, "maintenance request is already closed")
		}
		device, err := s.devices.Lock(ctx, tx, current.DeviceID)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		token = device.QRCodeToken

		if err := s.transition(ctx, tx, repository.Transition{
			ID:    id,
			From:  current.Status,
			To:    models.MaintenanceStatusCancelled,
			Notes: reason,
		}); err != nil {
			return err
		}
		if err := s.devices.SetCondition(ctx, tx, device.ID, models.DeviceStatusWorking, nil); err != nil {
			return notFoundOr(err, "device not found", "failed to update device status")
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityMaintenance, id, models.AuditActionCancel, actor,
			map[string]interface{}{"status": current.Status, "deviceStatus": device.CurrentStatus, "currentIssue": device.CurrentIssue},
			map[string]interface{}{
				"status":       models.MaintenanceStatusCancelled,
				"deviceStatus": models.DeviceStatusWorking,
				"currentIssue": nil,
				"reason":       reason,
			},
		)
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, publicCacheKey(token), statsCacheKey)
	s.logger.Info("maintenance cancelled", zap.Int64("request_id", id), zap.Int64("actor", actor.UserID))
	return s.Get(ctx, id)
}

// Get returns a single request.
func (s *MaintenanceService) Get(ctx context.Context, id int64) (*models.MaintenanceRequest, error) {
	request, err := s.maintenance.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "maintenance request not found", "failed to load maintenance request")
	}
	return request, nil
}

// List returns requests matching the query.
func (s *MaintenanceService) List(ctx context.Context, query dto.MaintenanceQuery) ([]models.MaintenanceRequest, *models.Pagination, error) {
	page, size := pageParams(query.Page, query.PageSize)
	filter := models.MaintenanceFilter{
		DeviceID:   query.DeviceID,
		AssignedTo: query.AssignedTo,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status := models.MaintenanceStatus(part)
			if !status.Valid() {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown maintenance status "+part)
			}
			filter.Status = append(filter.Status, status)
		}
	}

	requests, total, err := s.maintenance.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list maintenance requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// HistoryByDevice returns the completed maintenance for a device.
func (s *MaintenanceService) HistoryByDevice(ctx context.Context, deviceID int64) ([]models.MaintenanceHistory, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	history, err := s.maintenance.ListHistoryByDevice(ctx, deviceID)
	if err != nil {
		return nil, internalError(err, "failed to list maintenance history")
	}
	return history, nil
}

func (s *MaintenanceService) transition(ctx context.Context, tx sqlx.ExtContext, t repository.Transition) error {
	if err := s.maintenance.UpdateStatus(ctx, tx, t); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrConflict, "maintenance request changed concurrently")
		}
		return internalError(err, "failed to update maintenance request")
	}
	return nil
}

// technicianName resolves the assignee's display name, falling back to
// "Unknown" when there is no assignee or the user has no name.
func (s *MaintenanceService) technicianName(ctx context.Context, tx sqlx.ExtContext, assignedTo *int64) string {
	if assignedTo == nil {
		return unknownTechnician
	}
	user, err := s.users.FindByID(ctx, tx, *assignedTo)
	if err != nil {
		if !isNoRows(err) {
			s.logger.Warn("technician lookup failed", zap.Int64("user_id", *assignedTo), zap.Error(err))
		}
		return unknownTechnician
	}
	if user.Name == nil || strings.TrimSpace(*user.Name) == "" {
		return unknownTechnician
	}
	return strings.TrimSpace(*user.Name)
}

// parseCost accepts free-text cost input. Blank means no cost.
func parseCost(raw *string) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cost must be a number")
	}
	if value < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cost must not be negative")
	}
	rounded := depreciation.Round(value)
	return &rounded, nil
}
