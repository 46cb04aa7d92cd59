package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

type transferRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.Transfer) error
	GetByID(ctx context.Context, id int64) (*models.Transfer, error)
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Transfer, error)
	Approve(ctx context.Context, exec sqlx.ExtContext, id, approvedBy int64, at time.Time) error
	ListByDevice(ctx context.Context, deviceID int64) ([]models.Transfer, error)
	List(ctx context.Context, filter models.TransferFilter) ([]models.Transfer, int, error)
}

type transferDeviceStore interface {
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error)
	UpdateLocation(ctx context.Context, exec sqlx.ExtContext, id int64, loc models.Location) error
	GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error)
}

type transferHierarchy interface {
	ResolveLab(ctx context.Context, exec sqlx.ExtContext, laboratoryID int64) (*models.LabChain, error)
	DepartmentExists(ctx context.Context, exec sqlx.ExtContext, departmentID int64) (bool, error)
}

// TransferService relocates devices and records approvals.
type TransferService struct {
	tx        txProvider
	transfers transferRepository
	devices   transferDeviceStore
	hierarchy transferHierarchy
	audit     auditAppender
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTransferService constructs the service.
func NewTransferService(
	tx txProvider,
	transfers transferRepository,
	devices transferDeviceStore,
	hierarchy transferHierarchy,
	audit auditAppender,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TransferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		tx:        tx,
		transfers: transfers,
		devices:   devices,
		hierarchy: hierarchy,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a transfer and moves the device in the same transaction. The
// from location must still be the device's current location.
func (s *TransferService) Create(ctx context.Context, req dto.CreateTransferRequest, actor models.Actor) (id int64, err error) {
	defer func() { s.metrics.RecordWorkflow("transfer", "create", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager); err != nil {
		return 0, err
	}
	if err = s.validator.Struct(req); err != nil {
		return 0, validationError(err, "invalid transfer payload")
	}
	transferDate, parseErr := parseDay(req.TransferDate)
	if parseErr != nil {
		err = validationError(parseErr, "transferDate must be YYYY-MM-DD or RFC3339")
		return 0, err
	}

	from := models.Location{LaboratoryID: req.FromLaboratoryID, DepartmentID: req.FromDepartmentID, FacultyID: req.FromFacultyID}
	to := models.Location{LaboratoryID: req.ToLaboratoryID, DepartmentID: req.ToDepartmentID, FacultyID: req.ToFacultyID}

	var token string
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		device, err := s.devices.Lock(ctx, tx, req.DeviceID)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		token = device.QRCodeToken

		chain, err := s.hierarchy.ResolveLab(ctx, tx, to.LaboratoryID)
		if err != nil {
			return notFoundOr(err, "target laboratory not found", "failed to resolve target laboratory")
		}
		deptExists, err := s.hierarchy.DepartmentExists(ctx, tx, to.DepartmentID)
		if err != nil {
			return internalError(err, "failed to resolve target department")
		}
		if !deptExists {
			return appErrors.Clone(appErrors.ErrNotFound, "target department not found")
		}
		if chain.Location != to {
			return appErrors.Clone(appErrors.ErrValidation, "target department and faculty do not match the laboratory")
		}
		if device.Location() != from {
			return appErrors.Clone(appErrors.ErrConflict, "device location changed since it was read")
		}

		transfer := &models.Transfer{
			DeviceID:         device.ID,
			FromLaboratoryID: from.LaboratoryID,
			FromDepartmentID: from.DepartmentID,
			FromFacultyID:    from.FacultyID,
			ToLaboratoryID:   to.LaboratoryID,
			ToDepartmentID:   to.DepartmentID,
			ToFacultyID:      to.FacultyID,
			TransferDate:     transferDate,
			Reason:           trimOptional(req.Reason),
			Notes:            trimOptional(req.Notes),
			CreatedBy:        actor.UserID,
		}
		if err := s.transfers.Create(ctx, tx, transfer); err != nil {
			return internalError(err, "failed to record transfer")
		}
		if err := s.devices.UpdateLocation(ctx, tx, device.ID, to); err != nil {
			return notFoundOr(err, "device not found", "failed to move device")
		}

		id = transfer.ID
		return appendAudit(ctx, s.audit, tx, models.AuditEntityTransfer, transfer.ID, models.AuditActionCreate, actor,
			map[string]interface{}{"deviceId": device.ID, "location": from},
			map[string]interface{}{"deviceId": device.ID, "location": to, "transferDate": transferDate.Format(dateLayout)},
		)
	})
	if err != nil {
		return 0, err
	}

	_ = s.cache.Invalidate(ctx, publicCacheKey(token), statsCacheKey)
	s.logger.Info("device transferred",
		zap.Int64("transfer_id", id),
		zap.Int64("device", req.DeviceID),
		zap.Int64("to_laboratory", to.LaboratoryID),
		zap.Int64("actor", actor.UserID),
	)
	return id, nil
}

// Approve stamps the approver on a transfer. An approval is never overwritten.
func (s *TransferService) Approve(ctx context.Context, id int64, actor models.Actor) (transfer *models.Transfer, err error) {
	defer func() { s.metrics.RecordWorkflow("transfer", "approve", err) }()

	if err = requireRole(actor, models.RoleAdmin, models.RoleUnitManager); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.transfers.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "transfer not found", "failed to load transfer")
		}
		if current.ApprovedBy != nil {
			return appErrors.Clone(appErrors.ErrConflict, "transfer already approved")
		}
		if err := s.transfers.Approve(ctx, tx, id, actor.UserID, now); err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrConflict, "transfer already approved")
			}
			return internalError(err, "failed to approve transfer")
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityTransfer, id, models.AuditActionApprove, actor,
			map[string]interface{}{"approvedBy": nil},
			map[string]interface{}{"approvedBy": actor.UserID, "approvalDate": now},
		)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer approved", zap.Int64("transfer_id", id), zap.Int64("actor", actor.UserID))
	return s.Get(ctx, id)
}

// Get returns a single transfer.
func (s *TransferService) Get(ctx context.Context, id int64) (*models.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "transfer not found", "failed to load transfer")
	}
	return transfer, nil
}

// ListByDevice returns a device's transfer history, newest first.
func (s *TransferService) ListByDevice(ctx context.Context, deviceID int64) ([]models.Transfer, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	transfers, err := s.transfers.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, internalError(err, "failed to list transfers")
	}
	return transfers, nil
}

// List returns transfers matching the query.
func (s *TransferService) List(ctx context.Context, query dto.TransferQuery) ([]models.Transfer, *models.Pagination, error) {
	page, size := pageParams(query.Page, query.PageSize)
	transfers, total, err := s.transfers.List(ctx, models.TransferFilter{
		DeviceID:  query.DeviceID,
		FacultyID: query.FacultyID,
		Approved:  query.Approved,
		Limit:     size,
		Offset:    (page - 1) * size,
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to list transfers")
	}
	return transfers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
