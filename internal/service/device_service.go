package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lab-asset-api/internal/depreciation"
	"github.com/noah-isme/lab-asset-api/internal/dto"
	"github.com/noah-isme/lab-asset-api/internal/identity"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/internal/repository"
	"github.com/noah-isme/lab-asset-api/pkg/database"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

const (
	dateLayout     = "2006-01-02"
	topBrandsLimit = 5
)

type deviceRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, device *models.Device) error
	GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.DeviceDetail, error)
	GetByQRToken(ctx context.Context, token string) (*models.DeviceDetail, error)
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error)
	List(ctx context.Context, filter models.DeviceFilter) ([]models.DeviceDetail, int, error)
	Update(ctx context.Context, exec sqlx.ExtContext, id int64, changes repository.DeviceChanges) error
	CountByStatus(ctx context.Context) ([]models.DeviceStatusCount, error)
	CountByCategory(ctx context.Context) ([]models.DeviceGroupCount, error)
	CountByFaculty(ctx context.Context) ([]models.DeviceGroupCount, error)
	TopBrands(ctx context.Context, limit int) ([]models.DeviceGroupCount, error)
	IdentityStore(exec sqlx.ExtContext) identity.Store
}

type labResolver interface {
	ResolveLab(ctx context.Context, exec sqlx.ExtContext, laboratoryID int64) (*models.LabChain, error)
	FacultyCode(ctx context.Context, facultyID int64) (string, error)
}

type openMaintenanceChecker interface {
	HasOpenRequest(ctx context.Context, exec sqlx.ExtContext, deviceID int64) (bool, error)
}

type depreciationWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.DepreciationRecord) error
}

// DeviceServiceConfig tunes the device service.
type DeviceServiceConfig struct {
	PublicCacheTTL time.Duration
}

// DeviceService owns device registration and the device read models.
type DeviceService struct {
	tx           txProvider
	devices      deviceRepository
	labs         labResolver
	maintenance  openMaintenanceChecker
	depreciation depreciationWriter
	audit        auditAppender
	ids          *identity.Generator
	codes        *identity.CodeCache
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          DeviceServiceConfig
	now          func() time.Time
}

// NewDeviceService constructs the service.
func NewDeviceService(
	tx txProvider,
	devices deviceRepository,
	labs labResolver,
	maintenance openMaintenanceChecker,
	depreciation depreciationWriter,
	audit auditAppender,
	ids *identity.Generator,
	codes *identity.CodeCache,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg DeviceServiceConfig,
) *DeviceService {
	if ids == nil {
		ids = identity.NewGenerator(0)
	}
	if codes == nil {
		codes = identity.NewCodeCache(0, 10*time.Minute)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{
		tx:           tx,
		devices:      devices,
		labs:         labs,
		maintenance:  maintenance,
		depreciation: depreciation,
		audit:        audit,
		ids:          ids,
		codes:        codes,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Create registers a device, its first depreciation record and the audit entry
// in one transaction. Identifier races with concurrent registrations are
// retried with a fresh transaction.
func (s *DeviceService) Create(ctx context.Context, req dto.CreateDeviceRequest, actor models.Actor) (result *dto.CreateDeviceResult, err error) {
	defer func() { s.metrics.RecordWorkflow("device", "create", err) }()

	if err = requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid device payload")
	}
	purchaseDate, parseErr := time.Parse(dateLayout, req.PurchaseDate)
	if parseErr != nil {
		err = validationError(parseErr, "purchaseDate must be YYYY-MM-DD")
		return nil, err
	}

	now := s.now().UTC()
	price := depreciation.Round(*req.PurchasePrice)
	initial, calcErr := depreciation.Initial(depreciation.Input{
		PurchasePrice:         price,
		PurchaseDate:          purchaseDate,
		ExpectedLifetimeYears: req.ExpectedLifetimeYears,
	}, now)
	if calcErr != nil {
		err = validationError(calcErr, calcErr.Error())
		return nil, err
	}

	var created dto.CreateDeviceResult
	err = identity.Retry(ctx, s.ids.MaxAttempts(), database.IsUniqueViolation, func(attempt int) error {
		if attempt > 0 {
			s.logger.Info("retrying device identifier allocation", zap.Int("attempt", attempt))
		}
		return inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			chain, err := s.labs.ResolveLab(ctx, tx, req.LaboratoryID)
			if err != nil {
				return notFoundAsInvalid(err, "laboratory does not exist")
			}
			if req.DepartmentID != nil && *req.DepartmentID != chain.DepartmentID {
				return appErrors.Clone(appErrors.ErrValidation, "department does not match the laboratory")
			}
			if req.FacultyID != nil && *req.FacultyID != chain.FacultyID {
				return appErrors.Clone(appErrors.ErrValidation, "faculty does not match the laboratory")
			}

			code, err := s.codes.Get(ctx, chain.FacultyID, s.labs.FacultyCode)
			if err != nil {
				return notFoundAsInvalid(err, "faculty code is not configured")
			}
			ident, err := s.ids.Generate(ctx, s.devices.IdentityStore(tx), code, now)
			if err != nil {
				return err
			}

			device := &models.Device{
				DeviceID:              ident.DeviceID,
				QRCodeToken:           ident.QRCodeToken,
				Name:                  req.Name,
				Brand:                 trimOptional(req.Brand),
				Category:              req.Category,
				CurrentLaboratoryID:   chain.LaboratoryID,
				CurrentDepartmentID:   chain.DepartmentID,
				CurrentFacultyID:      chain.FacultyID,
				PurchaseDate:          purchaseDate,
				PurchasePrice:         price,
				ExpectedLifetimeYears: req.ExpectedLifetimeYears,
				CurrentStatus:         models.DeviceStatusWorking,
				Notes:                 trimOptional(req.Notes),
				CreatedBy:             actor.UserID,
			}
			if err := s.devices.Create(ctx, tx, device); err != nil {
				return err
			}

			record := &models.DepreciationRecord{
				DeviceID:               device.ID,
				OriginalPrice:          price,
				ExpectedLifetimeYears:  req.ExpectedLifetimeYears,
				AnnualDepreciation:     initial.AnnualDepreciation,
				CalculationDate:        now,
				CurrentBookValue:       initial.CurrentBookValue,
				DepreciationPercentage: initial.DepreciationPercentage,
			}
			if err := s.depreciation.Create(ctx, tx, record); err != nil {
				return internalError(err, "failed to record initial depreciation")
			}

			if err := appendAudit(ctx, s.audit, tx, models.AuditEntityDevice, device.ID, models.AuditActionCreate, actor, nil, device); err != nil {
				return err
			}

			created = dto.CreateDeviceResult{ID: device.ID, DeviceID: device.DeviceID, QRCodeToken: device.QRCodeToken}
			return nil
		})
	})
	if err != nil {
		err = mapCreateError(err)
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, statsCacheKey)
	s.logger.Info("device registered", zap.Int64("id", created.ID), zap.String("device_id", created.DeviceID), zap.Int64("actor", actor.UserID))
	return &created, nil
}

// Unique constraint names Postgres derives for the devices table.
const (
	deviceIDConstraint = "devices_device_id_key"
	qrTokenConstraint  = "devices_qr_code_token_key"
)

// collidedIdentifier names the identifier behind a unique violation, or ""
// when the constraint is not one of the device identifiers.
func collidedIdentifier(err error) string {
	switch database.ConstraintName(err) {
	case deviceIDConstraint:
		return "deviceId"
	case qrTokenConstraint:
		return "qrCodeToken"
	}
	return ""
}

func mapCreateError(err error) error {
	field := collidedIdentifier(err)
	switch {
	case errors.Is(err, identity.ErrExhausted):
		message := "could not allocate a unique device identifier"
		if field != "" {
			message += ": " + field + " kept colliding"
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	case errors.Is(err, identity.ErrInvalidFacultyCode):
		return validationError(err, "faculty code is not configured")
	case database.IsUniqueViolation(err):
		message := "device identifier already taken"
		if field != "" {
			message = field + " already taken"
		}
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, "failed to register device")
}

// Update applies a partial update to the editable device fields.
func (s *DeviceService) Update(ctx context.Context, id int64, req dto.UpdateDeviceRequest, actor models.Actor) (device *models.DeviceDetail, err error) {
	defer func() { s.metrics.RecordWorkflow("device", "update", err) }()

	if err = requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid device payload")
	}
	if req.Empty() {
		err = appErrors.Clone(appErrors.ErrValidation, "no changes supplied")
		return nil, err
	}
	if req.CurrentStatus != nil {
		if !req.CurrentStatus.Valid() {
			err = appErrors.Clone(appErrors.ErrValidation, "unknown device status")
			return nil, err
		}
		if *req.CurrentStatus == models.DeviceStatusUnderMaintenance {
			err = appErrors.Clone(appErrors.ErrValidation, "under_maintenance is set by opening a maintenance request")
			return nil, err
		}
	}

	var token string
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.devices.Lock(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		token = current.QRCodeToken

		before := map[string]interface{}{}
		after := map[string]interface{}{}
		changes := repository.DeviceChanges{}
		if req.Name != nil && *req.Name != current.Name {
			changes.Name = req.Name
			before["name"], after["name"] = current.Name, *req.Name
		}
		if req.Category != nil && *req.Category != current.Category {
			changes.Category = req.Category
			before["category"], after["category"] = current.Category, *req.Category
		}
		if req.Notes != nil {
			changes.Notes = req.Notes
			before["notes"], after["notes"] = current.Notes, *req.Notes
		}
		if req.CurrentStatus != nil && *req.CurrentStatus != current.CurrentStatus {
			open, err := s.maintenance.HasOpenRequest(ctx, tx, id)
			if err != nil {
				return internalError(err, "failed to check maintenance state")
			}
			if open || current.CurrentStatus == models.DeviceStatusUnderMaintenance {
				return appErrors.Clone(appErrors.ErrConflict, "device has an open maintenance request")
			}
			changes.CurrentStatus = req.CurrentStatus
			before["currentStatus"], after["currentStatus"] = current.CurrentStatus, *req.CurrentStatus
		}
		if len(after) == 0 {
			return nil
		}

		if err := s.devices.Update(ctx, tx, id, changes); err != nil {
			return internalError(err, "failed to update device")
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityDevice, id, models.AuditActionUpdate, actor, before, after)
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, publicCacheKey(token), statsCacheKey)
	s.logger.Info("device updated", zap.Int64("id", id), zap.Int64("actor", actor.UserID))

	device, err = s.Get(ctx, id)
	return device, err
}

// Get returns a device with its location names.
func (s *DeviceService) Get(ctx context.Context, id int64) (*models.DeviceDetail, error) {
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	return device, nil
}

// GetByDeviceID looks a device up by its human-readable code.
func (s *DeviceService) GetByDeviceID(ctx context.Context, deviceID string) (*models.DeviceDetail, error) {
	device, err := s.devices.GetByDeviceID(ctx, identity.NormalizeCode(deviceID))
	if err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	return device, nil
}

// List returns devices matching the query.
func (s *DeviceService) List(ctx context.Context, query dto.DeviceQuery) ([]models.DeviceDetail, *models.Pagination, error) {
	page, size := pageParams(query.Page, query.PageSize)
	filter := models.DeviceFilter{
		FacultyID:    query.FacultyID,
		DepartmentID: query.DepartmentID,
		LaboratoryID: query.LaboratoryID,
		Category:     query.Category,
		Search:       query.Search,
		Limit:        size,
		Offset:       (page - 1) * size,
	}
	if query.Status != nil && *query.Status != "" {
		status := models.DeviceStatus(*query.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown device status")
		}
		filter.Status = &status
	}

	devices, total, err := s.devices.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list devices")
	}
	return devices, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats returns the fleet breakdown by status, category, faculty and brand.
func (s *DeviceService) Stats(ctx context.Context) (*dto.DeviceStats, error) {
	var cached dto.DeviceStats
	if hit, _ := s.cache.Get(ctx, statsCacheKey, &cached); hit {
		return &cached, nil
	}

	counts, err := s.devices.CountByStatus(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count devices")
	}
	stats := &dto.DeviceStats{ByStatus: map[models.DeviceStatus]int{
		models.DeviceStatusWorking:          0,
		models.DeviceStatusUnderMaintenance: 0,
		models.DeviceStatusOutOfService:     0,
	}}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Total
		stats.Total += c.Total
	}

	if stats.ByCategory, err = s.devices.CountByCategory(ctx); err != nil {
		return nil, internalError(err, "failed to count devices by category")
	}
	if stats.ByFaculty, err = s.devices.CountByFaculty(ctx); err != nil {
		return nil, internalError(err, "failed to count devices by faculty")
	}
	if stats.TopBrands, err = s.devices.TopBrands(ctx, topBrandsLimit); err != nil {
		return nil, internalError(err, "failed to rank device brands")
	}

	_ = s.cache.Set(ctx, statsCacheKey, stats, s.cfg.PublicCacheTTL)
	return stats, nil
}

// GetPublic returns the public card for a QR token and whether it came from
// cache. It needs no authentication.
func (s *DeviceService) GetPublic(ctx context.Context, token string) (*dto.PublicDevice, bool, error) {
	if token == "" {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "device not found")
	}
	key := publicCacheKey(token)

	var cached dto.PublicDevice
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	device, err := s.devices.GetByQRToken(ctx, token)
	if err != nil {
		return nil, false, notFoundOr(err, "device not found", "failed to load device")
	}
	card := &dto.PublicDevice{
		DeviceID:       device.DeviceID,
		Name:           device.Name,
		Brand:          device.Brand,
		Category:       device.Category,
		CurrentStatus:  device.CurrentStatus,
		CurrentIssue:   device.CurrentIssue,
		PurchaseDate:   device.PurchaseDate.Format(dateLayout),
		FacultyName:    device.FacultyName,
		DepartmentName: device.DepartmentName,
		LaboratoryName: device.LaboratoryName,
		LaboratoryCode: device.LaboratoryCode,
	}
	_ = s.cache.Set(ctx, key, card, s.cfg.PublicCacheTTL)
	return card, false, nil
}

func notFoundAsInvalid(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, "failed to resolve location")
}
