package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lab-asset-api/internal/depreciation"
	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

type depreciationRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.DepreciationRecord) error
	Latest(ctx context.Context, deviceID int64) (*models.DepreciationRecord, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]models.DepreciationRecord, error)
}

type depreciationDeviceStore interface {
	Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error)
	GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error)
	ListEndOfLife(ctx context.Context, cutoff time.Time) ([]models.EndOfLifeDevice, error)
}

// DepreciationService records and reports device book values.
type DepreciationService struct {
	tx             txProvider
	records        depreciationRepository
	devices        depreciationDeviceStore
	audit          auditAppender
	metrics        *MetricsService
	logger         *zap.Logger
	endOfLifeAhead time.Duration
	now            func() time.Time
}

// NewDepreciationService constructs the service. endOfLifeAhead is the default
// look-ahead used by EndOfLife.
func NewDepreciationService(
	tx txProvider,
	records depreciationRepository,
	devices depreciationDeviceStore,
	audit auditAppender,
	metrics *MetricsService,
	logger *zap.Logger,
	endOfLifeAhead time.Duration,
) *DepreciationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if endOfLifeAhead <= 0 {
		endOfLifeAhead = 365 * 24 * time.Hour
	}
	return &DepreciationService{
		tx:             tx,
		records:        records,
		devices:        devices,
		audit:          audit,
		metrics:        metrics,
		logger:         logger,
		endOfLifeAhead: endOfLifeAhead,
		now:            time.Now,
	}
}

// Latest returns the most recent depreciation snapshot for a device.
func (s *DepreciationService) Latest(ctx context.Context, deviceID int64) (*models.DepreciationRecord, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	record, err := s.records.Latest(ctx, deviceID)
	if err != nil {
		return nil, notFoundOr(err, "no depreciation computed", "failed to load depreciation")
	}
	return record, nil
}

// History returns every snapshot for a device, newest first.
func (s *DepreciationService) History(ctx context.Context, deviceID int64) ([]models.DepreciationRecord, error) {
	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		return nil, notFoundOr(err, "device not found", "failed to load device")
	}
	records, err := s.records.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, internalError(err, "failed to list depreciation records")
	}
	return records, nil
}

// Calculate appends a new snapshot computed as of now. Earlier snapshots are
// left untouched.
func (s *DepreciationService) Calculate(ctx context.Context, deviceID int64, actor models.Actor) (record *models.DepreciationRecord, err error) {
	defer func() { s.metrics.RecordWorkflow("depreciation", "calculate", err) }()

	if err = requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		device, err := s.devices.Lock(ctx, tx, deviceID)
		if err != nil {
			return notFoundOr(err, "device not found", "failed to load device")
		}
		result, err := depreciation.Calculate(depreciation.Input{
			PurchasePrice:         device.PurchasePrice,
			PurchaseDate:          device.PurchaseDate,
			ExpectedLifetimeYears: device.ExpectedLifetimeYears,
		}, now)
		if err != nil {
			return validationError(err, err.Error())
		}

		record = &models.DepreciationRecord{
			DeviceID:               device.ID,
			OriginalPrice:          device.PurchasePrice,
			ExpectedLifetimeYears:  device.ExpectedLifetimeYears,
			AnnualDepreciation:     result.AnnualDepreciation,
			CalculationDate:        now,
			CurrentBookValue:       result.CurrentBookValue,
			DepreciationPercentage: result.DepreciationPercentage,
		}
		if err := s.records.Create(ctx, tx, record); err != nil {
			return internalError(err, "failed to record depreciation")
		}
		return appendAudit(ctx, s.audit, tx, models.AuditEntityDevice, device.ID, models.AuditActionDepreciate, actor, nil, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("depreciation recorded",
		zap.Int64("device", deviceID),
		zap.Float64("book_value", record.CurrentBookValue),
		zap.Int64("actor", actor.UserID),
	)
	return record, nil
}

// EndOfLife lists devices whose expected lifetime ends within the window,
// including those already past it. A non-positive window uses the default.
func (s *DepreciationService) EndOfLife(ctx context.Context, within time.Duration, actor models.Actor) ([]models.EndOfLifeDevice, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleUnitManager); err != nil {
		return nil, err
	}
	if within <= 0 {
		within = s.endOfLifeAhead
	}

	now := s.now().UTC()
	devices, err := s.devices.ListEndOfLife(ctx, now.Add(within))
	if err != nil {
		return nil, internalError(err, "failed to list end of life devices")
	}
	for i := range devices {
		d := &devices[i]
		d.EndOfLifeDate = depreciation.EndOfLife(d.PurchaseDate, d.ExpectedLifetimeYears)
		result, err := depreciation.Calculate(depreciation.Input{
			PurchasePrice:         d.PurchasePrice,
			PurchaseDate:          d.PurchaseDate,
			ExpectedLifetimeYears: d.ExpectedLifetimeYears,
		}, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored device has invalid depreciation inputs")
		}
		d.CurrentBookValue = result.CurrentBookValue
	}
	return devices, nil
}
