package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lab-asset-api/internal/identity"
	"github.com/noah-isme/lab-asset-api/internal/models"
)

const deviceColumns = `d.id, d.device_id, d.qr_code_token, d.name, d.brand, d.category,
	d.current_laboratory_id, d.current_department_id, d.current_faculty_id,
	d.purchase_date, d.purchase_price, d.expected_lifetime_years, d.current_status,
	d.current_issue, d.notes, d.created_by, d.created_at, d.updated_at`

const deviceDetailFrom = `devices d
JOIN laboratories l ON l.id = d.current_laboratory_id
JOIN departments dp ON dp.id = d.current_department_id
JOIN faculties f ON f.id = d.current_faculty_id`

var deviceDetailColumns = []string{
	deviceColumns,
	"l.name AS laboratory_name",
	"l.code AS laboratory_code",
	"dp.name AS department_name",
	"f.name AS faculty_name",
}

// DeviceRepository persists devices.
type DeviceRepository struct {
	db *sqlx.DB
}

// NewDeviceRepository constructs the repository.
func NewDeviceRepository(db *sqlx.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create inserts a device and fills in its generated id and timestamps.
func (r *DeviceRepository) Create(ctx context.Context, exec sqlx.ExtContext, device *models.Device) error {
	if device.CurrentStatus == "" {
		device.CurrentStatus = models.DeviceStatusWorking
	}
	const query = `
INSERT INTO devices (device_id, qr_code_token, name, brand, category,
	current_laboratory_id, current_department_id, current_faculty_id,
	purchase_date, purchase_price, expected_lifetime_years, current_status,
	current_issue, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id, created_at, updated_at`
	row := executor(r.db, exec).QueryRowxContext(ctx, query,
		device.DeviceID, device.QRCodeToken, device.Name, device.Brand, device.Category,
		device.CurrentLaboratoryID, device.CurrentDepartmentID, device.CurrentFacultyID,
		device.PurchaseDate, device.PurchasePrice, device.ExpectedLifetimeYears, device.CurrentStatus,
		device.CurrentIssue, device.Notes, device.CreatedBy,
	)
	if err := row.Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return r.raiseHighWater(ctx, exec, device.DeviceID)
}

// raiseHighWater records the largest sequence ever issued for the device's
// prefix, so a code stays retired even if its row goes away.
func (r *DeviceRepository) raiseHighWater(ctx context.Context, exec sqlx.ExtContext, deviceID string) error {
	seq, ok := identity.ParseSequence(deviceID)
	if !ok {
		return nil
	}
	const query = `
INSERT INTO device_id_sequences (prefix, last_sequence) VALUES ($1, $2)
ON CONFLICT (prefix) DO UPDATE SET last_sequence = GREATEST(device_id_sequences.last_sequence, EXCLUDED.last_sequence)`
	prefix := deviceID[:strings.LastIndex(deviceID, "-")+1]
	if _, err := executor(r.db, exec).ExecContext(ctx, query, prefix, seq); err != nil {
		return fmt.Errorf("raise device sequence high water: %w", err)
	}
	return nil
}

// GetByID loads a device with its location names.
func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error) {
	return r.getDetail(ctx, sq.Eq{"d.id": id})
}

// GetByDeviceID loads a device by its human-readable code.
func (r *DeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.DeviceDetail, error) {
	return r.getDetail(ctx, sq.Eq{"d.device_id": deviceID})
}

// GetByQRToken loads a device by its QR token.
func (r *DeviceRepository) GetByQRToken(ctx context.Context, token string) (*models.DeviceDetail, error) {
	return r.getDetail(ctx, sq.Eq{"d.qr_code_token": token})
}

func (r *DeviceRepository) getDetail(ctx context.Context, where sq.Eq) (*models.DeviceDetail, error) {
	query, args, err := psql.Select(deviceDetailColumns...).From(deviceDetailFrom).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build device query: %w", err)
	}
	var device models.DeviceDetail
	if err := r.db.GetContext(ctx, &device, query, args...); err != nil {
		return nil, err
	}
	return &device, nil
}

// Lock reads a device row and holds a row lock until the transaction ends.
func (r *DeviceRepository) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.id = $1 FOR UPDATE`
	var device models.Device
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &device, query, id); err != nil {
		return nil, err
	}
	return &device, nil
}

// List returns devices matching the filter plus the total match count.
func (r *DeviceRepository) List(ctx context.Context, filter models.DeviceFilter) ([]models.DeviceDetail, int, error) {
	where := sq.And{}
	if filter.FacultyID != nil {
		where = append(where, sq.Eq{"d.current_faculty_id": *filter.FacultyID})
	}
	if filter.DepartmentID != nil {
		where = append(where, sq.Eq{"d.current_department_id": *filter.DepartmentID})
	}
	if filter.LaboratoryID != nil {
		where = append(where, sq.Eq{"d.current_laboratory_id": *filter.LaboratoryID})
	}
	if filter.Status != nil {
		where = append(where, sq.Eq{"d.current_status": *filter.Status})
	}
	if filter.Category != "" {
		where = append(where, sq.Eq{"d.category": filter.Category})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		where = append(where, sq.Or{sq.ILike{"d.name": like}, sq.ILike{"d.device_id": like}})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(deviceDetailFrom).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build device count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count devices: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := psql.Select(deviceDetailColumns...).From(deviceDetailFrom).Where(where).
		OrderBy("d.created_at DESC", "d.id DESC").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build device list: %w", err)
	}
	var devices []models.DeviceDetail
	if err := r.db.SelectContext(ctx, &devices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	return devices, total, nil
}

// DeviceChanges lists the editable columns. Nil fields are not touched.
type DeviceChanges struct {
	Name          *string
	Category      *string
	CurrentStatus *models.DeviceStatus
	Notes         *string
}

// Update applies a partial update.
func (r *DeviceRepository) Update(ctx context.Context, exec sqlx.ExtContext, id int64, changes DeviceChanges) error {
	builder := psql.Update("devices").Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})
	if changes.Name != nil {
		builder = builder.Set("name", *changes.Name)
	}
	if changes.Category != nil {
		builder = builder.Set("category", *changes.Category)
	}
	if changes.CurrentStatus != nil {
		builder = builder.Set("current_status", *changes.CurrentStatus)
	}
	if changes.Notes != nil {
		builder = builder.Set("notes", *changes.Notes)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build device update: %w", err)
	}
	return execOne(ctx, executor(r.db, exec), "update device", query, args...)
}

// UpdateLocation moves a device to a new laboratory triple.
func (r *DeviceRepository) UpdateLocation(ctx context.Context, exec sqlx.ExtContext, id int64, loc models.Location) error {
	const query = `UPDATE devices SET current_laboratory_id = $1, current_department_id = $2, current_faculty_id = $3, updated_at = $4 WHERE id = $5`
	return execOne(ctx, executor(r.db, exec), "update device location", query,
		loc.LaboratoryID, loc.DepartmentID, loc.FacultyID, time.Now().UTC(), id)
}

// SetCondition writes the status and current issue together.
func (r *DeviceRepository) SetCondition(ctx context.Context, exec sqlx.ExtContext, id int64, status models.DeviceStatus, issue *string) error {
	const query = `UPDATE devices SET current_status = $1, current_issue = $2, updated_at = $3 WHERE id = $4`
	return execOne(ctx, executor(r.db, exec), "update device condition", query, status, issue, time.Now().UTC(), id)
}

// CountByStatus returns the number of devices in each status.
func (r *DeviceRepository) CountByStatus(ctx context.Context) ([]models.DeviceStatusCount, error) {
	const query = `SELECT current_status AS status, COUNT(*) AS total FROM devices GROUP BY current_status ORDER BY current_status`
	var counts []models.DeviceStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count devices by status: %w", err)
	}
	return counts, nil
}

// CountByCategory returns device counts per category, largest first.
func (r *DeviceRepository) CountByCategory(ctx context.Context) ([]models.DeviceGroupCount, error) {
	return r.countGrouped(ctx, "category", psql.Select("d.category AS label", "COUNT(*) AS total").
		From("devices d").
		GroupBy("d.category").
		OrderBy("total DESC", "label"))
}

// CountByFaculty returns device counts per current faculty, largest first.
func (r *DeviceRepository) CountByFaculty(ctx context.Context) ([]models.DeviceGroupCount, error) {
	return r.countGrouped(ctx, "faculty", psql.Select("f.name AS label", "COUNT(*) AS total").
		From("devices d").
		Join("faculties f ON f.id = d.current_faculty_id").
		GroupBy("f.id", "f.name").
		OrderBy("total DESC", "label"))
}

// TopBrands returns the most common brands. Devices without a brand are not counted.
func (r *DeviceRepository) TopBrands(ctx context.Context, limit int) ([]models.DeviceGroupCount, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.countGrouped(ctx, "brand", psql.Select("d.brand AS label", "COUNT(*) AS total").
		From("devices d").
		Where(sq.And{sq.NotEq{"d.brand": nil}, sq.NotEq{"d.brand": ""}}).
		GroupBy("d.brand").
		OrderBy("total DESC", "label").
		Limit(uint64(limit)))
}

func (r *DeviceRepository) countGrouped(ctx context.Context, dimension string, builder sq.SelectBuilder) ([]models.DeviceGroupCount, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build device %s count: %w", dimension, err)
	}
	counts := []models.DeviceGroupCount{}
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count devices by %s: %w", dimension, err)
	}
	return counts, nil
}

// ListEndOfLife returns devices whose expected lifetime ends on or before cutoff.
func (r *DeviceRepository) ListEndOfLife(ctx context.Context, cutoff time.Time) ([]models.EndOfLifeDevice, error) {
	const query = `
SELECT d.id, d.device_id, d.name, l.name AS laboratory_name, d.purchase_date, d.purchase_price, d.expected_lifetime_years
FROM devices d
JOIN laboratories l ON l.id = d.current_laboratory_id
WHERE d.purchase_date + make_interval(years => d.expected_lifetime_years) <= $1
ORDER BY d.purchase_date + make_interval(years => d.expected_lifetime_years), d.id`
	var devices []models.EndOfLifeDevice
	if err := r.db.SelectContext(ctx, &devices, query, cutoff); err != nil {
		return nil, fmt.Errorf("list end of life devices: %w", err)
	}
	return devices, nil
}

// IdentityStore exposes the uniqueness lookups the identity generator needs,
// bound to exec so they see the caller's transaction.
func (r *DeviceRepository) IdentityStore(exec sqlx.ExtContext) identity.Store {
	return deviceIdentityStore{exec: executor(r.db, exec)}
}

type deviceIdentityStore struct {
	exec sqlx.ExtContext
}

// MaxSequence is the larger of the recorded high water mark and the newest
// live code under prefix.
func (s deviceIdentityStore) MaxSequence(ctx context.Context, prefix string) (int, error) {
	const query = `
SELECT COALESCE((SELECT last_sequence FROM device_id_sequences WHERE prefix = $1), 0) AS high_water,
	COALESCE((SELECT device_id FROM devices WHERE device_id LIKE $2 ORDER BY device_id DESC LIMIT 1), '') AS latest`
	var row struct {
		HighWater int    `db:"high_water"`
		Latest    string `db:"latest"`
	}
	if err := sqlx.GetContext(ctx, s.exec, &row, query, prefix, escapeLike(prefix)+"%"); err != nil {
		return 0, fmt.Errorf("max device sequence: %w", err)
	}
	if row.Latest == "" {
		return row.HighWater, nil
	}
	live, ok := identity.ParseSequence(row.Latest)
	if !ok {
		return 0, fmt.Errorf("malformed device id %q", row.Latest)
	}
	if live > row.HighWater {
		return live, nil
	}
	return row.HighWater, nil
}

func (s deviceIdentityStore) DeviceIDExists(ctx context.Context, deviceID string) (bool, error) {
	return exists(ctx, s.exec, `SELECT EXISTS(SELECT 1 FROM devices WHERE device_id = $1)`, deviceID)
}

func (s deviceIdentityStore) QRTokenExists(ctx context.Context, token string) (bool, error) {
	return exists(ctx, s.exec, `SELECT EXISTS(SELECT 1 FROM devices WHERE qr_code_token = $1)`, token)
}

func exists(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := sqlx.GetContext(ctx, exec, &found, query, args...); err != nil {
		return false, err
	}
	return found, nil
}

func execOne(ctx context.Context, exec sqlx.ExtContext, op, query string, args ...interface{}) error {
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
