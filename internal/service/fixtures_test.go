package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lab-asset-api/internal/identity"
	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/internal/repository"
)

var (
	adminActor      = models.Actor{UserID: 1, Role: models.RoleAdmin, IPAddress: "10.0.0.1"}
	managerActor    = models.Actor{UserID: 2, Role: models.RoleUnitManager}
	technicianActor = models.Actor{UserID: 3, Role: models.RoleTechnician}
	userActor       = models.Actor{UserID: 4, Role: models.RoleUser}
	fixedNow        = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

// --- hierarchy ---

type hierarchyStub struct {
	labs        map[int64]models.LabChain
	departments map[int64]bool
	faculties   map[int64]string
	codeLoads   int
}

func newHierarchyStub() *hierarchyStub {
	return &hierarchyStub{
		labs: map[int64]models.LabChain{
			10: {Location: models.Location{LaboratoryID: 10, DepartmentID: 20, FacultyID: 30}, LaboratoryName: "Chem Lab", LaboratoryCode: "CL1", DepartmentName: "Chemistry", FacultyName: "Science"},
			11: {Location: models.Location{LaboratoryID: 11, DepartmentID: 21, FacultyID: 31}, LaboratoryName: "Robotics", LaboratoryCode: "RB1", DepartmentName: "Mechatronics", FacultyName: "Engineering"},
		},
		departments: map[int64]bool{20: true, 21: true},
		faculties:   map[int64]string{30: "sci", 31: "ENG"},
	}
}

func (h *hierarchyStub) ResolveLab(ctx context.Context, exec sqlx.ExtContext, laboratoryID int64) (*models.LabChain, error) {
	chain, ok := h.labs[laboratoryID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &chain, nil
}

func (h *hierarchyStub) FacultyCode(ctx context.Context, facultyID int64) (string, error) {
	h.codeLoads++
	code, ok := h.faculties[facultyID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return code, nil
}

func (h *hierarchyStub) DepartmentExists(ctx context.Context, exec sqlx.ExtContext, departmentID int64) (bool, error) {
	return h.departments[departmentID], nil
}

func (h *hierarchyStub) FacultyExists(ctx context.Context, facultyID int64) (bool, error) {
	_, ok := h.faculties[facultyID]
	return ok, nil
}

func (h *hierarchyStub) ListFaculties(ctx context.Context) ([]models.Faculty, error) {
	ids := make([]int64, 0, len(h.faculties))
	for id := range h.faculties {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]models.Faculty, 0, len(ids))
	for _, id := range ids {
		result = append(result, models.Faculty{ID: id, Code: h.faculties[id]})
	}
	return result, nil
}

func (h *hierarchyStub) ListDepartments(ctx context.Context, facultyID int64) ([]models.Department, error) {
	var result []models.Department
	for _, chain := range h.labs {
		if chain.FacultyID == facultyID {
			result = append(result, models.Department{ID: chain.DepartmentID, FacultyID: facultyID, Name: chain.DepartmentName})
		}
	}
	return result, nil
}

func (h *hierarchyStub) ListLaboratories(ctx context.Context, departmentID int64) ([]models.Laboratory, error) {
	var result []models.Laboratory
	for _, chain := range h.labs {
		if chain.DepartmentID == departmentID {
			result = append(result, models.Laboratory{ID: chain.LaboratoryID, DepartmentID: departmentID, Name: chain.LaboratoryName, Code: chain.LaboratoryCode})
		}
	}
	return result, nil
}

// --- devices ---

type deviceStoreStub struct {
	mu        sync.Mutex
	hierarchy *hierarchyStub
	devices   map[int64]*models.Device
	nextID    int64
	// createErrs are returned, in order, by successive Create calls before any insert succeeds.
	createErrs []error
	creates    int
	updates    []repository.DeviceChanges
	endOfLife  []models.EndOfLifeDevice
	cutoff     time.Time
}

func newDeviceStoreStub(h *hierarchyStub) *deviceStoreStub {
	return &deviceStoreStub{hierarchy: h, devices: map[int64]*models.Device{}, nextID: 100}
}

func (s *deviceStoreStub) seed(d models.Device) *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		s.nextID++
		d.ID = s.nextID
	}
	if d.CurrentStatus == "" {
		d.CurrentStatus = models.DeviceStatusWorking
	}
	stored := d
	s.devices[d.ID] = &stored
	return &stored
}

func (s *deviceStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		return err
	}
	s.nextID++
	device.ID = s.nextID
	device.CreatedAt = fixedNow
	device.UpdatedAt = fixedNow
	stored := *device
	s.devices[device.ID] = &stored
	return nil
}

func (s *deviceStoreStub) detail(d *models.Device) *models.DeviceDetail {
	detail := &models.DeviceDetail{Device: *d}
	if chain, ok := s.hierarchy.labs[d.CurrentLaboratoryID]; ok {
		detail.LaboratoryName = chain.LaboratoryName
		detail.LaboratoryCode = chain.LaboratoryCode
		detail.DepartmentName = chain.DepartmentName
		detail.FacultyName = chain.FacultyName
	}
	return detail
}

func (s *deviceStoreStub) GetByID(ctx context.Context, id int64) (*models.DeviceDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.detail(d), nil
}

func (s *deviceStoreStub) GetByDeviceID(ctx context.Context, deviceID string) (*models.DeviceDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.DeviceID == deviceID {
			return s.detail(d), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *deviceStoreStub) GetByQRToken(ctx context.Context, token string) (*models.DeviceDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.QRCodeToken == token {
			return s.detail(d), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *deviceStoreStub) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *d
	return &copy, nil
}

func (s *deviceStoreStub) List(ctx context.Context, filter models.DeviceFilter) ([]models.DeviceDetail, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.DeviceDetail
	for _, d := range s.devices {
		if filter.Status != nil && d.CurrentStatus != *filter.Status {
			continue
		}
		result = append(result, *s.detail(d))
	}
	return result, len(result), nil
}

func (s *deviceStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, id int64, changes repository.DeviceChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.updates = append(s.updates, changes)
	if changes.Name != nil {
		d.Name = *changes.Name
	}
	if changes.Category != nil {
		d.Category = *changes.Category
	}
	if changes.CurrentStatus != nil {
		d.CurrentStatus = *changes.CurrentStatus
	}
	if changes.Notes != nil {
		d.Notes = changes.Notes
	}
	return nil
}

func (s *deviceStoreStub) UpdateLocation(ctx context.Context, exec sqlx.ExtContext, id int64, loc models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.CurrentLaboratoryID = loc.LaboratoryID
	d.CurrentDepartmentID = loc.DepartmentID
	d.CurrentFacultyID = loc.FacultyID
	return nil
}

func (s *deviceStoreStub) SetCondition(ctx context.Context, exec sqlx.ExtContext, id int64, status models.DeviceStatus, issue *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.CurrentStatus = status
	d.CurrentIssue = issue
	return nil
}

func (s *deviceStoreStub) CountByStatus(ctx context.Context) ([]models.DeviceStatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.DeviceStatus]int{}
	for _, d := range s.devices {
		counts[d.CurrentStatus]++
	}
	var result []models.DeviceStatusCount
	for status, total := range counts {
		result = append(result, models.DeviceStatusCount{Status: status, Total: total})
	}
	return result, nil
}

func (s *deviceStoreStub) CountByCategory(ctx context.Context) ([]models.DeviceGroupCount, error) {
	return s.grouped(func(d *models.Device) string { return d.Category }, 0), nil
}

func (s *deviceStoreStub) CountByFaculty(ctx context.Context) ([]models.DeviceGroupCount, error) {
	names := map[int64]string{}
	for _, chain := range s.hierarchy.labs {
		names[chain.FacultyID] = chain.FacultyName
	}
	return s.grouped(func(d *models.Device) string { return names[d.CurrentFacultyID] }, 0), nil
}

func (s *deviceStoreStub) TopBrands(ctx context.Context, limit int) ([]models.DeviceGroupCount, error) {
	return s.grouped(func(d *models.Device) string {
		if d.Brand == nil {
			return ""
		}
		return *d.Brand
	}, limit), nil
}

func (s *deviceStoreStub) grouped(label func(*models.Device) string, limit int) []models.DeviceGroupCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, d := range s.devices {
		if key := label(d); key != "" {
			counts[key]++
		}
	}
	result := []models.DeviceGroupCount{}
	for key, total := range counts {
		result = append(result, models.DeviceGroupCount{Label: key, Total: total})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].Label < result[j].Label
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *deviceStoreStub) ListEndOfLife(ctx context.Context, cutoff time.Time) ([]models.EndOfLifeDevice, error) {
	s.cutoff = cutoff
	result := make([]models.EndOfLifeDevice, len(s.endOfLife))
	copy(result, s.endOfLife)
	return result, nil
}

func (s *deviceStoreStub) IdentityStore(exec sqlx.ExtContext) identity.Store {
	return deviceIdentityStub{s: s}
}

type deviceIdentityStub struct {
	s *deviceStoreStub
}

func (d deviceIdentityStub) MaxSequence(ctx context.Context, prefix string) (int, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	highest := 0
	for _, dev := range d.s.devices {
		if !strings.HasPrefix(dev.DeviceID, prefix) {
			continue
		}
		if seq, ok := identity.ParseSequence(dev.DeviceID); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

func (d deviceIdentityStub) DeviceIDExists(ctx context.Context, deviceID string) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	for _, dev := range d.s.devices {
		if dev.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

func (d deviceIdentityStub) QRTokenExists(ctx context.Context, token string) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	for _, dev := range d.s.devices {
		if dev.QRCodeToken == token {
			return true, nil
		}
	}
	return false, nil
}

// --- depreciation ---

type depreciationRepoStub struct {
	records []models.DepreciationRecord
	err     error
}

func (r *depreciationRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, record *models.DepreciationRecord) error {
	if r.err != nil {
		return r.err
	}
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *depreciationRepoStub) Latest(ctx context.Context, deviceID int64) (*models.DepreciationRecord, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].DeviceID == deviceID {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *depreciationRepoStub) ListByDevice(ctx context.Context, deviceID int64) ([]models.DepreciationRecord, error) {
	var result []models.DepreciationRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].DeviceID == deviceID {
			result = append(result, r.records[i])
		}
	}
	return result, nil
}

// --- audit ---

type auditRecorder struct {
	entries []*models.AuditLog
	err     error
}

func (a *auditRecorder) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditRecorder) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	var result []models.AuditLog
	for _, e := range a.entries {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		result = append(result, *e)
	}
	return result, len(result), nil
}

func (a *auditRecorder) actions() []string {
	result := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		result = append(result, e.EntityType+"/"+e.Action)
	}
	return result
}

// --- transfers ---

type transferRepoStub struct {
	transfers map[int64]*models.Transfer
	nextID    int64
}

func newTransferRepoStub() *transferRepoStub {
	return &transferRepoStub{transfers: map[int64]*models.Transfer{}}
}

func (r *transferRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.Transfer) error {
	r.nextID++
	transfer.ID = r.nextID
	transfer.CreatedAt = fixedNow
	stored := *transfer
	r.transfers[transfer.ID] = &stored
	return nil
}

func (r *transferRepoStub) GetByID(ctx context.Context, id int64) (*models.Transfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *t
	return &copy, nil
}

func (r *transferRepoStub) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *transferRepoStub) Approve(ctx context.Context, exec sqlx.ExtContext, id, approvedBy int64, at time.Time) error {
	t, ok := r.transfers[id]
	if !ok || t.ApprovedBy != nil {
		return sql.ErrNoRows
	}
	t.ApprovedBy = &approvedBy
	t.ApprovalDate = &at
	return nil
}

func (r *transferRepoStub) ListByDevice(ctx context.Context, deviceID int64) ([]models.Transfer, error) {
	var result []models.Transfer
	for id := r.nextID; id > 0; id-- {
		if t, ok := r.transfers[id]; ok && t.DeviceID == deviceID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *transferRepoStub) List(ctx context.Context, filter models.TransferFilter) ([]models.Transfer, int, error) {
	var result []models.Transfer
	for id := int64(1); id <= r.nextID; id++ {
		if t, ok := r.transfers[id]; ok {
			result = append(result, *t)
		}
	}
	return result, len(result), nil
}

// --- maintenance ---

type maintenanceRepoStub struct {
	requests   map[int64]*models.MaintenanceRequest
	history    []models.MaintenanceHistory
	nextID     int64
	historyErr error
	filter     models.MaintenanceFilter
}

func newMaintenanceRepoStub() *maintenanceRepoStub {
	return &maintenanceRepoStub{requests: map[int64]*models.MaintenanceRequest{}}
}

func (r *maintenanceRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, req *models.MaintenanceRequest) error {
	r.nextID++
	req.ID = r.nextID
	req.CreatedAt = fixedNow
	req.UpdatedAt = fixedNow
	stored := *req
	r.requests[req.ID] = &stored
	return nil
}

func (r *maintenanceRepoStub) GetByID(ctx context.Context, id int64) (*models.MaintenanceRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *req
	return &copy, nil
}

func (r *maintenanceRepoStub) Lock(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.MaintenanceRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *maintenanceRepoStub) HasOpenRequest(ctx context.Context, exec sqlx.ExtContext, deviceID int64) (bool, error) {
	for _, req := range r.requests {
		if req.DeviceID == deviceID && req.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (r *maintenanceRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, t repository.Transition) error {
	req, ok := r.requests[t.ID]
	if !ok || req.Status != t.From {
		return sql.ErrNoRows
	}
	req.Status = t.To
	if t.AssignedTo != nil {
		req.AssignedTo = t.AssignedTo
	}
	if t.ScheduledDate != nil {
		req.ScheduledDate = t.ScheduledDate
	}
	if t.CompletedDate != nil {
		req.CompletedDate = t.CompletedDate
	}
	if t.Cost != nil {
		req.Cost = t.Cost
	}
	if t.Notes != nil {
		req.Notes = t.Notes
	}
	return nil
}

func (r *maintenanceRepoStub) CreateHistory(ctx context.Context, exec sqlx.ExtContext, h *models.MaintenanceHistory) error {
	if r.historyErr != nil {
		return r.historyErr
	}
	for _, existing := range r.history {
		if existing.MaintenanceRequestID == h.MaintenanceRequestID {
			return uniqueViolation("maintenance_history_maintenance_request_id_key")
		}
	}
	h.ID = int64(len(r.history) + 1)
	r.history = append(r.history, *h)
	return nil
}

func (r *maintenanceRepoStub) ListHistoryByDevice(ctx context.Context, deviceID int64) ([]models.MaintenanceHistory, error) {
	var result []models.MaintenanceHistory
	for _, h := range r.history {
		if h.DeviceID == deviceID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (r *maintenanceRepoStub) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRequest, int, error) {
	r.filter = filter
	var result []models.MaintenanceRequest
	for id := int64(1); id <= r.nextID; id++ {
		if req, ok := r.requests[id]; ok {
			result = append(result, *req)
		}
	}
	return result, len(result), nil
}

// --- users ---

type userStub struct {
	users map[int64]*models.User
}

func (u userStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }
