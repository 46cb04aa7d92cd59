package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

func scrape(metrics *MetricsService) string {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

type failingCache struct{ err error }

func (f failingCache) Get(ctx context.Context, key string, dest interface{}) error { return f.err }

func (f failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return f.err
}

func (f failingCache) Delete(ctx context.Context, keys ...string) error { return f.err }

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	hit, err := nilSvc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, nilSvc.Invalidate(context.Background(), "k"))

	svc := NewCacheService(newMemoryCache(), nil, 0, zap.NewNop(), false)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	hit, err = svc.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceRoundTripRecordsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCache()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out string
	hit, err := svc.Get(ctx, "device:stats", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "device:stats", "cached", 0))
	hit, err = svc.Get(ctx, "device:stats", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached", out)

	require.NoError(t, svc.Invalidate(ctx, "device:stats"))
	assert.Equal(t, []string{"device:stats"}, repo.deleted)

	body := scrape(metrics)
	assert.Contains(t, body, "cache_hits_total 1")
	assert.Contains(t, body, "cache_misses_total 1")
	assert.Contains(t, body, "cache_hit_ratio 0.5")
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewCacheService(failingCache{err: boom}, nil, time.Minute, zap.NewNop(), true)

	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, svc.Invalidate(context.Background(), "k"), boom)

	svc = NewCacheService(failingCache{err: appErrors.ErrCacheMiss}, nil, time.Minute, zap.NewNop(), true)
	hit, err = svc.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
	assert.NoError(t, err)
}

func TestMetricsServiceRecordWorkflowOutcome(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordWorkflow("transfer", "create", nil)
	metrics.RecordWorkflow("transfer", "create", appErrors.Clone(appErrors.ErrConflict, "device location changed since it was read"))
	metrics.RecordWorkflow("transfer", "create", errors.New("db down"))

	body := scrape(metrics)
	assert.Contains(t, body, `asset_workflow_operations_total{action="create",outcome="success",workflow="transfer"} 1`)
	assert.Contains(t, body, `asset_workflow_operations_total{action="create",outcome="conflict",workflow="transfer"} 1`)
	assert.Contains(t, body, `asset_workflow_operations_total{action="create",outcome="internal_error",workflow="transfer"} 1`)

	var nilMetrics *MetricsService
	nilMetrics.RecordWorkflow("transfer", "create", nil)
}

func TestMetricsServiceExposesCodeCacheCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveCodeCache(func() (int64, int64) { return 7, 2 })
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/devices", http.StatusOK, 15*time.Millisecond)

	body := scrape(metrics)
	assert.Contains(t, body, "faculty_code_cache_hits_total 7")
	assert.Contains(t, body, "faculty_code_cache_misses_total 2")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/devices",status="200"} 1`)
}
