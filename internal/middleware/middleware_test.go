package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lab-asset-api/internal/models"
	"github.com/noah-isme/lab-asset-api/internal/service"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/guarded", handlers...)
	return r
}

func perform(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: 1, Role: models.RoleAdmin}}
	r := newRouter(JWT(stub))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Bearer   ").Code)
	assert.Empty(t, stub.token)
}

func TestJWTPassesValidToken(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: 1, Role: models.RoleAdmin}}
	r := newRouter(JWT(stub), RequireRoles(models.RoleAdmin))

	w := perform(r, "bearer abc.def.ghi")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "abc.def.ghi", stub.token)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	stub := &validatorStub{err: appErrors.Wrap(errors.New("expired"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")}
	r := newRouter(JWT(stub))

	w := perform(r, "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestRequireRoles(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: 3, Role: models.RoleTechnician}}

	allowed := newRouter(JWT(stub), RequireRoles(models.RoleAdmin, models.RoleTechnician))
	assert.Equal(t, http.StatusNoContent, perform(allowed, "Bearer x").Code)

	denied := newRouter(JWT(stub), RequireRoles(models.RoleAdmin, models.RoleUnitManager))
	w := perform(denied, "Bearer x")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	noClaims := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, perform(noClaims, "").Code)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/guarded", func(c *gin.Context) {
		assert.Nil(t, ExtractMeta(c))
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	perform(r, "")
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/devices/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/devices/1", "/devices/2", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/devices/:id",status="200"} 2`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.NotContains(t, body, "wp-login")
}
