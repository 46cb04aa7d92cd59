package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func testClaims(role models.UserRole, expires time.Time) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: 7,
		Role:   role,
		Email:  "tech@lab.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lab-idp",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "lab-idp"})
	svc.now = func() time.Time { return fixedNow }

	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("TECHNICIAN", fixedNow.Add(time.Hour)))
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleTechnician, claims.Role)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "lab-idp"})
	svc.now = func() time.Time { return fixedNow }

	otherIssuer := testClaims(models.RoleAdmin, fixedNow.Add(time.Hour))
	otherIssuer.Issuer = "elsewhere"
	noSubject := testClaims(models.RoleAdmin, fixedNow.Add(time.Hour))
	noSubject.UserID = 0

	cases := map[string]string{
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims(models.RoleAdmin, fixedNow.Add(-time.Minute))),
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), testClaims(models.RoleAdmin, fixedNow.Add(time.Hour))),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, []byte("secret"), testClaims(models.RoleAdmin, fixedNow.Add(time.Hour))),
		"issuer":       signToken(t, jwt.SigningMethodHS256, []byte("secret"), otherIssuer),
		"no subject":   signToken(t, jwt.SigningMethodHS256, []byte("secret"), noSubject),
		"unknown role": signToken(t, jwt.SigningMethodHS256, []byte("secret"), testClaims("superuser", fixedNow.Add(time.Hour))),
		"garbage":      "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
		})
	}
}
