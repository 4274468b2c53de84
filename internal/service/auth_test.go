package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/screenops/alertcore/internal/config"
	"github.com/screenops/alertcore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(config.AuthConfig{})
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestAuthService_RoundTrip(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)

	token, err := svc.IssueToken(model.AuthUser{ID: "user-1", TenantID: "tenant-1", Role: "Admin"}, time.Hour)
	require.NoError(t, err)

	user, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, &model.AuthUser{ID: "user-1", TenantID: "tenant-1", Role: model.RoleAdmin}, user)
	assert.False(t, user.IsMonitor())
}

func TestAuthService_MonitorWithoutTenant(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)

	token, err := svc.IssueToken(model.AuthUser{ID: "device-monitor", Role: model.RoleMonitor}, time.Hour)
	require.NoError(t, err)
	user, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.True(t, user.IsMonitor())

	token, err = svc.IssueToken(model.AuthUser{ID: "user-1", Role: model.RoleOperator}, time.Hour)
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_RejectsInvalidTokens(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)
	other, err := NewAuthService(config.AuthConfig{JWTSecret: "other-secret"})
	require.NoError(t, err)

	expired, err := svc.IssueToken(model.AuthUser{ID: "user-1", TenantID: "tenant-1", Role: model.RoleOwner}, -time.Minute)
	require.NoError(t, err)
	forged, err := other.IssueToken(model.AuthUser{ID: "user-1", TenantID: "tenant-1", Role: model.RoleOwner}, time.Hour)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "role": "owner", "tenantId": "t"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":  expired,
		"forged":   forged,
		"unsigned": unsigned,
		"garbage":  "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ParseAccessToken(token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}
