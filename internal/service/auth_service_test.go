package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ministry-learning-api/internal/models"
	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "s3cret", Issuer: "identity", Audience: []string{"learning"}})

	token, expires, err := svc.IssueToken(&models.User{ID: "u-1", Role: models.RoleLeader, Email: "leader@example.org", FullName: "Lea"})
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleLeader, claims.Role)
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "s3cret", Issuer: "identity"})
	other := NewAuthService(AuthConfig{Secret: "other", Issuer: "identity"})

	token, _, err := other.IssueToken(&models.User{ID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer := NewAuthService(AuthConfig{Secret: "s3cret", Issuer: "someone-else"})
	token, _, err = wrongIssuer.IssueToken(&models.User{ID: "u-1"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRejectsOtherAlgorithms(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "s3cret"})
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u-1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}
