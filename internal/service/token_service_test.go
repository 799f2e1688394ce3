package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "tutorhub", TTL: time.Minute})

	token, expiresAt, err := svc.Issue(101, 1, models.RoleStudent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(101), claims.UserID)
	assert.Equal(t, int64(1), claims.ProfileID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "tutorhub"})

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "tutorhub"})
	forged, _, err := other.Issue(101, 1, models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewTokenService(TokenConfig{Secret: "secret", Issuer: "elsewhere"})
	token, _, err := wrongIssuer.Issue(101, 1, models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenServiceRejectsExpiredAndUnknownRole(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", TTL: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.Issue(101, 1, models.RoleTutor)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	claims := &models.JWTClaims{UserID: 5, Role: "JANITOR", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
