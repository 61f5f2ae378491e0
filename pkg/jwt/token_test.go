package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	svc, err := NewTokenService("secret", "kulapay", time.Hour)
	require.NoError(t, err)

	token, err := svc.Issue("ops@kulapay", "admin")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@kulapay", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "kulapay", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer, err := NewTokenService("secret", "kulapay", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenService("different", "kulapay", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("ops", "admin")
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	svc, err := NewTokenService("secret", "kulapay", time.Minute)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.Issue("ops", "admin")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("", "kulapay", time.Hour)
	assert.Error(t, err)
}
