package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	svc, err := NewAuthService(nil, nil, AuthConfig{
		SharedPassword: "adso3064975",
		TokenSecret:    "test-secret",
		BcryptCost:     bcrypt.MinCost,
	})
	require.NoError(t, err)
	return svc
}

func TestAuthenticate(t *testing.T) {
	svc := newTestAuthService(t)

	username, err := svc.Authenticate(models.LoginRequest{Username: "  maria ", Password: "adso3064975"})
	require.NoError(t, err)
	assert.Equal(t, "maria", username)

	cases := []models.LoginRequest{
		{Username: "maria", Password: ""},
		{Username: "maria", Password: "wrong"},
		{Username: "   ", Password: "adso3064975"},
	}
	for _, req := range cases {
		_, err := svc.Authenticate(req)
		assert.ErrorIs(t, err, appErrors.ErrAuthFailure)
	}
}

func TestAuthenticateWithConfiguredHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("otra-clave"), bcrypt.MinCost)
	require.NoError(t, err)

	svc, err := NewAuthService(nil, nil, AuthConfig{SharedPasswordHash: string(hash), TokenSecret: "s"})
	require.NoError(t, err)

	_, err = svc.Authenticate(models.LoginRequest{Username: "ana", Password: "otra-clave"})
	assert.NoError(t, err)

	_, err = NewAuthService(nil, nil, AuthConfig{SharedPasswordHash: "not-a-hash"})
	assert.Error(t, err)
}

func TestScopeTokens(t *testing.T) {
	svc := newTestAuthService(t)
	id := NewScopeID()

	token, err := svc.IssueScopeToken(models.ScopeTokenClient, id)
	require.NoError(t, err)

	parsed, err := svc.ParseScopeToken(models.ScopeTokenClient, token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = svc.ParseScopeToken(models.ScopeTokenTab, token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ParseScopeToken(models.ScopeTokenClient, token+"x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestScopeTokenExpired(t *testing.T) {
	svc := newTestAuthService(t)
	claims := &models.ScopeClaims{
		Kind: models.ScopeTokenTab,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    scopeTokenIssuer,
			Subject:   NewScopeID(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ParseScopeToken(models.ScopeTokenTab, token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
