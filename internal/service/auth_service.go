package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/aprendices-roster/internal/models"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

const scopeTokenIssuer = "aprendices-roster"

// AuthConfig defines the shared secret and the scope token settings.
type AuthConfig struct {
	SharedPassword     string
	SharedPasswordHash string
	TokenSecret        string
	ClientTokenTTL     time.Duration
	TabTokenTTL        time.Duration
	BcryptCost         int
}

// AuthService checks the shared password and issues the cookies that
// identify a browser and its tabs.
type AuthService struct {
	validator    *validator.Validate
	logger       *zap.Logger
	config       AuthConfig
	passwordHash []byte
}

// NewAuthService constructs an AuthService. The plain shared password is
// hashed once unless a hash is configured.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.ClientTokenTTL <= 0 {
		config.ClientTokenTTL = 365 * 24 * time.Hour
	}
	if config.TabTokenTTL <= 0 {
		config.TabTokenTTL = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	hash := []byte(config.SharedPasswordHash)
	if len(hash) == 0 {
		if config.SharedPassword == "" {
			return nil, fmt.Errorf("shared password is not configured")
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(config.SharedPassword), config.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash shared password: %w", err)
		}
		hash = generated
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid shared password hash: %w", err)
	}

	return &AuthService{validator: validate, logger: logger, config: config, passwordHash: hash}, nil
}

// Authenticate accepts any non-blank username with the shared password and
// returns the trimmed username.
func (s *AuthService) Authenticate(req models.LoginRequest) (string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrAuthFailure.Code, appErrors.ErrAuthFailure.Status, appErrors.ErrAuthFailure.Message)
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		s.logger.Info("login rejected", zap.String("username", req.Username))
		return "", appErrors.Clone(appErrors.ErrAuthFailure, "")
	}

	return req.Username, nil
}

// NewScopeID returns a fresh client or tab identifier.
func NewScopeID() string {
	return uuid.NewString()
}

// IssueScopeToken signs a cookie value carrying id.
func (s *AuthService) IssueScopeToken(kind models.ScopeTokenKind, id string) (string, error) {
	ttl := s.config.TabTokenTTL
	if kind == models.ScopeTokenClient {
		ttl = s.config.ClientTokenTTL
	}
	issuedAt := time.Now().UTC()
	claims := &models.ScopeClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    scopeTokenIssuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign scope token")
	}
	return signed, nil
}

// ParseScopeToken validates a cookie value and returns its id.
func (s *AuthService) ParseScopeToken(kind models.ScopeTokenKind, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ScopeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	}, jwt.WithIssuer(scopeTokenIssuer))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid scope token")
	}

	claims, ok := token.Claims.(*models.ScopeClaims)
	if !ok || !token.Valid || claims.Kind != kind {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid scope token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid scope id")
	}
	return claims.Subject, nil
}

// ClientTokenTTL is the lifetime of the durable client cookie.
func (s *AuthService) ClientTokenTTL() time.Duration {
	return s.config.ClientTokenTTL
}
