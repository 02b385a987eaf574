package models

import "github.com/golang-jwt/jwt/v5"

// LoginRequest holds the credentials submitted by the login form.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=120"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ScopeTokenKind distinguishes the durable client cookie from the tab cookie.
type ScopeTokenKind string

const (
	ScopeTokenClient ScopeTokenKind = "client"
	ScopeTokenTab    ScopeTokenKind = "tab"
)

// ScopeClaims are carried by the client and tab cookies.
type ScopeClaims struct {
	Kind ScopeTokenKind `json:"kind"`
	jwt.RegisteredClaims
}
