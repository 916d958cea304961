package service

import "errors"

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// Authentication failures. Every one of them is rendered as 401.
var (
	ErrMissingCredential = errors.New("authentication token missing")
	ErrInvalidCredential = errors.New("wrong authentication token")
	ErrCredentialExpired = errors.New("authentication token expired")

	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match session")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	ErrInvalidLogin      = errors.New("invalid email or password")
	ErrFederatedIdentity = errors.New("federated identity rejected")
)

var (
	ErrUserExists             = errors.New("user already exists")
	ErrInvalidSignup          = errors.New("email and password (at most 72 bytes) are required")
	ErrFederatedLoginDisabled = errors.New("federated login is not configured")
)
