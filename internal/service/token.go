package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/gitagpt_auth/internal/util"
)

// TokenKind separates session tokens from refresh tokens so one can never be
// presented as the other.
type TokenKind string

const (
	TokenKindSession TokenKind = "session"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenService signs and verifies HS512 bearer tokens. It holds no mutable state.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now, used by tests that need to step over expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) { ts.now = now }
}

func NewTokenService(cfg *util.TokenConfig, opts ...TokenOption) *TokenService {
	secret := make([]byte, len(cfg.JwtSecretKey))
	copy(secret, cfg.JwtSecretKey)

	ts := &TokenService{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

type jwtClaims struct {
	UserID string    `json:"uid"`
	Kind   TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Issue creates a token for subjectID valid for ttl. The random jti makes
// every token unique even when issued within the same second.
func (ts *TokenService) Issue(kind TokenKind, subjectID string, ttl time.Duration) (string, time.Time, error) {
	now := ts.now()
	// NumericDate has second precision; keep the returned expiry identical to the encoded one.
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims := &jwtClaims{
		UserID: subjectID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signed string: %w", err)
	}

	return signedToken, expiresAt, nil
}

// Verify returns the subject encoded in token.
// ErrTokenExpired still comes with the subject so callers can keep checking
// the record it points to; ErrTokenInvalid never does.
func (ts *TokenService) Verify(kind TokenKind, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}

	claims := &jwtClaims{}
	parsedToken, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.secret, nil
		},
		opts...,
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		// signature was verified before claims validation
		if claims.UserID == "" || claims.Kind != kind {
			return "", ErrTokenInvalid
		}
		return claims.UserID, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return "", ErrTokenInvalid
	}
	if claims.UserID == "" || claims.Kind != kind || claims.Subject != claims.UserID {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
