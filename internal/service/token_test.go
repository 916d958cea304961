package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/gitagpt_auth/internal/util"
)

func TestTokenService_IssueVerify(t *testing.T) {
	clock := newTestClock()
	ts := NewTokenService(testTokenConfig(), WithClock(clock.Now))

	token, expiresAt, err := ts.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(testSessionTTL), expiresAt)

	subject, err := ts.Verify(TokenKindSession, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	clock := newTestClock()
	ts := NewTokenService(testTokenConfig(), WithClock(clock.Now))

	first, _, err := ts.Issue(TokenKindRefresh, "user-1", testRefreshTTL)
	require.NoError(t, err)
	second, _, err := ts.Issue(TokenKindRefresh, "user-1", testRefreshTTL)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenService_WrongKind(t *testing.T) {
	ts := NewTokenService(testTokenConfig())

	token, _, err := ts.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)

	_, err = ts.Verify(TokenKindRefresh, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_Expired(t *testing.T) {
	clock := newTestClock()
	ts := NewTokenService(testTokenConfig(), WithClock(clock.Now))

	token, _, err := ts.Issue(TokenKindRefresh, "user-1", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	subject, err := ts.Verify(TokenKindRefresh, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, "user-1", subject, "expired tokens still report their subject")
}

func TestTokenService_ForeignSecret(t *testing.T) {
	other := NewTokenService(&util.TokenConfig{JwtSecretKey: []byte("another-secret")})
	ts := NewTokenService(testTokenConfig())

	token, _, err := other.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)

	subject, err := ts.Verify(TokenKindSession, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Empty(t, subject)
}

func TestTokenService_Tampered(t *testing.T) {
	ts := NewTokenService(testTokenConfig())

	token, _, err := ts.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, _, err := ts.Issue(TokenKindSession, "user-2", testSessionTTL)
	require.NoError(t, err)
	// payload of user-2 with the signature of user-1
	tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	_, err = ts.Verify(TokenKindSession, tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ts.Verify(TokenKindSession, "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	ts := NewTokenService(testTokenConfig())

	claims := jwtClaims{
		UserID: "user-1",
		Kind:   TokenKindSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ts.Verify(TokenKindSession, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_SecretIsCopied(t *testing.T) {
	cfg := testTokenConfig()
	ts := NewTokenService(cfg)

	token, _, err := ts.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)

	cfg.JwtSecretKey[0] ^= 0xff

	_, err = ts.Verify(TokenKindSession, token)
	assert.NoError(t, err)
}
