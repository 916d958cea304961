package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/storage"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{name: "none"},
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "bearer is case insensitive", header: "bearer abc", want: "abc"},
		{name: "other scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
		{name: "cookie", cookie: "from-cookie", want: "from-cookie"},
		{name: "cookie wins over header", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: models.MwCredentialCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractCredential(req))
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "wrapped storage outage",
			err:        fmt.Errorf("find session: %w", fmt.Errorf("get: %w: %w", storage.ErrStorageUnavailable, errors.New("dial tcp"))),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "storage_unavailable",
		},
		{name: "missing credential", err: service.ErrMissingCredential, wantStatus: http.StatusUnauthorized, wantCode: "missing_credential"},
		{name: "expired credential", err: service.ErrCredentialExpired, wantStatus: http.StatusUnauthorized, wantCode: "credential_expired"},
		{name: "refresh mismatch", err: service.ErrRefreshTokenMismatch, wantStatus: http.StatusUnauthorized, wantCode: "refresh_token_mismatch"},
		{name: "refresh expired", err: service.ErrRefreshTokenExpired, wantStatus: http.StatusUnauthorized, wantCode: "refresh_token_expired"},
		{name: "federated", err: service.ErrFederatedIdentity, wantStatus: http.StatusUnauthorized, wantCode: "federated_identity_rejected"},
		{
			name:       "response error",
			err:        util.NewResponseError(http.StatusTeapot, "teapot", "short and stout"),
			wantStatus: http.StatusTeapot,
			wantCode:   "teapot",
		},
		{name: "echo error", err: echo.NewHTTPError(http.StatusBadRequest, "bad"), wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestClassifyError_HidesInternals(t *testing.T) {
	_, resp := classifyError(fmt.Errorf("get: %w: %w", storage.ErrStorageUnavailable, errors.New("dial tcp 10.0.0.5:5432")))
	assert.NotContains(t, resp.Reason, "10.0.0.5")

	_, resp = classifyError(errors.New("pq: relation does not exist"))
	assert.Equal(t, "internal server error", resp.Reason)
}
