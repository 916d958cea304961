package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/storage"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

type ErrorResponse struct {
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// storage unavailability is checked first so that a wrapped outage never
// reads as an authentication failure
var errorMappings = []errorMapping{
	{storage.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},

	{service.ErrMissingCredential, http.StatusUnauthorized, "missing_credential"},
	{service.ErrInvalidCredential, http.StatusUnauthorized, "invalid_credential"},
	{service.ErrCredentialExpired, http.StatusUnauthorized, "credential_expired"},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token"},
	{service.ErrRefreshTokenNotFound, http.StatusUnauthorized, "refresh_token_not_found"},
	{service.ErrRefreshTokenMismatch, http.StatusUnauthorized, "refresh_token_mismatch"},
	{service.ErrRefreshTokenExpired, http.StatusUnauthorized, "refresh_token_expired"},
	{service.ErrInvalidLogin, http.StatusUnauthorized, "invalid_login"},
	{service.ErrFederatedIdentity, http.StatusUnauthorized, "federated_identity_rejected"},

	{service.ErrInvalidSignup, http.StatusBadRequest, "invalid_signup"},
	{service.ErrUserExists, http.StatusConflict, "user_exists"},
	{storage.ErrSessionConflict, http.StatusConflict, "session_conflict"},
	{service.ErrFederatedLoginDisabled, http.StatusNotImplemented, "federated_login_disabled"},
}

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, resp := classifyError(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI, "status", status)
		}

		if err := c.JSON(status, resp); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func classifyError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, ErrorResponse{Reason: m.err.Error(), Code: m.code}
		}
	}

	var respErr util.MyResponseError
	if errors.As(err, &respErr) {
		return respErr.Status, ErrorResponse{Reason: respErr.Msg, Code: respErr.Code}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorResponse{Reason: fmt.Sprint(he.Message), Code: codeForStatus(he.Code)}
	}

	return http.StatusInternalServerError, ErrorResponse{Reason: "internal server error", Code: "internal_error"}
}

func codeForStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
