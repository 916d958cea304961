package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

type Controller struct {
	zapLogger     *zap.SugaredLogger
	authService   *service.AuthService
	secureCookies bool
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService, secureCookies bool) *Controller {
	return &Controller{
		zapLogger:     logger,
		authService:   authService,
		secureCookies: secureCookies,
	}
}

// (GET /ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /auth/signup).
func (c *Controller) Signup(ctx echo.Context) error {
	var req models.SignupRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest()
	}

	user, err := c.authService.Signup(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, models.Envelope{Data: user, Message: "signup"})
}

// (POST /auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest()
	}

	user, session, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.loggedIn(ctx, user, session)
}

// (POST /auth/google_login).
func (c *Controller) GoogleLogin(ctx echo.Context) error {
	var req models.GoogleLoginRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest()
	}

	user, session, err := c.authService.GoogleLogin(ctx.Request().Context(), req.Credential)
	if err != nil {
		return err
	}

	return c.loggedIn(ctx, user, session)
}

// (POST /auth/refresh_token).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req models.TokenRefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest()
	}

	session, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	c.setSessionCookie(ctx, session.SessionToken)
	return ctx.JSON(http.StatusOK, models.Envelope{Data: models.NewTokenPairResponse(session), Message: "refresh"})
}

// (POST /auth/logout). Requires an authenticated principal.
func (c *Controller) Logout(ctx echo.Context) error {
	user, err := principal(ctx)
	if err != nil {
		return err
	}

	if err := c.authService.Logout(ctx.Request().Context(), user); err != nil {
		return err
	}

	c.clearSessionCookie(ctx)
	return ctx.JSON(http.StatusOK, models.Envelope{Data: models.TokenPairResponse{}, Message: "logout"})
}

// (GET /auth/me).
func (c *Controller) Me(ctx echo.Context) error {
	user, err := principal(ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.Envelope{Data: user, Message: "user_info"})
}

// (DELETE /admin/sessions/:subject_id).
func (c *Controller) RevokeSubjectSessions(ctx echo.Context) error {
	subjectID := ctx.Param("subject_id")
	if subjectID == "" {
		return badRequest()
	}

	if err := c.authService.RevokeSubject(ctx.Request().Context(), subjectID); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.Envelope{Data: nil, Message: "sessions_revoked"})
}

func (c *Controller) loggedIn(ctx echo.Context, user *models.User, session *models.Session) error {
	c.setSessionCookie(ctx, session.SessionToken)
	return ctx.JSON(http.StatusOK, models.Envelope{
		Data: models.LoginResponse{
			User:              user,
			TokenPairResponse: models.NewTokenPairResponse(session),
		},
		Message: "login",
	})
}

func (c *Controller) setSessionCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.MwCredentialCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.authService.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Controller) clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.MwCredentialCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func principal(ctx echo.Context) (*models.User, error) {
	if user, ok := ctx.Get(models.MwPrincipalKey).(*models.User); ok && user != nil {
		return user, nil
	}
	if user, ok := models.PrincipalFromContext(ctx.Request().Context()); ok {
		return user, nil
	}
	return nil, service.ErrMissingCredential
}

func badRequest() error {
	return util.NewResponseError(http.StatusBadRequest, "bad_request", "invalid request body")
}
