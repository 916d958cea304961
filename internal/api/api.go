package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/controller"
	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

type API struct {
	server          *echo.Echo
	controller      *controller.Controller
	authenticator   *service.Authenticator
	apiKeys         *service.APIKeyService
	rateLimit       *util.RateLimiterConfig
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
	cleanupFuncs    []func()
}

// NewAPI accepts a nil apiKeys; the admin routes are then not mounted.
func NewAPI(
	c *controller.Controller,
	authenticator *service.Authenticator,
	apiKeys *service.APIKeyService,
	sc *util.ServerConfig,
	rl *util.RateLimiterConfig,
	l *zap.SugaredLogger,
	cleanupFuncs []func(),
) *API {
	e := echo.New()
	e.HideBanner = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	return &API{
		server:          e,
		controller:      c,
		authenticator:   authenticator,
		apiKeys:         apiKeys,
		rateLimit:       rl,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
		cleanupFuncs:    cleanupFuncs,
	}
}

// Handler exposes the routed echo instance, mostly for tests.
func (a *API) Handler() http.Handler {
	return a.server
}

// SetupRoutes mounts middleware and every route on the server.
func (a *API) SetupRoutes() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.Recover())
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a.log)))

	a.server.GET("/ping", a.controller.CheckServer)

	limited := RateLimitMiddleware(a.rateLimit)
	requireSession := AuthMiddleware(a.authenticator)

	auth := a.server.Group("/auth", middleware.OapiRequestValidator(swagger))
	auth.POST("/signup", a.controller.Signup, limited)
	auth.POST("/login", a.controller.Login, limited)
	auth.POST("/google_login", a.controller.GoogleLogin, limited)
	auth.POST("/refresh_token", a.controller.RefreshToken, limited)
	auth.POST("/logout", a.controller.Logout, requireSession)
	auth.GET("/me", a.controller.Me, requireSession)

	if a.apiKeys == nil {
		a.log.Warn("Admin API key store is not configured; admin routes disabled")
		return nil
	}
	admin := a.server.Group("/admin", APIKeyAuthMiddleware(a.apiKeys))
	admin.DELETE("/sessions/:subject_id", a.controller.RevokeSubjectSessions)

	return nil
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		for _, cleanup := range a.cleanupFuncs {
			cleanup()
		}
	}()

	if err := a.SetupRoutes(); err != nil {
		a.log.Errorf("setup routes: %v", err)
		return
	}

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	serverErr := make(chan error, 1)
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		a.log.Errorf("HTTP server ListenAndServe: %v", err)
		return
	}
	a.log.Info("Shutting down server...")

	timeout := shutdownTimeout
	if a.gracefulTimeout > 0 {
		timeout = a.gracefulTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("shutdown: %v", err)
		return
	}
	a.log.Info("server shutdown completed")
}
