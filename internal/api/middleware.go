package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/service"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

// AuthMiddleware rejects the request unless it carries a session token that
// both verifies and still has a live session record. On success the principal
// is stored in the echo context and in the request context.
func AuthMiddleware(auth *service.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			credential := ExtractCredential(c.Request())
			if credential == "" {
				return service.ErrMissingCredential
			}

			user, err := auth.Authenticate(c.Request().Context(), credential)
			if err != nil {
				return err
			}

			c.Set(models.MwPrincipalKey, user)
			c.Set(models.MwTokenKey, credential)
			c.SetRequest(c.Request().WithContext(models.WithPrincipal(c.Request().Context(), user)))

			return next(c)
		}
	}
}

// ExtractCredential looks at the Authorization cookie first, then at the
// "Authorization: Bearer <token>" header.
func ExtractCredential(r *http.Request) string {
	if cookie, err := r.Cookie(models.MwCredentialCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get(models.MwCredentialCookie))
	prefix := models.MwBearerPrefix
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// APIKeyAuthMiddleware checks the X-API-Key header against the rotating admin key.
func APIKeyAuthMiddleware(apiKeys *service.APIKeyService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(models.MwAPIKeyHeader)
			if apiKey == "" {
				return util.NewResponseError(http.StatusUnauthorized, "missing_api_key", "API key is missing")
			}

			ok, err := apiKeys.IsValidAPIKey(c.Request().Context(), apiKey)
			if err != nil {
				return util.NewResponseError(http.StatusServiceUnavailable, "api_key_check_failed", "Error validating API key")
			}
			if !ok {
				return util.NewResponseError(http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			}

			return next(c)
		}
	}
}

// RateLimitMiddleware throttles credential endpoints per client IP.
func RateLimitMiddleware(cfg *util.RateLimiterConfig) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.Limit) / cfg.Interval.Seconds()),
		Burst:     cfg.Limit,
		ExpiresIn: cfg.BlockTime,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

func GetLoggerMiddlewareConfig(log *zap.SugaredLogger) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
				log.Warnw("Request", fields...)
			} else {
				log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
