package main

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

const defaultReceiverAddr = ":9090"

// A tiny receiver for security events, handy when running the service locally.
func main() {
	logger := util.NewZapLogger()

	addr := os.Getenv("WEBHOOK_RECEIVER_ADDR")
	if addr == "" {
		addr = defaultReceiverAddr
	}

	e := echo.New()
	e.HideBanner = true

	e.POST("/", func(c echo.Context) error {
		var event models.SecurityEvent
		if err := c.Bind(&event); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error parsing JSON")
		}

		logger.Infow("Received webhook",
			"kind", event.Kind,
			"subjectID", event.SubjectID,
			"claimedSubjectID", event.ClaimedID,
			"occurredAt", event.OccurredAt,
		)

		return c.String(http.StatusOK, "Webhook received!")
	})

	logger.Infof("Webhook receiver listening on %s", addr)
	if err := e.Start(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
