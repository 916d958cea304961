package service

import (
	"context"
	"time"

	"github.com/rryowa/gitagpt_auth/internal/models"
)

type TokenCodec interface {
	Issue(kind TokenKind, subjectID string, ttl time.Duration) (string, time.Time, error)
	Verify(kind TokenKind, token string) (string, error)
}

type SecurityNotifier interface {
	NotifySecurityEvent(ctx context.Context, event models.SecurityEvent)
}

// FederatedIdentity is what an external identity provider vouched for.
type FederatedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, credential string) (*FederatedIdentity, error)
}
