package service

import (
	"context"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/rryowa/gitagpt_auth/internal/util"
)

// GoogleVerifier checks Google Sign-In credentials (ID tokens) against the
// issuer's published keys. Discovery happens once, at construction.
type GoogleVerifier struct {
	verifier *rp.IDTokenVerifier
}

func NewGoogleVerifier(ctx context.Context, cfg *util.GoogleConfig) (*GoogleVerifier, error) {
	relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
		cfg.Issuer,
		cfg.ClientID,
		cfg.ClientSecret,
		"",
		[]string{oidc.ScopeOpenID, oidc.ScopeEmail, oidc.ScopeProfile},
	)
	if err != nil {
		return nil, fmt.Errorf("create relying party: %w", err)
	}

	return &GoogleVerifier{verifier: relyingParty.IDTokenVerifier()}, nil
}

// VerifyIDToken validates signature, issuer, audience and expiry of credential.
func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, credential string) (*FederatedIdentity, error) {
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, credential, g.verifier)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	return &FederatedIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}
