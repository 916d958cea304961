package models

//nolint:gosec //file not handles sensitive data
const (
	MwAPIKeyHeader = "X-API-Key"

	// MwCredentialCookie is also the header name carrying "Bearer <token>".
	MwCredentialCookie = "Authorization"
	MwBearerPrefix     = "Bearer "

	MwPrincipalKey = "principal"
	MwTokenKey     = "token"
)

// SecurityEvent is posted to the configured webhook when something looks like tampering.
type SecurityEvent struct {
	Kind       string `json:"kind"`
	SubjectID  string `json:"subject_id"`
	ClaimedID  string `json:"claimed_subject_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
