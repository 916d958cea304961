package models

import "time"

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	ClientID   string `json:"client_id"`
	Credential string `json:"credential"`
	SelectBy   string `json:"select_by"`
}

type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse uses pointers so logout can answer with explicit nulls.
type TokenPairResponse struct {
	SessionToken     *string    `json:"session_token"`
	RefreshToken     *string    `json:"refresh_token"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

type LoginResponse struct {
	User *User `json:"user"`
	TokenPairResponse
}

type Envelope struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

func NewTokenPairResponse(s *Session) TokenPairResponse {
	return TokenPairResponse{
		SessionToken:     &s.SessionToken,
		RefreshToken:     &s.RefreshToken,
		SessionExpiresAt: &s.SessionExpiresAt,
		RefreshExpiresAt: &s.RefreshExpiresAt,
	}
}
