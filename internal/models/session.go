package models

import "time"

// Session binds a subject to its single active (session token, refresh token) pair.
type Session struct {
	ID               string    `json:"id" bson:"_id"`
	SubjectID        string    `json:"subject_id" bson:"subject_id"`
	SessionToken     string    `json:"session_token" bson:"session_token"`
	RefreshToken     string    `json:"refresh_token" bson:"refresh_token"`
	SessionExpiresAt time.Time `json:"session_expires_at" bson:"session_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at" bson:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// SessionValidAt reports whether the session token may still authenticate at now.
func (s *Session) SessionValidAt(now time.Time) bool {
	return now.Before(s.SessionExpiresAt)
}

// RefreshValidAt reports whether the refresh token may still be exchanged at now.
func (s *Session) RefreshValidAt(now time.Time) bool {
	return now.Before(s.RefreshExpiresAt)
}
