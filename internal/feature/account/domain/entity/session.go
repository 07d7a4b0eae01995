package entity

import "time"

// Session ties one client's session id to a user until ExpiresAt.
// The lifetime matches the JWT issued at login.
type Session struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired reports whether the session has passed its expiration time at now.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
