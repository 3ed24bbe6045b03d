package models

import "time"

// RefreshToken is a stored session. Only the SHA-256 digest of the token is
// kept, never the token itself.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
