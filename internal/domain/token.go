package domain

import "time"

// RefreshToken is the stored form of an issued refresh token.
// Only an HMAC digest of the raw token is persisted; the raw token lives
// exclusively on the client. Rotation deletes the row, so presence implies
// the token has not been consumed.
type RefreshToken struct {
	ID        string // JTI embedded in the token
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the token has passed its expiry.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
