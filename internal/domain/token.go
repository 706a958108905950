package domain

import "time"

type TokenState string

const (
	TokenStateUnused TokenState = "unused"
	TokenStateUsed   TokenState = "used"
)

// AccessTokenLifetime is how long a freshly issued token authorizes signing.
const AccessTokenLifetime = 7 * 24 * time.Hour

// AccessToken is the single-use credential that lets an otherwise-anonymous
// recipient open and sign one specific deal. A used token stays retrievable
// so the holder can re-view the sealed result, but never authorizes a
// second confirmation.
type AccessToken struct {
	DealID    string
	Token     string
	State     TokenState
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

func (t AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
