package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the signed-in user's bearer credential.
type Session struct {
	Token string

	// ExpiresAt is read from the token's exp claim; zero when the token is
	// opaque or carries no expiry.
	ExpiresAt time.Time
}

// NewSession inspects token without verifying it. The backend remains the
// authority; the expiry is only used to end the session locally.
func NewSession(token string) Session {
	s := Session{Token: token}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return s
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

// Expired reports whether the session has a known expiry at or before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Remaining returns the time left before expiry, or false when the expiry
// is unknown.
func (s Session) Remaining(now time.Time) (time.Duration, bool) {
	if s.ExpiresAt.IsZero() {
		return 0, false
	}
	return max(s.ExpiresAt.Sub(now), 0), true
}
