package domain

import "time"

// DefaultReplayWindow bounds how old a signed challenge may be.
const DefaultReplayWindow = 5 * time.Minute

// AuthChallenge is a single-use login challenge issued to a wallet.
type AuthChallenge struct {
	Nonce         string
	WalletAddress string
	Message       string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the challenge can no longer be completed.
func (c AuthChallenge) Expired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// Session is the authenticated identity carried by a single request.
// It is an immutable value; sign-out is recorded out of band.
type Session struct {
	TokenID       string
	IdentityID    string
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// IsActive reports whether the session is still inside its lifetime.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// Remaining returns how long the session stays valid after at.
func (s Session) Remaining(at time.Time) time.Duration {
	d := s.ExpiresAt.Sub(at)
	if d < 0 {
		return 0
	}
	return d
}
