package domain

import (
	"strings"
	"time"
)

// SocialPlatform enumerates the supported identity providers.
type SocialPlatform string

const (
	PlatformTwitter  SocialPlatform = "twitter"
	PlatformTelegram SocialPlatform = "telegram"
	PlatformDiscord  SocialPlatform = "discord"
)

// ParseSocialPlatform normalises a platform name.
func ParseSocialPlatform(value string) (SocialPlatform, bool) {
	switch SocialPlatform(strings.ToLower(strings.TrimSpace(value))) {
	case PlatformTwitter:
		return PlatformTwitter, true
	case PlatformTelegram:
		return PlatformTelegram, true
	case PlatformDiscord:
		return PlatformDiscord, true
	}
	return "", false
}

// SocialClaim is a request to prove ownership of a social account.
type SocialClaim struct {
	Platform   SocialPlatform
	Username   string
	ProofToken string
}

// CanonicalUsername strips the handle prefix and lower-cases the username.
func (c SocialClaim) CanonicalUsername() string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Username), "@"))
}

// VerificationResult is the uniform outcome across platforms.
type VerificationResult struct {
	Platform   SocialPlatform
	Username   string
	Verified   bool
	Accepted   bool
	TrustScore int
	Reason     string
	Reward     int64
	VerifiedAt time.Time
}

// SocialLink binds a social account to the identity that verified it first.
type SocialLink struct {
	IdentityID string
	Platform   SocialPlatform
	Username   string
	LinkedAt   time.Time
}
