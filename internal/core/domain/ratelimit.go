package domain

import "time"

// ActionClass groups operations sharing a rate limit policy.
type ActionClass string

const (
	ActionGeneral            ActionClass = "general"
	ActionAuth               ActionClass = "auth"
	ActionSocialVerification ActionClass = "social_verification"
	ActionReward             ActionClass = "reward"
	ActionAdmin              ActionClass = "admin"
)

// RateLimitPolicy is the fixed-window budget for an action class.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitDecision is the outcome of a single rate limit check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}
