package domain

import "time"

// RewardAction names a claimable daily action.
type RewardAction string

const (
	RewardDailyRitual RewardAction = "daily_ritual"
	RewardSpin        RewardAction = "spin"
	RewardSocial      RewardAction = "social_verification"
)

// RewardClaim is the result of a successful claim.
type RewardClaim struct {
	Action     RewardAction
	IdentityID string
	Amount     int64
	ClaimedAt  time.Time
	NextAt     time.Time
}

// SpinOutcome is one weighted slot of the spin table.
type SpinOutcome struct {
	Amount int64
	Weight int
}
