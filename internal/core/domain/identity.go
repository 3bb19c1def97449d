package domain

import "time"

// Identity is the account bound to exactly one wallet address.
type Identity struct {
	ID              string
	WalletAddress   string
	ReferralCode    string
	ReferredBy      *string
	Level           int
	TotalPoints     int64
	AvailablePoints int64
	CreatedAt       time.Time
	LastLoginAt     *time.Time
}

// levelThresholds lists the total-points floor for each level, starting at level 1.
var levelThresholds = []int64{0, 100, 300, 700, 1500, 3000, 6000, 12000, 25000, 50000}

// MaxLevel is the highest level an identity can reach.
const MaxLevel = 10

// LevelForPoints maps lifetime points onto a level in [1, MaxLevel].
func LevelForPoints(total int64) int {
	level := 1
	for i, floor := range levelThresholds {
		if total >= floor {
			level = i + 1
		}
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}
