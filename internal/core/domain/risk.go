package domain

import "time"

// DeviceInfo is the client-reported device fingerprint payload.
type DeviceInfo struct {
	Fingerprint         string   `json:"fingerprint"`
	HardwareConcurrency int      `json:"hardware_concurrency"`
	DeviceMemory        float64  `json:"device_memory"`
	WebGL               bool     `json:"webgl"`
	CookiesEnabled      bool     `json:"cookies_enabled"`
	Languages           []string `json:"languages"`
	Platform            string   `json:"platform"`
	Automation          bool     `json:"automation"`
}

// RiskSignal is an append-only observation of an identity's device and network context.
type RiskSignal struct {
	ID                string
	IdentityID        string
	Action            string
	DeviceFingerprint string
	DeviceScore       int
	EmailScore        *int
	IPAddress         string
	ObservedAt        time.Time
}

// RiskAssessment is the advisory outcome of scoring one action.
type RiskAssessment struct {
	DeviceScore   int
	EmailScore    *int
	BehaviorScore int
	TrustScore    int
	Reasons       []string
}

// ClampScore bounds a score to [0, 100].
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
