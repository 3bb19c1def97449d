package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ChallengeRequest starts a wallet sign-in.
type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// ChallengeResponse carries the message the wallet must sign.
type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest completes a wallet sign-in. Message is the challenge text with the
// client's "Timestamp:" line appended.
type VerifyRequest struct {
	WalletAddress string             `json:"wallet_address" binding:"required"`
	Signature     string             `json:"signature" binding:"required"`
	Message       string             `json:"message" binding:"required"`
	ReferralCode  string             `json:"referral_code"`
	Email         string             `json:"email"`
	Device        *domain.DeviceInfo `json:"device"`
}

// IdentitySummary is the public view of an identity.
type IdentitySummary struct {
	ID              string     `json:"id"`
	WalletAddress   string     `json:"wallet_address"`
	ReferralCode    string     `json:"referral_code"`
	ReferredBy      *string    `json:"referred_by,omitempty"`
	Level           int        `json:"level"`
	TotalPoints     int64      `json:"total_points"`
	AvailablePoints int64      `json:"available_points"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// RiskSummary is the advisory risk assessment of a request.
type RiskSummary struct {
	DeviceScore   int      `json:"device_score"`
	EmailScore    *int     `json:"email_score,omitempty"`
	BehaviorScore int      `json:"behavior_score"`
	TrustScore    int      `json:"trust_score"`
	Reasons       []string `json:"reasons,omitempty"`
}

// VerifyResponse is returned after a successful sign-in.
type VerifyResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Created     bool            `json:"created"`
	Identity    IdentitySummary `json:"identity"`
	Risk        RiskSummary     `json:"risk"`
}

// SessionResponse describes the current wallet session.
type SessionResponse struct {
	IdentityID    string    `json:"identity_id"`
	WalletAddress string    `json:"wallet_address"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReferralStatsResponse summarises the caller's downline.
type ReferralStatsResponse struct {
	Level1Count int   `json:"level1_count"`
	Level2Count int   `json:"level2_count"`
	Level3Count int   `json:"level3_count"`
	TotalEarned int64 `json:"total_earned"`
}

// BalanceResponse is the folded ledger balance.
type BalanceResponse struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}

// SpendRequest debits available points.
type SpendRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reference string `json:"reference" binding:"required,max=128"`
}

// LedgerEntryResponse is a single ledger entry.
type LedgerEntryResponse struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Kind      domain.LedgerKind `json:"kind"`
	Reference string            `json:"reference"`
	SourceID  *string           `json:"source_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RewardClaimResponse is the outcome of a reward claim.
type RewardClaimResponse struct {
	Action    domain.RewardAction `json:"action"`
	Amount    int64               `json:"amount"`
	ClaimedAt time.Time           `json:"claimed_at"`
	NextAt    time.Time           `json:"next_at"`
}

// SocialVerifyRequest asks for a social account to be linked to the caller.
type SocialVerifyRequest struct {
	Platform   string             `json:"platform" binding:"required"`
	Username   string             `json:"username" binding:"required"`
	ProofToken string             `json:"proof_token" binding:"required"`
	Email      string             `json:"email"`
	Device     *domain.DeviceInfo `json:"device"`
}

// VerificationResponse is the uniform social verification outcome.
type VerificationResponse struct {
	Platform   domain.SocialPlatform `json:"platform"`
	Username   string                `json:"username"`
	Verified   bool                  `json:"verified"`
	Accepted   bool                  `json:"accepted"`
	TrustScore int                   `json:"trust_score"`
	Reason     string                `json:"reason,omitempty"`
	Reward     int64                 `json:"reward"`
	VerifiedAt time.Time             `json:"verified_at"`
}

// SocialLinkResponse is one linked social account.
type SocialLinkResponse struct {
	Platform domain.SocialPlatform `json:"platform"`
	Username string                `json:"username"`
	LinkedAt time.Time             `json:"linked_at"`
}

// ReserveReportResponse compares the on-chain reserve with committed payouts.
type ReserveReportResponse struct {
	ObservedOnChainBalance     decimal.Decimal `json:"observed_on_chain_balance"`
	CommittedOffChainLiability decimal.Decimal `json:"committed_off_chain_liability"`
	Headroom                   decimal.Decimal `json:"headroom"`
	Timestamp                  time.Time       `json:"timestamp"`
}

// PayoutRequest authorizes a payout against the reserve.
type PayoutRequest struct {
	IdentityID string          `json:"identity_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

// PayoutResponse is an authorized reserve commitment.
type PayoutResponse struct {
	ID           string              `json:"id"`
	IdentityID   string              `json:"identity_id"`
	Amount       decimal.Decimal     `json:"amount"`
	Status       domain.PayoutStatus `json:"status"`
	AuthorizedAt time.Time           `json:"authorized_at"`
}

// RecordTransactionRequest starts tracking a submitted transaction.
type RecordTransactionRequest struct {
	Hash       string          `json:"hash" binding:"required"`
	IdentityID string          `json:"identity_id" binding:"required"`
	Kind       domain.TxKind   `json:"kind" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	PayoutID   *string         `json:"payout_id"`
}

// ConfirmTransactionRequest names the block the transaction was mined in.
type ConfirmTransactionRequest struct {
	BlockNumber uint64 `json:"block_number" binding:"required"`
}

// FailTransactionRequest records why a transaction failed.
type FailTransactionRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

// TransactionResponse is a tracked on-chain transaction.
type TransactionResponse struct {
	Hash        string          `json:"hash"`
	IdentityID  string          `json:"identity_id"`
	Kind        domain.TxKind   `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	PayoutID    *string         `json:"payout_id,omitempty"`
	Status      domain.TxStatus `json:"status"`
	BlockNumber *uint64         `json:"block_number,omitempty"`
	FailReason  *string         `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReconciliationResponse compares ledger mints with confirmed on-chain mints.
type ReconciliationResponse struct {
	IdentityID    string          `json:"identity_id"`
	LedgerMinted  decimal.Decimal `json:"ledger_minted"`
	OnChainMinted decimal.Decimal `json:"on_chain_minted"`
	PendingCount  int             `json:"pending_count"`
	Consistent    bool            `json:"consistent"`
	CheckedAt     time.Time       `json:"checked_at"`
}

func toIdentitySummary(identity domain.Identity) IdentitySummary {
	return IdentitySummary{
		ID:              identity.ID,
		WalletAddress:   identity.WalletAddress,
		ReferralCode:    identity.ReferralCode,
		ReferredBy:      identity.ReferredBy,
		Level:           identity.Level,
		TotalPoints:     identity.TotalPoints,
		AvailablePoints: identity.AvailablePoints,
		CreatedAt:       identity.CreatedAt,
		LastLoginAt:     identity.LastLoginAt,
	}
}

func toRiskSummary(a domain.RiskAssessment) RiskSummary {
	return RiskSummary{
		DeviceScore:   a.DeviceScore,
		EmailScore:    a.EmailScore,
		BehaviorScore: a.BehaviorScore,
		TrustScore:    a.TrustScore,
		Reasons:       a.Reasons,
	}
}

func toVerifyResponse(result *usecase.AuthResult) VerifyResponse {
	return VerifyResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.Session.ExpiresAt,
		Created:     result.Created,
		Identity:    toIdentitySummary(result.Identity),
		Risk:        toRiskSummary(result.Risk),
	}
}

func toPayoutResponse(p domain.Payout) PayoutResponse {
	return PayoutResponse{
		ID:           p.ID,
		IdentityID:   p.IdentityID,
		Amount:       p.Amount,
		Status:       p.Status,
		AuthorizedAt: p.AuthorizedAt,
	}
}

func toTransactionResponse(tx domain.ChainTransaction) TransactionResponse {
	return TransactionResponse{
		Hash:        tx.Hash,
		IdentityID:  tx.IdentityID,
		Kind:        tx.Kind,
		Amount:      tx.Amount,
		PayoutID:    tx.PayoutID,
		Status:      tx.Status,
		BlockNumber: tx.BlockNumber,
		FailReason:  tx.FailReason,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

// LedgerAuditResponse compares folded ledger entries with stored counters.
type LedgerAuditResponse struct {
	FoldedTotal     int64 `json:"folded_total"`
	FoldedAvailable int64 `json:"folded_available"`
	StoredTotal     int64 `json:"stored_total"`
	StoredAvailable int64 `json:"stored_available"`
	Consistent      bool  `json:"consistent"`
}
