package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/transport/http/middleware"
	"github.com/arklim/kether-core/internal/usecase"
)

// Ledger reads and debits an identity's points.
type Ledger interface {
	Balance(ctx context.Context, identityID string) (domain.LedgerBalance, error)
	Entries(ctx context.Context, identityID string) ([]domain.LedgerEntry, error)
	Spend(ctx context.Context, identityID string, amount int64, reference string) (*domain.LedgerEntry, error)
}

// ReferralStats reports an identity's downline.
type ReferralStats interface {
	GetStats(ctx context.Context, identityID string) (*domain.ReferralStats, error)
}

// RewardClaimer pays once-per-period rewards.
type RewardClaimer interface {
	Claim(ctx context.Context, identityID string, action domain.RewardAction) (*domain.RewardClaim, error)
}

// SocialVerifier links social accounts.
type SocialVerifier interface {
	Verify(ctx context.Context, identityID string, claim domain.SocialClaim, riskInput usecase.RiskInput) (*domain.VerificationResult, error)
	ListLinks(ctx context.Context, identityID string) ([]domain.SocialLink, error)
}

// AccountHandler serves the signed-in identity's ledger, referrals, rewards and social links.
type AccountHandler struct {
	ledger    Ledger
	referrals ReferralStats
	rewards   RewardClaimer
	social    SocialVerifier
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(ledger Ledger, referrals ReferralStats, rewards RewardClaimer, social SocialVerifier) *AccountHandler {
	return &AccountHandler{ledger: ledger, referrals: referrals, rewards: rewards, social: social}
}

// RegisterRoutes binds the account routes. The group must carry RequireSession.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ledger/balance", h.balance)
	r.GET("/ledger/entries", h.entries)
	r.POST("/ledger/spend", h.spend)
	r.GET("/referrals/stats", h.referralStats)
	r.GET("/social/links", h.socialLinks)
}

// RegisterRewardRoutes binds reward claims; limits differ from the other account routes.
func (h *AccountHandler) RegisterRewardRoutes(r *gin.RouterGroup) {
	r.POST("/rewards/:action/claim", h.claimReward)
}

// RegisterSocialRoutes binds social verification.
func (h *AccountHandler) RegisterSocialRoutes(r *gin.RouterGroup) {
	r.POST("/social/verify", h.verifySocial)
}

func identityID(c *gin.Context) (string, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return "", false
	}
	return session.IdentityID, true
}

// Balance godoc
// @Summary Ledger balance
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/ledger/balance [get]
func (h *AccountHandler) balance(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), id)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{Total: balance.Total, Available: balance.Available})
}

// Entries godoc
// @Summary Ledger entries
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {array} LedgerEntryResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/ledger/entries [get]
func (h *AccountHandler) entries(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	entries, err := h.ledger.Entries(c.Request.Context(), id)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	resp := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, LedgerEntryResponse{
			ID:        e.ID,
			Amount:    e.Amount,
			Kind:      e.Kind,
			Reference: e.Reference,
			SourceID:  e.SourceID,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Spend godoc
// @Summary Spend points
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SpendRequest true "Amount and reference"
// @Success 200 {object} LedgerEntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/ledger/spend [post]
func (h *AccountHandler) spend(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "amount must be positive and reference is required")
		return
	}

	entry, err := h.ledger.Spend(c.Request.Context(), id, req.Amount, strings.TrimSpace(req.Reference))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, LedgerEntryResponse{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Kind:      entry.Kind,
		Reference: entry.Reference,
		CreatedAt: entry.CreatedAt,
	})
}

// ReferralStats godoc
// @Summary Referral statistics
// @Description Downline counts per level and total referral bonus earned.
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReferralStatsResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/referrals/stats [get]
func (h *AccountHandler) referralStats(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	stats, err := h.referrals.GetStats(c.Request.Context(), id)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReferralStatsResponse{
		Level1Count: stats.Level1Count,
		Level2Count: stats.Level2Count,
		Level3Count: stats.Level3Count,
		TotalEarned: stats.TotalEarned,
	})
}

// ClaimReward godoc
// @Summary Claim a periodic reward
// @Description Claims daily_ritual or spin once per period.
// @Tags Rewards
// @Produce json
// @Security BearerAuth
// @Param action path string true "daily_ritual or spin"
// @Success 200 {object} RewardClaimResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/rewards/{action}/claim [post]
func (h *AccountHandler) claimReward(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	action := domain.RewardAction(strings.ToLower(c.Param("action")))
	claim, err := h.rewards.Claim(c.Request.Context(), id, action)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, RewardClaimResponse{
		Action:    claim.Action,
		Amount:    claim.Amount,
		ClaimedAt: claim.ClaimedAt,
		NextAt:    claim.NextAt,
	})
}

// VerifySocial godoc
// @Summary Verify social account ownership
// @Description Links a twitter, telegram or discord account after the platform confirms ownership and the trust score passes.
// @Tags Social
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SocialVerifyRequest true "Claim"
// @Success 200 {object} VerificationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/social/verify [post]
func (h *AccountHandler) verifySocial(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	var req SocialVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform, username and proof_token are required")
		return
	}

	result, err := h.social.Verify(c.Request.Context(), id, domain.SocialClaim{
		Platform:   domain.SocialPlatform(req.Platform),
		Username:   req.Username,
		ProofToken: req.ProofToken,
	}, usecase.RiskInput{
		Device:    req.Device,
		Email:     strings.TrimSpace(req.Email),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, VerificationResponse{
		Platform:   result.Platform,
		Username:   result.Username,
		Verified:   result.Verified,
		Accepted:   result.Accepted,
		TrustScore: result.TrustScore,
		Reason:     result.Reason,
		Reward:     result.Reward,
		VerifiedAt: result.VerifiedAt,
	})
}

// SocialLinks godoc
// @Summary Linked social accounts
// @Tags Social
// @Produce json
// @Security BearerAuth
// @Success 200 {array} SocialLinkResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/social/links [get]
func (h *AccountHandler) socialLinks(c *gin.Context) {
	id, ok := identityID(c)
	if !ok {
		return
	}

	links, err := h.social.ListLinks(c.Request.Context(), id)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	resp := make([]SocialLinkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, SocialLinkResponse{Platform: l.Platform, Username: l.Username, LinkedAt: l.LinkedAt})
	}
	c.JSON(http.StatusOK, resp)
}
