package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/kether-core/internal/transport/http/middleware"
	"github.com/arklim/kether-core/internal/usecase"
)

// WalletAuth runs the challenge-response sign-in.
type WalletAuth interface {
	BeginChallenge(ctx context.Context, wallet string) (*usecase.Challenge, error)
	CompleteChallenge(ctx context.Context, wallet, signature, message string, opts usecase.CompleteOptions) (*usecase.AuthResult, error)
}

// SessionClearer signs a token out.
type SessionClearer interface {
	Clear(ctx context.Context, token string) error
}

// AuthHandler exposes wallet sign-in endpoints.
type AuthHandler struct {
	auth     WalletAuth
	sessions SessionClearer
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth WalletAuth, sessions SessionClearer) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

// RegisterRoutes binds the public sign-in routes. signInMiddlewares run ahead of both steps.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, signInMiddlewares ...gin.HandlerFunc) {
	r.POST("/challenge", append(append([]gin.HandlerFunc{}, signInMiddlewares...), h.challenge)...)
	r.POST("/verify", append(append([]gin.HandlerFunc{}, signInMiddlewares...), h.verify)...)
}

// RegisterSessionRoutes binds routes that require a restored session.
func (h *AuthHandler) RegisterSessionRoutes(r *gin.RouterGroup) {
	r.GET("/session", h.session)
	r.POST("/logout", h.logout)
}

// Challenge godoc
// @Summary Request a sign-in challenge
// @Description Issues a single-use nonce and the message the wallet must sign.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ChallengeRequest true "Wallet address"
// @Success 200 {object} ChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/challenge [post]
func (h *AuthHandler) challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "wallet_address is required")
		return
	}

	challenge, err := h.auth.BeginChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Nonce:     challenge.Nonce,
		Message:   challenge.Message,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// Verify godoc
// @Summary Complete a wallet sign-in
// @Description Verifies the EIP-191 signature over the challenge, creates the identity on first sign-in and issues a session token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Signed challenge"
// @Success 200 {object} VerifyResponse
// @Success 201 {object} VerifyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/verify [post]
func (h *AuthHandler) verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "wallet_address, signature and message are required")
		return
	}

	result, err := h.auth.CompleteChallenge(c.Request.Context(), req.WalletAddress, req.Signature, req.Message, usecase.CompleteOptions{
		ReferralCode: strings.TrimSpace(req.ReferralCode),
		Device:       req.Device,
		Email:        strings.TrimSpace(req.Email),
		IPAddress:    c.ClientIP(),
	})
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, toVerifyResponse(result))
}

// Session godoc
// @Summary Current session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) session(c *gin.Context) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		IdentityID:    session.IdentityID,
		WalletAddress: session.WalletAddress,
		IssuedAt:      session.IssuedAt,
		ExpiresAt:     session.ExpiresAt,
	})
}

// Logout godoc
// @Summary Sign out
// @Description Revokes the bearer token until it would have expired.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing bearer token"))
		return
	}

	if err := h.sessions.Clear(c.Request.Context(), token); err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "signed out"})
}
