package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reserve authorizes payouts against the on-chain reserve.
type Reserve interface {
	GetReserveReport(ctx context.Context) (*domain.ReserveSnapshot, error)
	AuthorizePayout(ctx context.Context, identityID string, amount decimal.Decimal) (*domain.Payout, error)
	ListPayouts(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error)
}

// Transactions tracks on-chain transactions and reconciles identities.
type Transactions interface {
	RecordPending(ctx context.Context, tx domain.ChainTransaction) (*domain.ChainTransaction, error)
	Confirm(ctx context.Context, hash string, blockNumber uint64) (*domain.ChainTransaction, error)
	Fail(ctx context.Context, hash, reason string) (*domain.ChainTransaction, error)
	ValidateUserTransactions(ctx context.Context, identityID string) (*domain.ReconciliationReport, error)
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.ChainTransaction, error)
}

// LedgerAuditor compares stored point counters with the folded ledger.
type LedgerAuditor interface {
	Audit(ctx context.Context, identityID string) (*usecase.LedgerAudit, error)
}

// AdminHandler exposes reserve and transaction operations to admin wallets.
type AdminHandler struct {
	reserve      Reserve
	transactions Transactions
	audits       LedgerAuditor
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(reserve Reserve, transactions Transactions, audits LedgerAuditor) *AdminHandler {
	return &AdminHandler{reserve: reserve, transactions: transactions, audits: audits}
}

// RegisterRoutes binds admin routes. The group must carry RequireSession and RequireAdmin.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reserve", h.reserveReport)
	r.GET("/payouts", h.listPayouts)
	r.POST("/payouts", h.authorizePayout)
	r.POST("/transactions", h.recordTransaction)
	r.POST("/transactions/:hash/confirm", h.confirmTransaction)
	r.POST("/transactions/:hash/fail", h.failTransaction)
	r.GET("/identities/:id/transactions", h.identityTransactions)
	r.GET("/identities/:id/reconciliation", h.reconcileIdentity)
	r.GET("/identities/:id/ledger-audit", h.auditLedger)
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// ReserveReport godoc
// @Summary Reserve report
// @Description Observed on-chain reserve against committed payouts.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReserveReportResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/reserve [get]
func (h *AdminHandler) reserveReport(c *gin.Context) {
	snapshot, err := h.reserve.GetReserveReport(c.Request.Context())
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReserveReportResponse{
		ObservedOnChainBalance:     snapshot.ObservedOnChainBalance,
		CommittedOffChainLiability: snapshot.CommittedOffChainLiability,
		Headroom:                   snapshot.Headroom(),
		Timestamp:                  snapshot.Timestamp,
	})
}

// AuthorizePayout godoc
// @Summary Authorize a payout
// @Description Commits the amount against the reserve; rejected when it would exceed the observed balance.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayoutRequest true "Payout"
// @Success 201 {object} PayoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/payouts [post]
func (h *AdminHandler) authorizePayout(c *gin.Context) {
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "identity_id and a decimal amount are required")
		return
	}

	payout, err := h.reserve.AuthorizePayout(c.Request.Context(), req.IdentityID, req.Amount)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPayoutResponse(*payout))
}

// ListPayouts godoc
// @Summary List payouts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "authorized, settled or released"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} PayoutResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/payouts [get]
func (h *AdminHandler) listPayouts(c *gin.Context) {
	status := domain.PayoutStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", domain.PayoutAuthorized, domain.PayoutSettled, domain.PayoutReleased:
	default:
		respondBadRequest(c, "unknown payout status")
		return
	}

	payouts, err := h.reserve.ListPayouts(c.Request.Context(), status, listLimit(c))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	resp := make([]PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		resp = append(resp, toPayoutResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// RecordTransaction godoc
// @Summary Track a submitted transaction
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RecordTransactionRequest true "Transaction"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/transactions [post]
func (h *AdminHandler) recordTransaction(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "hash, identity_id, kind and amount are required")
		return
	}

	tx, err := h.transactions.RecordPending(c.Request.Context(), domain.ChainTransaction{
		Hash:       req.Hash,
		IdentityID: req.IdentityID,
		Kind:       domain.TxKind(strings.ToLower(string(req.Kind))),
		Amount:     req.Amount,
		PayoutID:   req.PayoutID,
	})
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTransactionResponse(*tx))
}

// ConfirmTransaction godoc
// @Summary Confirm a pending transaction
// @Description Requires a successful chain receipt in the named block.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param hash path string true "Transaction hash"
// @Param request body ConfirmTransactionRequest true "Block"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/transactions/{hash}/confirm [post]
func (h *AdminHandler) confirmTransaction(c *gin.Context) {
	var req ConfirmTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "block_number is required")
		return
	}

	tx, err := h.transactions.Confirm(c.Request.Context(), c.Param("hash"), req.BlockNumber)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(*tx))
}

// FailTransaction godoc
// @Summary Fail a pending transaction
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param hash path string true "Transaction hash"
// @Param request body FailTransactionRequest false "Reason"
// @Success 200 {object} TransactionResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/transactions/{hash}/fail [post]
func (h *AdminHandler) failTransaction(c *gin.Context) {
	var req FailTransactionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "reason must be at most 256 characters")
			return
		}
	}

	tx, err := h.transactions.Fail(c.Request.Context(), c.Param("hash"), req.Reason)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(*tx))
}

// IdentityTransactions godoc
// @Summary List an identity's transactions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Identity ID"
// @Success 200 {array} TransactionResponse
// @Router /api/v1/admin/identities/{id}/transactions [get]
func (h *AdminHandler) identityTransactions(c *gin.Context) {
	txs, err := h.transactions.ListByIdentity(c.Request.Context(), c.Param("id"), listLimit(c))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	resp := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	c.JSON(http.StatusOK, resp)
}

// ReconcileIdentity godoc
// @Summary Reconcile an identity
// @Description Compares ledger mints with confirmed on-chain mints. Mismatches are reported, never corrected.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Identity ID"
// @Success 200 {object} ReconciliationResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/identities/{id}/reconciliation [get]
func (h *AdminHandler) reconcileIdentity(c *gin.Context) {
	report, err := h.transactions.ValidateUserTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReconciliationResponse{
		IdentityID:    report.IdentityID,
		LedgerMinted:  report.LedgerMinted,
		OnChainMinted: report.OnChainMinted,
		PendingCount:  report.PendingCount,
		Consistent:    report.Consistent,
		CheckedAt:     report.CheckedAt,
	})
}

// AuditLedger godoc
// @Summary Audit an identity's ledger
// @Description Folds the ledger entries and compares them with the stored counters.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Identity ID"
// @Success 200 {object} LedgerAuditResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/identities/{id}/ledger-audit [get]
func (h *AdminHandler) auditLedger(c *gin.Context) {
	audit, err := h.audits.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, LedgerAuditResponse{
		FoldedTotal:     audit.Folded.Total,
		FoldedAvailable: audit.Folded.Available,
		StoredTotal:     audit.Stored.Total,
		StoredAvailable: audit.Stored.Available,
		Consistent:      audit.Consistent,
	})
}
