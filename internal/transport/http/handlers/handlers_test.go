package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/transport/http/middleware"
	"github.com/arklim/kether-core/internal/usecase"
)

var handlerNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeWalletAuth struct {
	beginErr    error
	completeErr error
	created     bool
	lastOpts    usecase.CompleteOptions
}

func (f *fakeWalletAuth) BeginChallenge(_ context.Context, wallet string) (*usecase.Challenge, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &usecase.Challenge{Nonce: "nonce-1", Message: "Sign in as " + wallet, ExpiresAt: handlerNow.Add(5 * time.Minute)}, nil
}

func (f *fakeWalletAuth) CompleteChallenge(_ context.Context, wallet, _, _ string, opts usecase.CompleteOptions) (*usecase.AuthResult, error) {
	f.lastOpts = opts
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &usecase.AuthResult{
		Identity: domain.Identity{ID: "id-1", WalletAddress: wallet, ReferralCode: "KCAAAAAA", Level: 1},
		Created:  f.created,
		Token:    "token-1",
		Session:  domain.Session{IdentityID: "id-1", WalletAddress: wallet, ExpiresAt: handlerNow.Add(time.Hour)},
		Risk:     domain.RiskAssessment{DeviceScore: 50, BehaviorScore: 100, TrustScore: 79},
	}, nil
}

type fakeClearer struct {
	cleared []string
	err     error
}

func (f *fakeClearer) Clear(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, token)
	return nil
}

type fakeLedger struct {
	balance  domain.LedgerBalance
	spendErr error
}

func (f *fakeLedger) Balance(context.Context, string) (domain.LedgerBalance, error) {
	return f.balance, nil
}

func (f *fakeLedger) Entries(_ context.Context, identityID string) ([]domain.LedgerEntry, error) {
	return []domain.LedgerEntry{{ID: "e-1", IdentityID: identityID, Amount: 50, Kind: domain.LedgerKindReward, CreatedAt: handlerNow}}, nil
}

func (f *fakeLedger) Spend(_ context.Context, identityID string, amount int64, reference string) (*domain.LedgerEntry, error) {
	if f.spendErr != nil {
		return nil, f.spendErr
	}
	return &domain.LedgerEntry{ID: "e-2", IdentityID: identityID, Amount: -amount, Kind: domain.LedgerKindSpend, Reference: reference, CreatedAt: handlerNow}, nil
}

type fakeReferralStats struct{}

func (fakeReferralStats) GetStats(context.Context, string) (*domain.ReferralStats, error) {
	return &domain.ReferralStats{Level1Count: 2, Level2Count: 1, TotalEarned: 15}, nil
}

type fakeRewards struct {
	err error
}

func (f *fakeRewards) Claim(_ context.Context, identityID string, action domain.RewardAction) (*domain.RewardClaim, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RewardClaim{Action: action, IdentityID: identityID, Amount: 50, ClaimedAt: handlerNow, NextAt: handlerNow.Add(24 * time.Hour)}, nil
}

type fakeSocial struct {
	lastClaim domain.SocialClaim
}

func (f *fakeSocial) Verify(_ context.Context, _ string, claim domain.SocialClaim, _ usecase.RiskInput) (*domain.VerificationResult, error) {
	f.lastClaim = claim
	return &domain.VerificationResult{Platform: claim.Platform, Username: claim.Username, Verified: true, Accepted: true, TrustScore: 80}, nil
}

func (f *fakeSocial) ListLinks(context.Context, string) ([]domain.SocialLink, error) {
	return nil, nil
}

type fakeReserve struct {
	snapshot  domain.ReserveSnapshot
	payoutErr error
}

func (f *fakeReserve) GetReserveReport(context.Context) (*domain.ReserveSnapshot, error) {
	snapshot := f.snapshot
	return &snapshot, nil
}

func (f *fakeReserve) AuthorizePayout(_ context.Context, identityID string, amount decimal.Decimal) (*domain.Payout, error) {
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return &domain.Payout{ID: "p-1", IdentityID: identityID, Amount: amount, Status: domain.PayoutAuthorized, AuthorizedAt: handlerNow}, nil
}

func (f *fakeReserve) ListPayouts(_ context.Context, status domain.PayoutStatus, _ int) ([]domain.Payout, error) {
	return []domain.Payout{{ID: "p-1", Status: status}}, nil
}

type fakeTransactions struct {
	confirmErr error
}

func (f *fakeTransactions) RecordPending(_ context.Context, tx domain.ChainTransaction) (*domain.ChainTransaction, error) {
	tx.Status = domain.TxStatusPending
	return &tx, nil
}

func (f *fakeTransactions) Confirm(_ context.Context, hash string, blockNumber uint64) (*domain.ChainTransaction, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &domain.ChainTransaction{Hash: hash, Status: domain.TxStatusConfirmed, BlockNumber: &blockNumber}, nil
}

func (f *fakeTransactions) Fail(_ context.Context, hash, reason string) (*domain.ChainTransaction, error) {
	return &domain.ChainTransaction{Hash: hash, Status: domain.TxStatusFailed, FailReason: &reason}, nil
}

func (f *fakeTransactions) ValidateUserTransactions(_ context.Context, identityID string) (*domain.ReconciliationReport, error) {
	return &domain.ReconciliationReport{
		IdentityID:    identityID,
		LedgerMinted:  decimal.NewFromInt(100),
		OnChainMinted: decimal.NewFromInt(60),
		PendingCount:  1,
		CheckedAt:     handlerNow,
	}, nil
}

func (f *fakeTransactions) ListByIdentity(context.Context, string, int) ([]domain.ChainTransaction, error) {
	return nil, nil
}

type fakeAuditor struct{}

func (fakeAuditor) Audit(context.Context, string) (*usecase.LedgerAudit, error) {
	return nil, fmt.Errorf("audit: %w", domain.ErrNotFound)
}

// withSession stands in for RequireSession.
func withSession(c *gin.Context) {
	c.Set(middleware.SessionKey, &domain.Session{IdentityID: "id-1", WalletAddress: "0xabc"})
	c.Next()
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.EnrichContext())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func newAuthRouter(auth *fakeWalletAuth, sessions *fakeClearer) *gin.Engine {
	router := newTestRouter()
	h := NewAuthHandler(auth, sessions)
	h.RegisterRoutes(router.Group("/auth"))
	h.RegisterSessionRoutes(router.Group("/auth", withSession))
	return router
}

func TestChallengeAndVerify(t *testing.T) {
	auth := &fakeWalletAuth{created: true}
	router := newAuthRouter(auth, &fakeClearer{})

	w := doJSON(t, router, http.MethodPost, "/auth/challenge", ChallengeRequest{WalletAddress: "0xabc"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("challenge: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	challenge := decodeBody[ChallengeResponse](t, w)
	if challenge.Nonce != "nonce-1" {
		t.Fatalf("unexpected nonce %q", challenge.Nonce)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/verify", VerifyRequest{
		WalletAddress: "0xabc",
		Signature:     "0xsig",
		Message:       challenge.Message,
		ReferralCode:  " KCBBBBBB ",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("verify: expected 201 for a new identity, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[VerifyResponse](t, w)
	if resp.AccessToken != "token-1" || resp.TokenType != "Bearer" || !resp.Created {
		t.Fatalf("unexpected verify response %+v", resp)
	}
	if resp.Risk.TrustScore != 79 {
		t.Fatalf("expected risk summary, got %+v", resp.Risk)
	}
	if auth.lastOpts.ReferralCode != "KCBBBBBB" || auth.lastOpts.IPAddress != "198.51.100.7" {
		t.Fatalf("unexpected options %+v", auth.lastOpts)
	}

	auth.created = false
	w = doJSON(t, router, http.MethodPost, "/auth/verify", VerifyRequest{WalletAddress: "0xabc", Signature: "0xsig", Message: "m"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a returning identity, got %d", w.Code)
	}
}

func TestVerifyMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"signature", fmt.Errorf("verify: %w", domain.ErrSignatureMismatch), http.StatusUnauthorized, "signature_mismatch"},
		{"expired", domain.ErrChallengeExpired, http.StatusUnauthorized, "challenge_expired"},
		{"address", fmt.Errorf("%w: not hex", domain.ErrInvalidAddress), http.StatusBadRequest, "invalid_address"},
		{"store", fmt.Errorf("consume: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newAuthRouter(&fakeWalletAuth{completeErr: tc.err}, &fakeClearer{})
			w := doJSON(t, router, http.MethodPost, "/auth/verify", VerifyRequest{WalletAddress: "0xabc", Signature: "0xsig", Message: "m"}, nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			resp := decodeBody[ErrorResponse](t, w)
			if resp.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, resp.Code)
			}
			if tc.status == http.StatusInternalServerError && resp.Error != "internal error" {
				t.Fatalf("internal errors must not leak, got %q", resp.Error)
			}
		})
	}
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	router := newAuthRouter(&fakeWalletAuth{}, &fakeClearer{})

	w := doJSON(t, router, http.MethodPost, "/auth/verify", map[string]string{"wallet_address": "0xabc"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decodeBody[ErrorResponse](t, w); resp.Code != "invalid_input" {
		t.Fatalf("expected invalid_input, got %q", resp.Code)
	}
}

func TestSessionAndLogout(t *testing.T) {
	clearer := &fakeClearer{}
	router := newAuthRouter(&fakeWalletAuth{}, clearer)

	w := doJSON(t, router, http.MethodGet, "/auth/session", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d", w.Code)
	}
	if resp := decodeBody[SessionResponse](t, w); resp.IdentityID != "id-1" {
		t.Fatalf("unexpected session %+v", resp)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("logout without bearer: expected 401, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, http.Header{"Authorization": {"Bearer token-1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	if len(clearer.cleared) != 1 || clearer.cleared[0] != "token-1" {
		t.Fatalf("expected token-1 cleared, got %v", clearer.cleared)
	}

	clearer.err = fmt.Errorf("revoke: %w", domain.ErrStoreUnavailable)
	w = doJSON(t, router, http.MethodPost, "/auth/logout", nil, http.Header{"Authorization": {"Bearer token-2"}})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("logout with store down: expected 503, got %d", w.Code)
	}
}

func newAccountRouter(ledger *fakeLedger, rewards *fakeRewards, social *fakeSocial) *gin.Engine {
	router := newTestRouter()
	h := NewAccountHandler(ledger, fakeReferralStats{}, rewards, social)
	group := router.Group("/", withSession)
	h.RegisterRoutes(group)
	h.RegisterRewardRoutes(group)
	h.RegisterSocialRoutes(group)

	anonymous := router.Group("/anon")
	h.RegisterRoutes(anonymous)
	return router
}

func TestAccountLedgerRoutes(t *testing.T) {
	ledger := &fakeLedger{balance: domain.LedgerBalance{Total: 150, Available: 90}}
	router := newAccountRouter(ledger, &fakeRewards{}, &fakeSocial{})

	w := doJSON(t, router, http.MethodGet, "/ledger/balance", nil, nil)
	if resp := decodeBody[BalanceResponse](t, w); resp.Total != 150 || resp.Available != 90 {
		t.Fatalf("unexpected balance %+v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/ledger/entries", nil, nil)
	if entries := decodeBody[[]LedgerEntryResponse](t, w); len(entries) != 1 || entries[0].Amount != 50 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	w = doJSON(t, router, http.MethodPost, "/ledger/spend", SpendRequest{Amount: 0, Reference: "shop"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero spend: expected 400, got %d", w.Code)
	}

	ledger.spendErr = fmt.Errorf("spend: %w", domain.ErrInsufficientPoints)
	w = doJSON(t, router, http.MethodPost, "/ledger/spend", SpendRequest{Amount: 500, Reference: "shop"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("overspend: expected 409, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/referrals/stats", nil, nil)
	if stats := decodeBody[ReferralStatsResponse](t, w); stats.Level1Count != 2 || stats.TotalEarned != 15 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	w = doJSON(t, router, http.MethodGet, "/anon/ledger/balance", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", w.Code)
	}
}

func TestClaimRewardCooldownSetsRetryAfter(t *testing.T) {
	rewards := &fakeRewards{}
	router := newAccountRouter(&fakeLedger{}, rewards, &fakeSocial{})

	w := doJSON(t, router, http.MethodPost, "/rewards/DAILY_RITUAL/claim", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeBody[RewardClaimResponse](t, w); resp.Action != domain.RewardDailyRitual || resp.Amount != 50 {
		t.Fatalf("unexpected claim %+v", resp)
	}

	rewards.err = &usecase.ClaimCooldownError{Action: domain.RewardDailyRitual, RetryAfter: 90*time.Minute + 500*time.Millisecond}
	w = doJSON(t, router, http.MethodPost, "/rewards/daily_ritual/claim", nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "5401" {
		t.Fatalf("expected Retry-After 5401, got %q", got)
	}
	if resp := decodeBody[ErrorResponse](t, w); resp.Code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", resp.Code)
	}
}

func TestVerifySocialPassesClaim(t *testing.T) {
	social := &fakeSocial{}
	router := newAccountRouter(&fakeLedger{}, &fakeRewards{}, social)

	w := doJSON(t, router, http.MethodPost, "/social/verify", SocialVerifyRequest{Platform: "twitter", Username: "@Fan", ProofToken: "proof"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if social.lastClaim.Platform != domain.SocialPlatform("twitter") || social.lastClaim.ProofToken != "proof" {
		t.Fatalf("unexpected claim %+v", social.lastClaim)
	}
	if resp := decodeBody[VerificationResponse](t, w); !resp.Accepted || resp.TrustScore != 80 {
		t.Fatalf("unexpected verification %+v", resp)
	}

	w = doJSON(t, router, http.MethodPost, "/social/verify", map[string]string{"platform": "twitter"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing proof, got %d", w.Code)
	}
}

func newAdminRouter(reserve *fakeReserve, txs *fakeTransactions) *gin.Engine {
	router := newTestRouter()
	NewAdminHandler(reserve, txs, fakeAuditor{}).RegisterRoutes(router.Group("/admin"))
	return router
}

func TestAdminReserveAndPayouts(t *testing.T) {
	reserve := &fakeReserve{snapshot: domain.ReserveSnapshot{
		ObservedOnChainBalance:     decimal.NewFromInt(1000),
		CommittedOffChainLiability: decimal.NewFromInt(250),
		Timestamp:                  handlerNow,
	}}
	router := newAdminRouter(reserve, &fakeTransactions{})

	w := doJSON(t, router, http.MethodGet, "/admin/reserve", nil, nil)
	report := decodeBody[ReserveReportResponse](t, w)
	if !report.Headroom.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected headroom 750, got %s", report.Headroom)
	}

	w = doJSON(t, router, http.MethodPost, "/admin/payouts", PayoutRequest{IdentityID: "id-1", Amount: decimal.NewFromInt(40)}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	reserve.payoutErr = fmt.Errorf("authorize: %w", domain.ErrReserveExceeded)
	w = doJSON(t, router, http.MethodPost, "/admin/payouts", PayoutRequest{IdentityID: "id-1", Amount: decimal.NewFromInt(4000)}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := decodeBody[ErrorResponse](t, w); resp.Code != "reserve_exceeded" {
		t.Fatalf("expected reserve_exceeded, got %q", resp.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/admin/payouts?status=SETTLED", nil, nil)
	if payouts := decodeBody[[]PayoutResponse](t, w); len(payouts) != 1 || payouts[0].Status != domain.PayoutSettled {
		t.Fatalf("unexpected payouts %+v", payouts)
	}

	w = doJSON(t, router, http.MethodGet, "/admin/payouts?status=bogus", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestAdminTransactionLifecycle(t *testing.T) {
	txs := &fakeTransactions{}
	router := newAdminRouter(&fakeReserve{}, txs)

	w := doJSON(t, router, http.MethodPost, "/admin/transactions", RecordTransactionRequest{
		Hash:       "0xaaa",
		IdentityID: "id-1",
		Kind:       "MINT",
		Amount:     decimal.NewFromInt(100),
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if tx := decodeBody[TransactionResponse](t, w); tx.Kind != domain.TxKindMint || tx.Status != domain.TxStatusPending {
		t.Fatalf("unexpected tx %+v", tx)
	}

	w = doJSON(t, router, http.MethodPost, "/admin/transactions/0xaaa/confirm", map[string]any{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("confirm without block: expected 400, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/admin/transactions/0xaaa/confirm", ConfirmTransactionRequest{BlockNumber: 42}, nil)
	if tx := decodeBody[TransactionResponse](t, w); tx.BlockNumber == nil || *tx.BlockNumber != 42 {
		t.Fatalf("unexpected confirm response %+v", tx)
	}

	txs.confirmErr = fmt.Errorf("confirm: %w", domain.ErrTransactionFinal)
	w = doJSON(t, router, http.MethodPost, "/admin/transactions/0xaaa/confirm", ConfirmTransactionRequest{BlockNumber: 42}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("confirm final: expected 409, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/admin/transactions/0xbbb/fail", FailTransactionRequest{Reason: "reverted"}, nil)
	if tx := decodeBody[TransactionResponse](t, w); tx.FailReason == nil || *tx.FailReason != "reverted" {
		t.Fatalf("unexpected fail response %+v", tx)
	}

	w = doJSON(t, router, http.MethodGet, "/admin/identities/id-1/reconciliation", nil, nil)
	if report := decodeBody[ReconciliationResponse](t, w); report.Consistent || report.PendingCount != 1 {
		t.Fatalf("unexpected reconciliation %+v", report)
	}

	w = doJSON(t, router, http.MethodGet, "/admin/identities/id-9/ledger-audit", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("audit of unknown identity: expected 404, got %d", w.Code)
	}
}

func TestReadiness(t *testing.T) {
	router := newTestRouter()
	healthy := NewHealthHandler(WithReadinessCheck("postgres", func(context.Context) error { return nil }))
	degraded := NewHealthHandler(
		WithReadinessCheck("postgres", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)
	router.GET("/healthy", healthy.Readiness)
	router.GET("/degraded", degraded.Readiness)

	w := doJSON(t, router, http.MethodGet, "/healthy", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/degraded", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	resp := decodeBody[ReadinessResponse](t, w)
	if resp.Status != "degraded" || resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected readiness %+v", resp)
	}
}
