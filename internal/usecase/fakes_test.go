package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/repository"
)

var errStoreDown = errors.New("store down")

// memState is the data behind the in-memory repositories.
type memState struct {
	identities map[string]domain.Identity
	entries    []domain.LedgerEntry
	edges      []domain.ReferralEdge
	txs        map[string]domain.ChainTransaction
	payouts    map[string]domain.Payout
	committed  decimal.Decimal
	links      map[string]domain.SocialLink
	signals    []domain.RiskSignal
}

func (s memState) clone() memState {
	c := memState{
		identities: make(map[string]domain.Identity, len(s.identities)),
		entries:    append([]domain.LedgerEntry(nil), s.entries...),
		edges:      append([]domain.ReferralEdge(nil), s.edges...),
		txs:        make(map[string]domain.ChainTransaction, len(s.txs)),
		payouts:    make(map[string]domain.Payout, len(s.payouts)),
		committed:  s.committed,
		links:      make(map[string]domain.SocialLink, len(s.links)),
		signals:    append([]domain.RiskSignal(nil), s.signals...),
	}
	for k, v := range s.identities {
		c.identities[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	return c
}

// memStore emulates the Postgres repositories. Do serializes transactions and rolls back on error.
type memStore struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	state     memState
	fail      bool
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		identities: map[string]domain.Identity{},
		txs:        map[string]domain.ChainTransaction{},
		payouts:    map[string]domain.Payout{},
		links:      map[string]domain.SocialLink{},
	}}
}

func (s *memStore) repos() port.Repositories {
	return port.Repositories{
		Identities:   memIdentities{s},
		Ledger:       memLedger{s},
		Referrals:    memReferrals{s},
		Transactions: memTransactions{s},
		Reserve:      memReserve{s},
		SocialLinks:  memLinks{s},
	}
}

func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	if s.fail {
		s.mu.Unlock()
		return errStoreDown
	}
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(ctx, s.repos()); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) putIdentity(identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.identities[identity.ID] = identity
}

func (s *memStore) identity(id string) domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.identities[id]
}

func (s *memStore) committed() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.committed
}

type memIdentities struct{ s *memStore }

func (r memIdentities) Create(_ context.Context, identity domain.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.state.identities {
		if existing.WalletAddress == identity.WalletAddress || existing.ReferralCode == identity.ReferralCode {
			return repository.ErrConflict
		}
	}
	r.s.state.identities[identity.ID] = identity
	return nil
}

func (r memIdentities) find(match func(domain.Identity) bool) (*domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.fail {
		return nil, errStoreDown
	}
	for _, identity := range r.s.state.identities {
		if match(identity) {
			copied := identity
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memIdentities) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	return r.find(func(i domain.Identity) bool { return i.ID == id })
}

func (r memIdentities) GetByWallet(_ context.Context, wallet string) (*domain.Identity, error) {
	return r.find(func(i domain.Identity) bool { return i.WalletAddress == wallet })
}

func (r memIdentities) GetByReferralCode(_ context.Context, code string) (*domain.Identity, error) {
	return r.find(func(i domain.Identity) bool { return i.ReferralCode == code })
}

func (r memIdentities) LockByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.GetByID(ctx, id)
}

func (r memIdentities) AddPoints(_ context.Context, id string, amount int64) (*domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.state.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	identity.TotalPoints += amount
	identity.AvailablePoints += amount
	r.s.state.identities[id] = identity
	return &identity, nil
}

func (r memIdentities) DebitAvailable(_ context.Context, id string, amount int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.state.identities[id]
	if !ok || identity.AvailablePoints < amount {
		return false, nil
	}
	identity.AvailablePoints -= amount
	r.s.state.identities[id] = identity
	return true, nil
}

func (r memIdentities) UpdateLevel(_ context.Context, id string, level int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity := r.s.state.identities[id]
	identity.Level = level
	r.s.state.identities[id] = identity
	return nil
}

func (r memIdentities) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity := r.s.state.identities[id]
	identity.LastLoginAt = &at
	r.s.state.identities[id] = identity
	return nil
}

type memLedger struct{ s *memStore }

func (r memLedger) Append(_ context.Context, entries ...domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendErr != nil {
		return r.s.appendErr
	}
	r.s.state.entries = append(r.s.state.entries, entries...)
	return nil
}

func (r memLedger) ListByIdentity(_ context.Context, identityID string) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.s.state.entries {
		if e.IdentityID == identityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memLedger) SumByKind(_ context.Context, identityID string, kind domain.LedgerKind) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, e := range r.s.state.entries {
		if e.IdentityID == identityID && e.Kind == kind {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r memLedger) ActiveIdentitiesSince(_ context.Context, since time.Time, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range r.s.state.entries {
		if !e.CreatedAt.Before(since) && !seen[e.IdentityID] {
			seen[e.IdentityID] = true
			out = append(out, e.IdentityID)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memReferrals struct{ s *memStore }

func (r memReferrals) CreateEdges(_ context.Context, edges []domain.ReferralEdge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.edges = append(r.s.state.edges, edges...)
	return nil
}

func (r memReferrals) ListUpline(_ context.Context, refereeID string) ([]domain.ReferralEdge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ReferralEdge
	for _, e := range r.s.state.edges {
		if e.RefereeID == refereeID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (r memReferrals) CountDownline(_ context.Context, referrerID string) (map[int]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[int]int{}
	for _, e := range r.s.state.edges {
		if e.ReferrerID == referrerID {
			counts[e.Level]++
		}
	}
	return counts, nil
}

type memTransactions struct{ s *memStore }

func (r memTransactions) Create(_ context.Context, tx domain.ChainTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.txs[tx.Hash]; ok {
		return repository.ErrConflict
	}
	r.s.state.txs[tx.Hash] = tx
	return nil
}

func (r memTransactions) GetByHash(_ context.Context, hash string) (*domain.ChainTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.state.txs[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

func (r memTransactions) Transition(_ context.Context, hash string, to domain.TxStatus, blockNumber *uint64, reason *string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.state.txs[hash]
	if !ok || tx.Status != domain.TxStatusPending {
		return false, nil
	}
	tx.Status = to
	tx.BlockNumber = blockNumber
	tx.FailReason = reason
	tx.UpdatedAt = at
	r.s.state.txs[hash] = tx
	return true, nil
}

func (r memTransactions) SumConfirmed(_ context.Context, identityID string, kind domain.TxKind) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range r.s.state.txs {
		if tx.IdentityID == identityID && tx.Kind == kind && tx.Status == domain.TxStatusConfirmed {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

func (r memTransactions) CountPending(_ context.Context, identityID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, tx := range r.s.state.txs {
		if tx.IdentityID == identityID && tx.Status == domain.TxStatusPending {
			n++
		}
	}
	return n, nil
}

func (r memTransactions) ListPending(_ context.Context, olderThan time.Time, limit int) ([]domain.ChainTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ChainTransaction
	for _, tx := range r.s.state.txs {
		if tx.Status == domain.TxStatusPending && tx.CreatedAt.Before(olderThan) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memTransactions) ListByIdentity(_ context.Context, identityID string, limit int) ([]domain.ChainTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ChainTransaction
	for _, tx := range r.s.state.txs {
		if tx.IdentityID == identityID {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memReserve struct{ s *memStore }

func (r memReserve) LockCommitted(ctx context.Context) (decimal.Decimal, error) {
	return r.CommittedLiability(ctx)
}

func (r memReserve) CommittedLiability(_ context.Context) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.fail {
		return decimal.Zero, errStoreDown
	}
	return r.s.state.committed, nil
}

func (r memReserve) AdjustCommitted(_ context.Context, delta decimal.Decimal, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.committed = decimal.Max(r.s.state.committed.Add(delta), decimal.Zero)
	return nil
}

func (r memReserve) CreatePayout(_ context.Context, payout domain.Payout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.payouts[payout.ID] = payout
	return nil
}

func (r memReserve) GetPayout(_ context.Context, id string) (*domain.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payout, ok := r.s.state.payouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &payout, nil
}

func (r memReserve) TransitionPayout(_ context.Context, id string, from, to domain.PayoutStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payout, ok := r.s.state.payouts[id]
	if !ok || payout.Status != from {
		return false, nil
	}
	payout.Status = to
	r.s.state.payouts[id] = payout
	return true, nil
}

func (r memReserve) ListPayouts(_ context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Payout
	for _, payout := range r.s.state.payouts {
		if status == "" || payout.Status == status {
			out = append(out, payout)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memLinks struct{ s *memStore }

func linkKey(platform domain.SocialPlatform, username string) string {
	return string(platform) + ":" + strings.ToLower(username)
}

func (r memLinks) Link(_ context.Context, link domain.SocialLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := linkKey(link.Platform, link.Username)
	if _, ok := r.s.state.links[key]; ok {
		return repository.ErrConflict
	}
	r.s.state.links[key] = link
	return nil
}

func (r memLinks) GetByAccount(_ context.Context, platform domain.SocialPlatform, username string) (*domain.SocialLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	link, ok := r.s.state.links[linkKey(platform, username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &link, nil
}

func (r memLinks) ListByIdentity(_ context.Context, identityID string) ([]domain.SocialLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.SocialLink
	for _, link := range r.s.state.links {
		if link.IdentityID == identityID {
			out = append(out, link)
		}
	}
	return out, nil
}

type memSignals struct {
	mu      sync.Mutex
	signals []domain.RiskSignal
	err     error
}

func (r *memSignals) Record(_ context.Context, signal domain.RiskSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.signals = append(r.signals, signal)
	return nil
}

func (r *memSignals) count(since time.Time, match func(domain.RiskSignal) bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	seen := map[string]bool{}
	for _, s := range r.signals {
		if !s.ObservedAt.Before(since) && match(s) {
			seen[s.IdentityID] = true
		}
	}
	return len(seen), nil
}

func (r *memSignals) CountIdentitiesByFingerprint(_ context.Context, fingerprint string, since time.Time) (int, error) {
	return r.count(since, func(s domain.RiskSignal) bool { return s.DeviceFingerprint == fingerprint })
}

func (r *memSignals) CountIdentitiesByIP(_ context.Context, ip string, since time.Time) (int, error) {
	return r.count(since, func(s domain.RiskSignal) bool { return s.IPAddress == ip })
}

type memChallenges struct {
	mu         sync.Mutex
	challenges map[string]domain.AuthChallenge
	err        error
}

func newMemChallenges() *memChallenges {
	return &memChallenges{challenges: map[string]domain.AuthChallenge{}}
}

func (c *memChallenges) Save(_ context.Context, challenge domain.AuthChallenge, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.challenges[challenge.Nonce] = challenge
	return nil
}

func (c *memChallenges) Consume(_ context.Context, nonce string) (*domain.AuthChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	challenge, ok := c.challenges[nonce]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(c.challenges, nonce)
	return &challenge, nil
}

type memWindows struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemWindows() *memWindows {
	return &memWindows{counts: map[string]int64{}}
}

func (w *memWindows) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, 0, w.err
	}
	w.counts[key]++
	return w.counts[key], window, nil
}

func (w *memWindows) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts = map[string]int64{}
}

type memSuspicious struct {
	mu       sync.Mutex
	attempts map[string]int64
	flags    map[string]string
	err      error
}

func newMemSuspicious() *memSuspicious {
	return &memSuspicious{attempts: map[string]int64{}, flags: map[string]string{}}
}

func (s *memSuspicious) RecordAttempt(_ context.Context, ip string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.attempts[ip]++
	return s.attempts[ip], nil
}

func (s *memSuspicious) Flag(_ context.Context, ip, reason string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[ip] = reason
	return nil
}

func (s *memSuspicious) IsFlagged(_ context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.flags[ip]
	return ok, nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: map[string]time.Duration{}}
}

func (r *memRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked[tokenID] = ttl
	return nil
}

func (r *memRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]time.Duration
	err  error
}

func newMemLocks() *memLocks {
	return &memLocks{held: map[string]time.Duration{}}
}

func (l *memLocks) Acquire(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, 0, l.err
	}
	if remaining, ok := l.held[key]; ok {
		return false, remaining, nil
	}
	l.held[key] = ttl
	return true, 0, nil
}

func (l *memLocks) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type fakeChain struct {
	mu          sync.Mutex
	balance     decimal.Decimal
	receipts    map[string]domain.ChainReceipt
	receiptErrs map[string]error
	err         error
	calls       int
}

func newFakeChain(balance string) *fakeChain {
	return &fakeChain{
		balance:     decimal.RequireFromString(balance),
		receipts:    map[string]domain.ChainReceipt{},
		receiptErrs: map[string]error{},
	}
}

func (c *fakeChain) ReserveBalance(context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return c.balance, nil
}

func (c *fakeChain) Receipt(_ context.Context, hash string) (domain.ChainReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.ChainReceipt{}, c.err
	}
	if err := c.receiptErrs[hash]; err != nil {
		return domain.ChainReceipt{}, err
	}
	return c.receipts[hash], nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	created    []domain.IdentityCreatedEvent
	credited   []domain.LedgerCreditedEvent
	payouts    []domain.PayoutAuthorizedEvent
	settled    []domain.TransactionSettledEvent
	mismatches []domain.ReconciliationMismatchEvent
	suspicious []domain.SuspiciousActivityEvent
}

func (p *recordingPublisher) PublishIdentityCreated(_ context.Context, e domain.IdentityCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishLedgerCredited(_ context.Context, e domain.LedgerCreditedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credited = append(p.credited, e)
	return nil
}

func (p *recordingPublisher) PublishPayoutAuthorized(_ context.Context, e domain.PayoutAuthorizedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payouts = append(p.payouts, e)
	return nil
}

func (p *recordingPublisher) PublishTransactionSettled(_ context.Context, e domain.TransactionSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *recordingPublisher) PublishReconciliationMismatch(_ context.Context, e domain.ReconciliationMismatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mismatches = append(p.mismatches, e)
	return nil
}

func (p *recordingPublisher) PublishSuspiciousActivity(_ context.Context, e domain.SuspiciousActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspicious = append(p.suspicious, e)
	return nil
}

type stubVerifier struct {
	verified bool
	err      error
	calls    int
}

func (v *stubVerifier) Verify(context.Context, domain.SocialClaim) (bool, error) {
	v.calls++
	return v.verified, v.err
}

func seedIdentity(store *memStore, id, wallet, code string) domain.Identity {
	identity := domain.Identity{
		ID:            id,
		WalletAddress: wallet,
		ReferralCode:  code,
		Level:         1,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	store.putIdentity(identity)
	return identity
}

var (
	_ port.UnitOfWork              = (*memStore)(nil)
	_ port.RiskSignalRepository    = (*memSignals)(nil)
	_ port.ChallengeStore          = (*memChallenges)(nil)
	_ port.RateLimitStore          = (*memWindows)(nil)
	_ port.SuspiciousActivityStore = (*memSuspicious)(nil)
	_ port.SessionRevocationStore  = (*memRevocations)(nil)
	_ port.ClaimLockStore          = (*memLocks)(nil)
	_ port.ChainClient             = (*fakeChain)(nil)
	_ port.EventPublisher          = (*recordingPublisher)(nil)
	_ port.OwnershipVerifier       = (*stubVerifier)(nil)
)
