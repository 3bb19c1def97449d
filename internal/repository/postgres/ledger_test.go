package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/kether-core/internal/core/domain"
)

func TestLedgerRepository_AppendBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)

	at := time.Now().UTC()
	source := "identity-2"
	entries := []domain.LedgerEntry{
		{ID: "e1", IdentityID: "identity-2", Amount: 100, Kind: domain.LedgerKindReward, Reference: "daily_ritual", CreatedAt: at},
		{ID: "e2", IdentityID: "identity-1", Amount: 10, Kind: domain.LedgerKindReferralBonus, Reference: "daily_ritual", SourceID: &source, CreatedAt: at},
	}

	mock.ExpectExec(`INSERT INTO kether\.ledger_entries .* VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8\),\(\$9`).
		WithArgs(
			"e1", "identity-2", int64(100), "reward", "daily_ritual", nil, nil, at,
			"e2", "identity-1", int64(10), "referral_bonus", "daily_ritual", source, nil, at,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	if err := repo.Append(context.Background(), entries...); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := repo.Append(context.Background()); err != nil {
		t.Fatalf("empty Append returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepository_ListByIdentityFolds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)

	at := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "identity_id", "amount", "kind", "reference", "source_id", "related_tx_hash", "created_at"}).
		AddRow("e1", "identity-1", int64(100), "reward", "daily_ritual", nil, nil, at).
		AddRow("e2", "identity-1", int64(-40), "spend", "shop", nil, nil, at.Add(time.Second))

	mock.ExpectQuery(`SELECT .*FROM kether\.ledger_entries WHERE identity_id = \$1 ORDER BY created_at ASC`).
		WithArgs("identity-1").
		WillReturnRows(rows)

	entries, err := repo.ListByIdentity(context.Background(), "identity-1")
	if err != nil {
		t.Fatalf("ListByIdentity returned error: %v", err)
	}
	balance := domain.Fold(entries)
	if balance.Total != 100 || balance.Available != 60 {
		t.Fatalf("unexpected balance: %+v", balance)
	}
	if entries[1].Kind != domain.LedgerKindSpend {
		t.Fatalf("unexpected kind %s", entries[1].Kind)
	}
}

func TestLedgerRepository_SumByKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM kether\.ledger_entries WHERE identity_id = \$1 AND kind = \$2`).
		WithArgs("identity-1", "mint").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(750)))

	total, err := repo.SumByKind(context.Background(), "identity-1", domain.LedgerKindMint)
	if err != nil {
		t.Fatalf("SumByKind returned error: %v", err)
	}
	if total != 750 {
		t.Fatalf("expected 750, got %d", total)
	}
}

func TestReferralRepository_CountDownline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewReferralRepository(mock)

	rows := pgxmock.NewRows([]string{"level", "count"}).
		AddRow(1, int64(3)).
		AddRow(3, int64(7))
	mock.ExpectQuery(`SELECT level, COUNT\(\*\) FROM kether\.referral_edges WHERE referrer_id = \$1 GROUP BY level`).
		WithArgs("identity-1").
		WillReturnRows(rows)

	counts, err := repo.CountDownline(context.Background(), "identity-1")
	if err != nil {
		t.Fatalf("CountDownline returned error: %v", err)
	}
	if counts[1] != 3 || counts[2] != 0 || counts[3] != 7 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestReferralRepository_CreateEdges(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewReferralRepository(mock)

	at := time.Now().UTC()
	edges := []domain.ReferralEdge{
		{ReferrerID: "b", RefereeID: "c", Level: 1, CreatedAt: at},
		{ReferrerID: "a", RefereeID: "c", Level: 2, CreatedAt: at},
	}

	mock.ExpectExec(`INSERT INTO kether\.referral_edges`).
		WithArgs("b", "c", 1, at, "a", "c", 2, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	if err := repo.CreateEdges(context.Background(), edges); err != nil {
		t.Fatalf("CreateEdges returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
