package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"circolo/internal/adapters"
	"circolo/internal/core"
	"circolo/internal/sequence"
)

const seedJSON = `{
  "ricevute": [
    {"id": 1, "socioId": 10, "dataRicevuta": "2024-09-15", "importo": "50", "tipologiaPagamento": 1, "attivita": "Yoga"},
    {"idRicevuta": 2, "socioId": 10, "data": "20-10-2024", "importoRicevuta": 40, "attivitaNome": "Yoga"}
  ],
  "spese": [
    {"id": 1, "dataSpesa": "2024-10-01", "importo": "30", "categoria": "Affitto", "fornitore": "Comune"}
  ],
  "ricevuteEnti": [
    {"id": 1, "dataRicevuta": "2024-11-01", "ente": "Regione", "importo": 1000}
  ],
  "abbonamenti": [
    {"id": 1, "socioId": 10, "annoSportivoId": 2, "numeroTessera": "1001", "dataIscrizione": "2024-09-01"},
    {"id": 2, "socioId": 11, "annoSportivoId": 2, "numeroTessara": "1001"},
    {"id": 3, "socioId": 12, "annoSportivoId": 2}
  ],
  "attivita": ["Yoga", "Scherma", "Yoga"]
}`

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ctx := context.Background()

	entries, err := adapters.NewSources(s, 0).Entries(ctx, core.FiscalYearRange(2024), adapters.SelectAll)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	acts, _ := s.Activities(ctx)
	if len(acts) != 2 || acts[0] != "Scherma" || acts[1] != "Yoga" {
		t.Fatalf("unexpected activities %v", acts)
	}

	subs, _ := s.Subscriptions(ctx, 2)
	report := sequence.RunAudit(subs, 2)
	if len(report.Duplicates) != 1 || report.Duplicates[0].Number != "1001" {
		t.Fatalf("expected duplicate 1001, got %+v", report.Duplicates)
	}
	if len(report.Missing) != 1 || report.Missing[0] != 3 {
		t.Fatalf("expected subscription 3 missing, got %v", report.Missing)
	}
}

func TestNewFromFileMissingIsEmpty(t *testing.T) {
	s, err := NewFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("expected empty store, got %v", err)
	}
	subs, _ := s.Subscriptions(context.Background(), 0)
	if len(subs) != 0 {
		t.Fatalf("expected no subscriptions")
	}
}

func TestNumberingLockRollsBackOnError(t *testing.T) {
	s := New()
	s.AddSubscription(core.Subscription{ID: 1, Active: true})
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithNumberingLock(ctx, func(tx sequence.NumberingTx) error {
		v := "1000"
		if err := tx.SetNumber(ctx, 1, &v, core.NewDate(2025, 1, 1).Time); err != nil {
			return err
		}
		holders, _ := tx.HoldersOf(ctx, "1000")
		if len(holders) != 1 {
			t.Errorf("staged write not visible inside the transaction")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	subs, _ := s.Subscriptions(ctx, 0)
	if subs[0].HasNumber() {
		t.Fatalf("write survived a failed transaction")
	}
}

func TestReceiptsAndAnnul(t *testing.T) {
	s := New()
	s.AddReceipt(adapters.ReceiptRow{ID: 1, MemberID: 7, Date: "2025-01-01", Amount: "10"})
	s.AddReceipt(adapters.ReceiptRow{ID: 2, MemberID: 7, Date: "2025-02-01", Amount: "10"})
	ctx := context.Background()

	got, err := s.MemberReceipts(ctx, 7, core.FiscalYearRange(2024))
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 receipts, got %d (%v)", len(got), err)
	}
	if ok, _ := s.AnnulReceipt(ctx, 1); !ok {
		t.Fatalf("first annul should find the receipt")
	}
	if ok, _ := s.AnnulReceipt(ctx, 1); ok {
		t.Fatalf("second annul should find nothing")
	}
	var nf *core.NotFoundError
	if _, err := s.Receipt(ctx, 1); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRowsArePrefilteredByRange(t *testing.T) {
	s := New()
	if err := s.Load(adapters.Seed{Receipts: []adapters.ReceiptRow{
		{ID: 1, MemberID: 10, Date: "2025-01-10", Amount: "25"},
		{ID: 2, MemberID: 10, Date: "2019-13-45", Amount: "10"},
		{ID: 3, MemberID: 10, Date: "10-01-2025", Amount: "15"},
	}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	jan := core.DateRange{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31)}

	rows, err := s.ReceiptRows(context.Background(), jan)
	if err != nil {
		t.Fatalf("receipt rows: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].ID != 3 {
		t.Fatalf("expected receipts 1 and 3, got %+v", rows)
	}

	entries, err := adapters.NewSources(s, 0).Entries(context.Background(), jan, adapters.SelectAll)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
