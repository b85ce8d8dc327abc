package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circolo/internal/adapters"
	"circolo/internal/cache"
	"circolo/internal/core"
	"circolo/internal/ledger"
	"circolo/internal/storage/memory"
)

// countingSource records every call made to the wrapped sources.
type countingSource struct {
	inner *adapters.Sources

	mu    sync.Mutex
	calls []adapters.Selection
}

func (c *countingSource) Entries(ctx context.Context, r core.DateRange, sel adapters.Selection) ([]core.LedgerEntry, error) {
	c.mu.Lock()
	c.calls = append(c.calls, sel)
	c.mu.Unlock()
	return c.inner.Entries(ctx, r, sel)
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func ledgerSeed() adapters.Seed {
	return adapters.Seed{
		Receipts: []adapters.ReceiptRow{
			// fiscal year 2023
			{ID: 1, MemberID: 10, Date: "2023-10-05", Amount: "100", PaymentMethod: 1, Activity: "Yoga"},
			{ID: 2, MemberID: 10, Date: "2023-11-10", Amount: "50", PaymentMethod: 1, Activity: "Scherma"},
			// fiscal year 2024
			{ID: 3, MemberID: 11, Date: "2024-10-03", Amount: "80", PaymentMethod: 1, Activity: "Yoga"},
			{ID: 4, MemberID: 11, Date: "2024-10-20", Amount: "20", PaymentMethod: 2, Activity: "Yoga"},
			{ID: 5, MemberID: 12, Date: "2024-12-01", Amount: "40", PaymentMethod: 1, Activity: "Nuoto"},
		},
		Expenses: []adapters.ExpenseRow{
			{ID: 1, Date: "2024-10-15", Amount: "30", PaymentMethod: 1, Category: "Affitto"},
		},
		Activities: []string{"Scherma", "Nuoto", "Yoga"},
	}
}

func newLedgerService(t *testing.T, ref *cache.LRUCache[int, []core.LedgerEntry]) (*LedgerService, *countingSource) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Load(ledgerSeed()))
	src := &countingSource{inner: adapters.NewSources(store, time.Second)}
	svc := NewLedgerService(src, store, ref)
	// fiscal year 2025 has no income yet
	svc.now = func() time.Time { return time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) }
	return svc, src
}

func TestLedgerService_Report(t *testing.T) {
	svc, src := newLedgerService(t, nil)
	ctx := context.Background()

	t.Run("expenses only skip income sources", func(t *testing.T) {
		r, err := svc.Report(ctx, ledger.Filter{Type: ledger.TypeExpense}, core.FiscalYearRange(2024))
		require.NoError(t, err)
		require.Len(t, r.Items, 1)
		assert.Equal(t, int64(3000), r.Summary.TotalExpense.Cents)
		assert.Equal(t, int64(-3000), r.GrandTotal.Cents)
		assert.False(t, src.calls[len(src.calls)-1].Income)
	})

	t.Run("all movements", func(t *testing.T) {
		r, err := svc.Report(ctx, ledger.Filter{}, core.FiscalYearRange(2024))
		require.NoError(t, err)
		assert.Len(t, r.Items, 4)
		assert.Equal(t, int64(14000), r.Summary.TotalIncome.Cents)
		assert.Equal(t, int64(11000), r.Summary.Net.Cents)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := svc.Report(ctx, ledger.Filter{Type: 7}, core.DateRange{})
		assert.Equal(t, core.KindValidation, core.ErrorKind(err))
	})

	t.Run("print layout", func(t *testing.T) {
		p, err := svc.Print(ctx, ledger.Filter{Type: ledger.TypeIncome}, core.FiscalYearRange(2024))
		require.NoError(t, err)
		assert.Equal(t, "PRIMA NOTA", p.Header.Title)
		assert.Len(t, p.Rows, 3)
	})
}

func TestLedgerService_StatsFallsBackToPreviousSeason(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	res, err := svc.Stats(context.Background(), StatsMonthly, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 2024, res.FiscalYear)
	assert.Equal(t, 2024, res.Report.FiscalYear)
	assert.Equal(t, int64(14000), res.Report.Total.Cents)
	// only October has a reference month; November 2023 is not joined
	assert.Equal(t, int64(10000), res.Report.ReferenceTotal.Cents)
	assert.True(t, res.Report.Change.Applicable)
	assert.InDelta(t, 40.0, res.Report.Change.Value, 0.001)
	require.Len(t, res.Report.CategoryStats, 2)
	assert.Equal(t, "Yoga", res.Report.CategoryStats[0].Category)
}

func TestLedgerService_StatsExplicitYearDoesNotFallBack(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	res, err := svc.Stats(context.Background(), StatsMonthly, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, res.FiscalYear)
	assert.Empty(t, res.Report.Months)
	assert.True(t, res.Report.Total.IsZero())
}

func TestLedgerService_StatsActivities(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	res, err := svc.Stats(context.Background(), StatsActivities, 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, res.FiscalYear)
	require.Len(t, res.Activities, 3)
	assert.Equal(t, "Yoga", res.Activities[0].Activity)
	assert.Equal(t, 2, res.Activities[0].Receipts)
	assert.Equal(t, "Nuoto", res.Activities[1].Activity)
	assert.Equal(t, "Scherma", res.Activities[2].Activity)
	assert.True(t, res.Activities[2].IncomeTotal.IsZero())
}

func TestLedgerService_StatsTrailing(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	res, err := svc.Stats(context.Background(), StatsTrailing, 0)
	require.NoError(t, err)
	require.Len(t, res.Trailing, 2)
	assert.Equal(t, 10, res.Trailing[0].Month)
	assert.Equal(t, 2, res.Trailing[0].Receipts)
	assert.Equal(t, int64(10000), res.Trailing[0].IncomeTotal.Cents)
	assert.Equal(t, 12, res.Trailing[1].Month)
}

func TestStatsResultJSONShape(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	res, err := svc.Stats(context.Background(), StatsMonthly, 2024)
	require.NoError(t, err)
	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	for _, key := range []string{"type", "fiscalYear", "monthlyStats", "categoryStats", "totalIncome", "change"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, "140.00", body["totalIncome"])
	assert.NotContains(t, body, "monthly")
	assert.NotContains(t, body, "activities")

	res, err = svc.Stats(context.Background(), StatsActivities, 2024)
	require.NoError(t, err)
	raw, err = json.Marshal(res)
	require.NoError(t, err)
	body = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body, "activities")
	assert.NotContains(t, body, "monthlyStats")
}

func TestLedgerService_StatsUnknownType(t *testing.T) {
	svc, _ := newLedgerService(t, nil)

	_, err := svc.Stats(context.Background(), StatsType(9), 0)
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLedgerService_ClosedYearsAreCached(t *testing.T) {
	ref := cache.NewLRUCache[int, []core.LedgerEntry](4, time.Hour)
	svc, src := newLedgerService(t, ref)
	ctx := context.Background()

	_, err := svc.Stats(ctx, StatsMonthly, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count())
	assert.Equal(t, 2, ref.Size())

	_, err = svc.Stats(ctx, StatsMonthly, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count(), "closed years should come from the cache")

	// the current season is always read fresh
	_, err = svc.Stats(ctx, StatsMonthly, 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, src.count())
}

type failingSource struct{ err error }

func (f failingSource) Entries(context.Context, core.DateRange, adapters.Selection) ([]core.LedgerEntry, error) {
	return nil, f.err
}

func TestLedgerService_SourceFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewLedgerService(failingSource{err: boom}, memory.New(), nil)

	_, err := svc.Report(context.Background(), ledger.Filter{}, core.DateRange{})
	assert.ErrorIs(t, err, boom)

	_, err = svc.Stats(context.Background(), StatsMonthly, 2024)
	assert.ErrorIs(t, err, boom)
}
