package services

import (
	"context"
	"fmt"
	"time"

	"circolo/internal/adapters"
	"circolo/internal/cache"
	"circolo/internal/core"
	"circolo/internal/ledger"
	applog "circolo/internal/log"
	"circolo/internal/stats"
)

// EntrySource yields normalized ledger entries for a range.
type EntrySource interface {
	Entries(ctx context.Context, r core.DateRange, sel adapters.Selection) ([]core.LedgerEntry, error)
}

// ActivityLister lists the known activity names.
type ActivityLister interface {
	Activities(ctx context.Context) ([]string, error)
}

// StatsType selects one of the statistics reports.
type StatsType int

const (
	StatsMonthly StatsType = iota
	StatsActivities
	StatsTrailing
)

// StatsResult holds exactly one of the statistics reports, picked by Type.
// The monthly report is embedded so monthlyStats, categoryStats and
// totalIncome sit at the top level of the JSON body.
type StatsResult struct {
	Type       StatsType `json:"type"`
	FiscalYear int       `json:"fiscalYear"`
	*stats.Report
	Activities []stats.ActivityStat `json:"activities,omitempty"`
	Trailing   []stats.PeriodStat   `json:"trailing,omitempty"`
}

// LedgerService builds prima nota reports and statistics from the entry sources.
type LedgerService struct {
	sources    EntrySource
	activities ActivityLister
	reference  *cache.LRUCache[int, []core.LedgerEntry]
	now        func() time.Time
}

// NewLedgerService wires the service. reference may be nil, in which case
// closed fiscal years are read from the sources every time.
func NewLedgerService(sources EntrySource, activities ActivityLister, reference *cache.LRUCache[int, []core.LedgerEntry]) *LedgerService {
	return &LedgerService{
		sources:    sources,
		activities: activities,
		reference:  reference,
		now:        time.Now,
	}
}

func logger(ctx context.Context, component string) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(component)
}

func selectionFor(f ledger.Filter) adapters.Selection {
	return adapters.Selection{Income: f.IncludesIncome(), Expenses: f.IncludesExpenses()}
}

// Report composes the prima nota for the range, filtered by f.
func (s *LedgerService) Report(ctx context.Context, f ledger.Filter, period core.DateRange) (ledger.Report, error) {
	if err := f.Validate(); err != nil {
		return ledger.Report{}, err
	}
	entries, err := s.sources.Entries(ctx, period, selectionFor(f))
	if err != nil {
		return ledger.Report{}, fmt.Errorf("read entries: %w", err)
	}
	r, err := ledger.Compose(entries, period, f)
	if err != nil {
		return ledger.Report{}, err
	}
	logger(ctx, applog.ComponentLedger).DebugContext(ctx, "Composed prima nota",
		applog.NewFields().WithLedger(int(f.Type), len(r.Items)).WithOperation(applog.OpReport).ToSlice()...)
	return r, nil
}

// Print is Report laid out for printing.
func (s *LedgerService) Print(ctx context.Context, f ledger.Filter, period core.DateRange) (ledger.PrintLayout, error) {
	r, err := s.Report(ctx, f, period)
	if err != nil {
		return ledger.PrintLayout{}, err
	}
	return ledger.NewPrintLayout(r, s.now()), nil
}

func (s *LedgerService) currentFiscalYear() int {
	return core.FiscalYearOf(core.DateOf(s.now()))
}

// Stats builds the statistics report of the given type. A zero fy means the
// current season, falling back to the previous one when it has no income yet.
func (s *LedgerService) Stats(ctx context.Context, typ StatsType, fy int) (StatsResult, error) {
	fallback := fy == 0
	if fallback {
		fy = s.currentFiscalYear()
	}

	res := StatsResult{Type: typ, FiscalYear: fy}
	switch typ {
	case StatsMonthly:
		current, fy, err := s.seasonIncome(ctx, fy, fallback)
		if err != nil {
			return StatsResult{}, err
		}
		reference, err := s.yearIncome(ctx, fy-1)
		if err != nil {
			return StatsResult{}, err
		}
		report, err := stats.NewReport(current, reference, fy)
		if err != nil {
			return StatsResult{}, err
		}
		res.FiscalYear, res.Report = fy, &report

	case StatsActivities:
		current, fy, err := s.seasonIncome(ctx, fy, fallback)
		if err != nil {
			return StatsResult{}, err
		}
		l, err := ledger.Build(current, ledger.Filter{Type: ledger.TypeIncome})
		if err != nil {
			return StatsResult{}, err
		}
		names, err := s.activities.Activities(ctx)
		if err != nil {
			return StatsResult{}, fmt.Errorf("list activities: %w", err)
		}
		res.FiscalYear, res.Activities = fy, stats.ActivityStats(l, names)

	case StatsTrailing:
		now := s.now()
		entries, err := s.sources.Entries(ctx, stats.TrailingRange(now), adapters.Selection{Income: true})
		if err != nil {
			return StatsResult{}, fmt.Errorf("read entries: %w", err)
		}
		res.FiscalYear, res.Trailing = s.currentFiscalYear(), stats.TrailingTrend(entries, now)

	default:
		return StatsResult{}, &core.ValidationError{Field: "type", Msg: fmt.Sprintf("unknown statistics type %d", typ)}
	}

	logger(ctx, applog.ComponentStats).DebugContext(ctx, "Computed statistics",
		applog.FieldOperation, applog.OpStats,
		applog.FieldFiscalYear, res.FiscalYear,
		"stats_type", int(typ))
	return res, nil
}

// seasonIncome reads the income of fy, or of fy-1 when fallback is set and
// fy has none.
func (s *LedgerService) seasonIncome(ctx context.Context, fy int, fallback bool) ([]core.LedgerEntry, int, error) {
	entries, err := s.yearIncome(ctx, fy)
	if err != nil {
		return nil, 0, err
	}
	if !fallback || stats.HasIncome(entries, fy) {
		return entries, fy, nil
	}
	prev, err := s.yearIncome(ctx, fy-1)
	if err != nil {
		return nil, 0, err
	}
	return prev, fy - 1, nil
}

// yearIncome reads the income entries of one fiscal year. Closed years are
// served from the reference cache.
func (s *LedgerService) yearIncome(ctx context.Context, fy int) ([]core.LedgerEntry, error) {
	load := func() ([]core.LedgerEntry, error) {
		entries, err := s.sources.Entries(ctx, core.FiscalYearRange(fy), adapters.Selection{Income: true})
		if err != nil {
			return nil, fmt.Errorf("read fiscal year %d: %w", fy, err)
		}
		return entries, nil
	}
	if s.reference == nil || fy >= s.currentFiscalYear() {
		return load()
	}
	return s.reference.GetOrLoad(fy, load)
}
