package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"circolo/internal/core"
)

// Row sources implemented by the storage backends. Implementations may
// pre-filter by range; rows outside it are dropped after normalization anyway.
type (
	ReceiptSource interface {
		ReceiptRows(ctx context.Context, r core.DateRange) ([]ReceiptRow, error)
	}

	ExpenseSource interface {
		ExpenseRows(ctx context.Context, r core.DateRange) ([]ExpenseRow, error)
	}

	ThirdPartySource interface {
		ThirdPartyRows(ctx context.Context, r core.DateRange) ([]ThirdPartyRow, error)
	}

	RowSource interface {
		ReceiptSource
		ExpenseSource
		ThirdPartySource
	}
)

// Selection says which tables a request needs.
type Selection struct {
	Income   bool
	Expenses bool
}

var SelectAll = Selection{Income: true, Expenses: true}

// Sources reads the three row sources and normalizes their rows.
type Sources struct {
	rows    RowSource
	timeout time.Duration
}

// NewSources wraps a row source. A zero timeout leaves deadlines to the caller.
func NewSources(rows RowSource, timeout time.Duration) *Sources {
	return &Sources{rows: rows, timeout: timeout}
}

// Entries reads the selected sources concurrently. Any read or parse failure
// cancels the other reads and fails the whole call: a ledger missing one
// source would misstate every balance after the gap.
func (s *Sources) Entries(ctx context.Context, r core.DateRange, sel Selection) ([]core.LedgerEntry, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var receipts, expenses, thirdParty []core.LedgerEntry
	g, gctx := errgroup.WithContext(ctx)

	if sel.Income {
		g.Go(func() error {
			rows, err := s.rows.ReceiptRows(gctx, r)
			if err != nil {
				return fmt.Errorf("read receipts: %w", err)
			}
			receipts, err = normalizeAll(rows, NormalizeReceipt, r)
			return err
		})
		g.Go(func() error {
			rows, err := s.rows.ThirdPartyRows(gctx, r)
			if err != nil {
				return fmt.Errorf("read third-party receipts: %w", err)
			}
			thirdParty, err = normalizeAll(rows, NormalizeThirdParty, r)
			return err
		})
	}
	if sel.Expenses {
		g.Go(func() error {
			rows, err := s.rows.ExpenseRows(gctx, r)
			if err != nil {
				return fmt.Errorf("read expenses: %w", err)
			}
			expenses, err = normalizeAll(rows, NormalizeExpense, r)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Failed to read ledger sources", "error", err,
			"start", r.Start.ISO(), "end", r.End.ISO())
		return nil, err
	}

	out := make([]core.LedgerEntry, 0, len(receipts)+len(expenses)+len(thirdParty))
	out = append(out, receipts...)
	out = append(out, expenses...)
	out = append(out, thirdParty...)
	return out, nil
}

func normalizeAll[T any](rows []T, fn func(T) (core.LedgerEntry, error), r core.DateRange) ([]core.LedgerEntry, error) {
	out := make([]core.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		e, err := fn(row)
		if err != nil {
			return nil, err
		}
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}
