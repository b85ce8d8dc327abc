package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"circolo/internal/adapters"
	"circolo/internal/core"
	"circolo/internal/sequence"
)

// Reader implements the read side of a SQL backend on top of Queries.
// Zero-padded ISO dates are range-filtered in SQL. Rows in legacy layouts
// are always returned and filtered after normalization, so a malformed
// legacy date fails any request that reads its table.
type Reader struct {
	q *Queries
}

func NewReader(q *Queries) *Reader {
	return &Reader{q: q}
}

func (r *Reader) ReceiptRows(ctx context.Context, rng core.DateRange) ([]adapters.ReceiptRow, error) {
	lo, hi := rng.ISOBounds()
	rows, err := r.q.ListReceipts(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return rows, nil
}

func (r *Reader) ExpenseRows(ctx context.Context, rng core.DateRange) ([]adapters.ExpenseRow, error) {
	lo, hi := rng.ISOBounds()
	rows, err := r.q.ListExpenses(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return rows, nil
}

func (r *Reader) ThirdPartyRows(ctx context.Context, rng core.DateRange) ([]adapters.ThirdPartyRow, error) {
	lo, hi := rng.ISOBounds()
	rows, err := r.q.ListThirdPartyReceipts(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list third-party receipts: %w", err)
	}
	return rows, nil
}

func (r *Reader) Activities(ctx context.Context) ([]string, error) {
	names, err := r.q.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return names, nil
}

func (r *Reader) Receipt(ctx context.Context, id int64) (core.Receipt, error) {
	row, err := r.q.GetReceipt(ctx, id)
	if isNoRows(err) {
		return core.Receipt{}, &core.NotFoundError{Entity: "receipt", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return adapters.ToReceipt(row)
}

func (r *Reader) MemberReceipts(ctx context.Context, memberID int64, rng core.DateRange) ([]core.Receipt, error) {
	rows, err := r.q.ListMemberReceipts(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list member receipts: %w", err)
	}
	out := make([]core.Receipt, 0, len(rows))
	for _, row := range rows {
		rec, err := adapters.ToReceipt(row)
		if err != nil {
			return nil, err
		}
		if rng.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Reader) Subscriptions(ctx context.Context, seasonID int64) ([]core.Subscription, error) {
	rows, err := r.q.ListSubscriptions(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return normalizeSubscriptions(rows)
}

func (r *Reader) SubscriptionsByNumber(ctx context.Context, number string) ([]core.Subscription, error) {
	rows, err := r.q.ListSubscriptionsByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by number: %w", err)
	}
	return normalizeSubscriptions(rows)
}

func normalizeSubscriptions(rows []SubscriptionRow) ([]core.Subscription, error) {
	out := make([]core.Subscription, 0, len(rows))
	for _, row := range rows {
		s, err := adapters.NormalizeSubscription(row.SubscriptionRow)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Import writes a seed through q. Rows whose id already exists are left alone.
func Import(ctx context.Context, q *Queries, seed adapters.Seed) error {
	for _, row := range seed.Subscriptions {
		if row.ID == 0 {
			return &core.ValidationError{Field: "abbonamenti.id", Msg: "subscription without id"}
		}
		if err := q.InsertSubscription(ctx, row); err != nil {
			return fmt.Errorf("insert subscription %d: %w", row.ID, err)
		}
	}
	for _, row := range seed.Receipts {
		if row.ID == 0 {
			return &core.ValidationError{Field: "ricevute.id", Msg: "receipt without id"}
		}
		if err := q.InsertReceipt(ctx, row); err != nil {
			return fmt.Errorf("insert receipt %d: %w", row.ID, err)
		}
	}
	for _, row := range seed.Expenses {
		if row.ID == 0 {
			return &core.ValidationError{Field: "spese.id", Msg: "expense without id"}
		}
		if err := q.InsertExpense(ctx, row); err != nil {
			return fmt.Errorf("insert expense %d: %w", row.ID, err)
		}
	}
	for _, row := range seed.ThirdParty {
		if row.ID == 0 {
			return &core.ValidationError{Field: "ricevuteEnti.id", Msg: "third-party receipt without id"}
		}
		if err := q.InsertThirdPartyReceipt(ctx, row); err != nil {
			return fmt.Errorf("insert third-party receipt %d: %w", row.ID, err)
		}
	}
	for _, name := range seed.Activities {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		if err := q.InsertActivity(ctx, name); err != nil {
			return fmt.Errorf("insert activity %q: %w", name, err)
		}
	}
	return nil
}

// NumberingTx adapts Queries bound to an open transaction to sequence.NumberingTx.
type NumberingTx struct {
	q *Queries
}

var _ sequence.NumberingTx = (*NumberingTx)(nil)

func NewNumberingTx(q *Queries) *NumberingTx {
	return &NumberingTx{q: q}
}

func (tx *NumberingTx) Numbers(ctx context.Context) ([]core.MembershipNumber, error) {
	rows, err := tx.q.ListNumbered(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.MembershipNumber, 0, len(rows))
	for _, row := range rows {
		n := core.MembershipNumber{Value: strings.TrimSpace(*row.Number), SubscriptionID: row.ID}
		if row.AssignedAt != "" {
			n.AssignedAt, _ = time.Parse(time.RFC3339Nano, row.AssignedAt)
		}
		out = append(out, n)
	}
	return out, nil
}

func (tx *NumberingTx) Subscription(ctx context.Context, id int64) (core.Subscription, error) {
	row, err := tx.q.GetSubscription(ctx, id)
	if isNoRows(err) {
		return core.Subscription{}, &core.NotFoundError{Entity: "subscription", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return core.Subscription{}, err
	}
	return adapters.NormalizeSubscription(row.SubscriptionRow)
}

func (tx *NumberingTx) Subscriptions(ctx context.Context, seasonID int64) ([]core.Subscription, error) {
	rows, err := tx.q.ListSubscriptions(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	return normalizeSubscriptions(rows)
}

func (tx *NumberingTx) HoldersOf(ctx context.Context, number string) ([]int64, error) {
	rows, err := tx.q.ListSubscriptionsByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (tx *NumberingTx) SetNumber(ctx context.Context, id int64, number *string, at time.Time) error {
	ok, err := tx.q.SetNumber(ctx, id, number, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if !ok {
		return &core.NotFoundError{Entity: "subscription", ID: strconv.FormatInt(id, 10)}
	}
	return nil
}
