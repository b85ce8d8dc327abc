package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"circolo/internal/adapters"
)

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Dialect selects the placeholder style of the generated statements.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Queries holds the statements shared by the SQL backends. Statements are
// written with "?" placeholders and rebound for Postgres.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX) *Queries {
	return &Queries{db: db, dialect: SQLite}
}

func NewWithDialect(db DBTX, d Dialect) *Queries {
	return &Queries{db: db, dialect: d}
}

func (q *Queries) WithTx(tx DBTX) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

func (q *Queries) rebind(query string) string {
	if q.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

const receiptColumns = `id, member_id, member_name, receipt_date, amount, payment_method, activity, description`

func scanReceipt(sc interface{ Scan(...any) error }) (adapters.ReceiptRow, error) {
	var r adapters.ReceiptRow
	err := sc.Scan(&r.ID, &r.MemberID, &r.MemberName, &r.Date, &r.Amount, &r.PaymentMethod, &r.Activity, &r.Description)
	return r, err
}

func collect[T any](rows *sql.Rows, scan func(interface{ Scan(...any) error }) (T, error)) ([]T, error) {
	defer func() { _ = rows.Close() }()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// isoWithin matches rows whose date column holds a zero-padded ISO date
// between two text bounds. Rows in any other layout always match, so they
// reach the parser; see adapters.MayFallWithin.
func isoWithin(col string) string {
	return `(NOT (substr(` + col + `, 5, 1) = '-' AND substr(` + col + `, 8, 1) = '-')
		OR substr(` + col + `, 1, 10) BETWEEN ? AND ?)`
}

// ListReceipts returns the receipts that were not annulled and may fall
// inside [lo, hi].
func (q *Queries) ListReceipts(ctx context.Context, lo, hi string) ([]adapters.ReceiptRow, error) {
	rows, err := q.query(ctx, `SELECT `+receiptColumns+` FROM receipts
		WHERE NOT annulled AND `+isoWithin("receipt_date")+` ORDER BY id`, lo, hi)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReceipt)
}

func (q *Queries) ListMemberReceipts(ctx context.Context, memberID int64) ([]adapters.ReceiptRow, error) {
	rows, err := q.query(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE member_id = ? AND NOT annulled ORDER BY id`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReceipt)
}

// GetReceipt returns sql.ErrNoRows for unknown and annulled receipts.
func (q *Queries) GetReceipt(ctx context.Context, id int64) (adapters.ReceiptRow, error) {
	return scanReceipt(q.queryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ? AND NOT annulled`, id))
}

func (q *Queries) ListExpenses(ctx context.Context, lo, hi string) ([]adapters.ExpenseRow, error) {
	rows, err := q.query(ctx, `SELECT id, expense_date, amount, payment_method, category, supplier, description, document_number
		FROM expenses WHERE active AND `+isoWithin("expense_date")+` ORDER BY id`, lo, hi)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc interface{ Scan(...any) error }) (adapters.ExpenseRow, error) {
		var r adapters.ExpenseRow
		err := sc.Scan(&r.ID, &r.Date, &r.Amount, &r.PaymentMethod, &r.Category, &r.Supplier, &r.Description, &r.DocumentNumber)
		return r, err
	})
}

func (q *Queries) ListThirdPartyReceipts(ctx context.Context, lo, hi string) ([]adapters.ThirdPartyRow, error) {
	rows, err := q.query(ctx, `SELECT id, receipt_date, entity, amount, payment_method, description
		FROM third_party_receipts WHERE `+isoWithin("receipt_date")+` ORDER BY id`, lo, hi)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc interface{ Scan(...any) error }) (adapters.ThirdPartyRow, error) {
		var r adapters.ThirdPartyRow
		err := sc.Scan(&r.ID, &r.Date, &r.Entity, &r.Amount, &r.PaymentMethod, &r.Description)
		return r, err
	})
}

// ListActivities returns the configured activities plus those named on receipts.
func (q *Queries) ListActivities(ctx context.Context) ([]string, error) {
	rows, err := q.query(ctx, `SELECT name FROM activities
		UNION SELECT DISTINCT activity FROM receipts WHERE activity <> ''
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc interface{ Scan(...any) error }) (string, error) {
		var s string
		err := sc.Scan(&s)
		return s, err
	})
}

// SubscriptionRow is a stored subscription with the time its number was set.
type SubscriptionRow struct {
	adapters.SubscriptionRow
	AssignedAt string
}

const subscriptionColumns = `id, member_id, season_id, membership_number, COALESCE(number_assigned_at, ''),
	active, last_name, first_name, created_at`

func scanSubscription(sc interface{ Scan(...any) error }) (SubscriptionRow, error) {
	var (
		r      SubscriptionRow
		number sql.NullString
	)
	err := sc.Scan(&r.ID, &r.MemberID, &r.SeasonID, &number, &r.AssignedAt,
		&r.Active, &r.LastName, &r.FirstName, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	if number.Valid {
		v := number.String
		r.Number = &v
	}
	return r, nil
}

// ListSubscriptions lists a season's subscriptions; seasonID 0 lists all.
func (q *Queries) ListSubscriptions(ctx context.Context, seasonID int64) ([]SubscriptionRow, error) {
	rows, err := q.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE (? = 0 OR season_id = ?) ORDER BY id`, seasonID, seasonID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSubscription)
}

func (q *Queries) GetSubscription(ctx context.Context, id int64) (SubscriptionRow, error) {
	return scanSubscription(q.queryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
}

func (q *Queries) ListSubscriptionsByNumber(ctx context.Context, number string) ([]SubscriptionRow, error) {
	rows, err := q.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE TRIM(membership_number) = ? ORDER BY id`, number)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSubscription)
}

// ListNumbered returns every subscription that holds a number.
func (q *Queries) ListNumbered(ctx context.Context) ([]SubscriptionRow, error) {
	rows, err := q.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE membership_number IS NOT NULL AND TRIM(membership_number) <> '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSubscription)
}

// SetNumber stores or clears a membership number and reports whether the
// subscription exists.
func (q *Queries) SetNumber(ctx context.Context, id int64, number *string, at string) (bool, error) {
	var v, ts any
	if number != nil {
		v, ts = *number, at
	}
	res, err := q.exec(ctx, `UPDATE subscriptions SET membership_number = ?, number_assigned_at = ? WHERE id = ?`, v, ts, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) InsertReceipt(ctx context.Context, r adapters.ReceiptRow) error {
	_, err := q.exec(ctx, `INSERT INTO receipts (`+receiptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.MemberID, r.MemberName, r.Date, r.Amount, r.PaymentMethod, r.Activity, r.Description)
	return err
}

func (q *Queries) InsertExpense(ctx context.Context, r adapters.ExpenseRow) error {
	_, err := q.exec(ctx, `INSERT INTO expenses (id, expense_date, amount, payment_method, category, supplier, description, document_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Date, r.Amount, r.PaymentMethod, r.Category, r.Supplier, r.Description, r.DocumentNumber)
	return err
}

func (q *Queries) InsertThirdPartyReceipt(ctx context.Context, r adapters.ThirdPartyRow) error {
	_, err := q.exec(ctx, `INSERT INTO third_party_receipts (id, receipt_date, entity, amount, payment_method, description)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Date, r.Entity, r.Amount, r.PaymentMethod, r.Description)
	return err
}

func (q *Queries) InsertSubscription(ctx context.Context, r adapters.SubscriptionRow) error {
	var number any
	if r.Number != nil {
		number = *r.Number
	}
	_, err := q.exec(ctx, `INSERT INTO subscriptions (id, member_id, season_id, membership_number, active, last_name, first_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.MemberID, r.SeasonID, number, r.Active, r.LastName, r.FirstName, r.CreatedAt)
	return err
}

func (q *Queries) InsertActivity(ctx context.Context, name string) error {
	_, err := q.exec(ctx, `INSERT INTO activities (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

func (q *Queries) AnnulReceipt(ctx context.Context, id int64) (bool, error) {
	res, err := q.exec(ctx, `UPDATE receipts SET annulled = ? WHERE id = ? AND NOT annulled`, true, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
