// Package sequence allocates and audits membership card numbers and computes
// per-season receipt numbers.
//
// Card numbers are the only durable state. Every write goes through
// Store.WithNumberingLock, which holds the namespace exclusively from the scan
// of existing numbers to the final write.
package sequence

import (
	"context"
	"time"

	"circolo/internal/core"
)

// NumberingTx is the view of the store available while the numbering lock is held.
type NumberingTx interface {
	// Numbers returns every assigned membership number.
	Numbers(ctx context.Context) ([]core.MembershipNumber, error)
	// Subscription returns a *core.NotFoundError when id does not exist.
	Subscription(ctx context.Context, id int64) (core.Subscription, error)
	// Subscriptions lists the subscriptions of a season, or all when seasonID is 0.
	Subscriptions(ctx context.Context, seasonID int64) ([]core.Subscription, error)
	// HoldersOf returns the ids of subscriptions holding number.
	HoldersOf(ctx context.Context, number string) ([]int64, error)
	// SetNumber stores number on the subscription; nil clears it.
	SetNumber(ctx context.Context, id int64, number *string, at time.Time) error
}

// Store is implemented by the storage backends.
type Store interface {
	// WithNumberingLock runs fn with exclusive access to the membership number
	// namespace. fn's writes are committed only if it returns nil.
	WithNumberingLock(ctx context.Context, fn func(tx NumberingTx) error) error

	Subscriptions(ctx context.Context, seasonID int64) ([]core.Subscription, error)
	SubscriptionsByNumber(ctx context.Context, number string) ([]core.Subscription, error)
}

// ReceiptReader provides the rows receipt ranking works on.
type ReceiptReader interface {
	// Receipt returns a *core.NotFoundError when id does not exist or was annulled.
	Receipt(ctx context.Context, id int64) (core.Receipt, error)
	// MemberReceipts returns the live receipts of a member inside a date range.
	MemberReceipts(ctx context.Context, memberID int64, r core.DateRange) ([]core.Receipt, error)
}

// ReceiptStore adds annulment to ReceiptReader.
type ReceiptStore interface {
	ReceiptReader
	// AnnulReceipt reports whether a live receipt with id was found.
	AnnulReceipt(ctx context.Context, id int64) (bool, error)
}
