package sequence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"circolo/internal/core"
)

// DefaultFloor is the first number handed out when none exist.
const DefaultFloor int64 = 1000

// MaxNumberLength is the longest well-formed membership number.
const MaxNumberLength = 10

type Allocator struct {
	store Store
	floor int64
	now   func() time.Time
}

func NewAllocator(store Store, floor int64) *Allocator {
	if floor <= 0 {
		floor = DefaultFloor
	}
	return &Allocator{store: store, floor: floor, now: time.Now}
}

func (a *Allocator) Floor() int64 { return a.floor }

// IsWellFormed reports whether v is a plain positive integer of at most
// MaxNumberLength digits.
func IsWellFormed(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > MaxNumberLength {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NextNumber returns max+1 over the well-formed values, never less than floor.
// Malformed values are ignored.
func NextNumber(existing []string, floor int64) int64 {
	next := floor
	for _, v := range existing {
		if !IsWellFormed(v) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next
}

func values(nums []core.MembershipNumber) []string {
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = n.Value
	}
	return out
}

// AllocateNext assigns the next free number to a subscription that has none.
func (a *Allocator) AllocateNext(ctx context.Context, subscriptionID int64) (core.MembershipNumber, error) {
	var assigned core.MembershipNumber
	err := a.store.WithNumberingLock(ctx, func(tx NumberingTx) error {
		sub, err := tx.Subscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.HasNumber() {
			return &core.ValidationError{
				Field: "subscriptionId",
				Msg:   fmt.Sprintf("subscription %d already has membership number %s", sub.ID, sub.NumberValue()),
			}
		}
		nums, err := tx.Numbers(ctx)
		if err != nil {
			return fmt.Errorf("scan membership numbers: %w", err)
		}
		v := strconv.FormatInt(NextNumber(values(nums), a.floor), 10)
		at := a.now()
		if err := tx.SetNumber(ctx, subscriptionID, &v, at); err != nil {
			return fmt.Errorf("assign membership number: %w", err)
		}
		assigned = core.MembershipNumber{Value: v, SubscriptionID: subscriptionID, AssignedAt: at}
		return nil
	})
	if err != nil {
		return core.MembershipNumber{}, err
	}
	return assigned, nil
}

// Reassign sets a specific number. A number held by another subscription is a
// *core.ConflictError unless allowDuplicate is set; tolerated duplicates are
// reported by AuditDuplicates.
func (a *Allocator) Reassign(ctx context.Context, subscriptionID int64, number string, allowDuplicate bool) (core.MembershipNumber, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return core.MembershipNumber{}, &core.ValidationError{Field: "number", Msg: core.ErrEmptyNumber.Error()}
	}
	var assigned core.MembershipNumber
	err := a.store.WithNumberingLock(ctx, func(tx NumberingTx) error {
		if _, err := tx.Subscription(ctx, subscriptionID); err != nil {
			return err
		}
		holders, err := tx.HoldersOf(ctx, number)
		if err != nil {
			return fmt.Errorf("check membership number: %w", err)
		}
		for _, h := range holders {
			if h != subscriptionID && !allowDuplicate {
				return &core.ConflictError{Number: number, HolderID: h}
			}
		}
		at := a.now()
		if err := tx.SetNumber(ctx, subscriptionID, &number, at); err != nil {
			return fmt.Errorf("reassign membership number: %w", err)
		}
		assigned = core.MembershipNumber{Value: number, SubscriptionID: subscriptionID, AssignedAt: at}
		return nil
	})
	if err != nil {
		return core.MembershipNumber{}, err
	}
	return assigned, nil
}

// Clear removes the number from a subscription. The freed value is not
// handed out again unless it was the maximum.
func (a *Allocator) Clear(ctx context.Context, subscriptionID int64) error {
	err := a.store.WithNumberingLock(ctx, func(tx NumberingTx) error {
		if _, err := tx.Subscription(ctx, subscriptionID); err != nil {
			return err
		}
		if err := tx.SetNumber(ctx, subscriptionID, nil, a.now()); err != nil {
			return fmt.Errorf("clear membership number: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// InitializeSeason numbers every active subscription of the season that has
// no number yet, oldest first, continuing from the current maximum.
func (a *Allocator) InitializeSeason(ctx context.Context, seasonID int64) ([]core.MembershipNumber, error) {
	var assigned []core.MembershipNumber
	err := a.store.WithNumberingLock(ctx, func(tx NumberingTx) error {
		nums, err := tx.Numbers(ctx)
		if err != nil {
			return fmt.Errorf("scan membership numbers: %w", err)
		}
		subs, err := tx.Subscriptions(ctx, seasonID)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		pending := make([]core.Subscription, 0, len(subs))
		for _, s := range subs {
			if s.Active && !s.HasNumber() {
				pending = append(pending, s)
			}
		}
		sort.SliceStable(pending, func(i, j int) bool {
			x, y := pending[i], pending[j]
			if !x.CreatedAt.Equal(y.CreatedAt) {
				return x.CreatedAt.Before(y.CreatedAt)
			}
			if x.LastName != y.LastName {
				return x.LastName < y.LastName
			}
			if x.FirstName != y.FirstName {
				return x.FirstName < y.FirstName
			}
			return x.ID < y.ID
		})

		next := NextNumber(values(nums), a.floor)
		at := a.now()
		for _, s := range pending {
			v := strconv.FormatInt(next, 10)
			if err := tx.SetNumber(ctx, s.ID, &v, at); err != nil {
				return fmt.Errorf("assign membership number to subscription %d: %w", s.ID, err)
			}
			assigned = append(assigned, core.MembershipNumber{Value: v, SubscriptionID: s.ID, AssignedAt: at})
			next++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// Lookup returns the subscriptions holding number.
func (a *Allocator) Lookup(ctx context.Context, number string) ([]core.Subscription, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, &core.ValidationError{Field: "number", Msg: core.ErrEmptyNumber.Error()}
	}
	subs, err := a.store.SubscriptionsByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("lookup membership number: %w", err)
	}
	if len(subs) == 0 {
		return nil, &core.NotFoundError{Entity: "membership number", ID: number}
	}
	return subs, nil
}

// Audit runs the three read-only checks over the season's subscriptions.
func (a *Allocator) Audit(ctx context.Context, seasonID int64) (AuditReport, error) {
	subs, err := a.store.Subscriptions(ctx, seasonID)
	if err != nil {
		return AuditReport{}, fmt.Errorf("list subscriptions: %w", err)
	}
	return RunAudit(subs, seasonID), nil
}
