// Package memory is an in-process backend used for development, demos and tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"circolo/internal/adapters"
	"circolo/internal/core"
	"circolo/internal/sequence"
)

type Store struct {
	mu         sync.Mutex
	receipts   []adapters.ReceiptRow
	expenses   []adapters.ExpenseRow
	thirdParty []adapters.ThirdPartyRow
	subs       map[int64]*core.Subscription
	assignedAt map[int64]time.Time
	activities []string
}

func New() *Store {
	return &Store{
		subs:       make(map[int64]*core.Subscription),
		assignedAt: make(map[int64]time.Time),
	}
}

// NewFromFile loads a seed file. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	seed, ok, err := adapters.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s, nil
	}
	if err := s.Load(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load adds the rows of a seed. Subscriptions are normalized on the way in.
func (s *Store) Load(seed adapters.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, seed.Receipts...)
	s.expenses = append(s.expenses, seed.Expenses...)
	s.thirdParty = append(s.thirdParty, seed.ThirdParty...)
	for _, row := range seed.Subscriptions {
		sub, err := adapters.NormalizeSubscription(row)
		if err != nil {
			return err
		}
		s.subs[sub.ID] = &sub
	}
	s.activities = dedupe(append(s.activities, seed.Activities...))
	return nil
}

func (s *Store) AddReceipt(r adapters.ReceiptRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
}

func (s *Store) AddExpense(r adapters.ExpenseRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, r)
}

func (s *Store) AddThirdParty(r adapters.ThirdPartyRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thirdParty = append(s.thirdParty, r)
}

func (s *Store) AddSubscription(sub core.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := sub
	if sub.Number != nil {
		v := *sub.Number
		c.Number = &v
	}
	s.subs[sub.ID] = &c
}

// AnnulReceipt removes a receipt. Ranks of later receipts shift on the next read.
func (s *Store) AnnulReceipt(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.receipts {
		if r.ID == id {
			s.receipts = append(s.receipts[:i], s.receipts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ReceiptRows(_ context.Context, rng core.DateRange) ([]adapters.ReceiptRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []adapters.ReceiptRow
	for _, row := range s.receipts {
		if adapters.MayFallWithin(row.Date, rng) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) ExpenseRows(_ context.Context, rng core.DateRange) ([]adapters.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []adapters.ExpenseRow
	for _, row := range s.expenses {
		if adapters.MayFallWithin(row.Date, rng) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) ThirdPartyRows(_ context.Context, rng core.DateRange) ([]adapters.ThirdPartyRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []adapters.ThirdPartyRow
	for _, row := range s.thirdParty {
		if adapters.MayFallWithin(row.Date, rng) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Activities returns the known activity names, including those seen on receipts.
func (s *Store) Activities(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := append([]string(nil), s.activities...)
	for _, r := range s.receipts {
		names = append(names, r.Activity)
	}
	out := dedupe(names)
	sort.Strings(out)
	return out, nil
}

func (s *Store) Receipt(_ context.Context, id int64) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.ID == id {
			return adapters.ToReceipt(r)
		}
	}
	return core.Receipt{}, &core.NotFoundError{Entity: "receipt", ID: strconv.FormatInt(id, 10)}
}

func (s *Store) MemberReceipts(_ context.Context, memberID int64, rng core.DateRange) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Receipt
	for _, row := range s.receipts {
		if row.MemberID != memberID {
			continue
		}
		r, err := adapters.ToReceipt(row)
		if err != nil {
			return nil, err
		}
		if rng.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Subscriptions(_ context.Context, seasonID int64) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(seasonID), nil
}

func (s *Store) SubscriptionsByNumber(_ context.Context, number string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subscription
	for _, sub := range s.listLocked(0) {
		if sub.HasNumber() && strings.TrimSpace(*sub.Number) == number {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) listLocked(seasonID int64) []core.Subscription {
	out := make([]core.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if seasonID != 0 && sub.SeasonID != seasonID {
			continue
		}
		c := *sub
		if sub.Number != nil {
			v := *sub.Number
			c.Number = &v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithNumberingLock holds the store mutex for the whole of fn. Writes are
// staged and applied only when fn succeeds.
func (s *Store) WithNumberingLock(ctx context.Context, fn func(tx sequence.NumberingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &numberingTx{store: s, staged: map[int64]stagedNumber{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, st := range tx.staged {
		s.subs[id].Number = st.number
		s.assignedAt[id] = st.at
	}
	return nil
}

type stagedNumber struct {
	number *string
	at     time.Time
}

type numberingTx struct {
	store  *Store
	staged map[int64]stagedNumber
}

func (tx *numberingTx) current() []core.Subscription {
	subs := tx.store.listLocked(0)
	for i := range subs {
		if st, ok := tx.staged[subs[i].ID]; ok {
			subs[i].Number = st.number
		}
	}
	return subs
}

func (tx *numberingTx) Numbers(context.Context) ([]core.MembershipNumber, error) {
	var out []core.MembershipNumber
	for _, sub := range tx.current() {
		if sub.HasNumber() {
			out = append(out, core.MembershipNumber{
				Value:          *sub.Number,
				SubscriptionID: sub.ID,
				AssignedAt:     tx.store.assignedAt[sub.ID],
			})
		}
	}
	return out, nil
}

func (tx *numberingTx) Subscription(_ context.Context, id int64) (core.Subscription, error) {
	for _, sub := range tx.current() {
		if sub.ID == id {
			return sub, nil
		}
	}
	return core.Subscription{}, &core.NotFoundError{Entity: "subscription", ID: strconv.FormatInt(id, 10)}
}

func (tx *numberingTx) Subscriptions(_ context.Context, seasonID int64) ([]core.Subscription, error) {
	var out []core.Subscription
	for _, sub := range tx.current() {
		if seasonID == 0 || sub.SeasonID == seasonID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (tx *numberingTx) HoldersOf(_ context.Context, number string) ([]int64, error) {
	var out []int64
	for _, sub := range tx.current() {
		if sub.HasNumber() && strings.TrimSpace(*sub.Number) == number {
			out = append(out, sub.ID)
		}
	}
	return out, nil
}

func (tx *numberingTx) SetNumber(_ context.Context, id int64, number *string, at time.Time) error {
	if _, ok := tx.store.subs[id]; !ok {
		return &core.NotFoundError{Entity: "subscription", ID: strconv.FormatInt(id, 10)}
	}
	var v *string
	if number != nil {
		c := *number
		v = &c
	}
	tx.staged[id] = stagedNumber{number: v, at: at}
	return nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
