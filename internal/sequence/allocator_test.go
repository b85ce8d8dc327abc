package sequence_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circolo/internal/core"
	"circolo/internal/sequence"
	"circolo/internal/storage/memory"
)

func strp(s string) *string { return &s }

func newStore(subs ...core.Subscription) *memory.Store {
	s := memory.New()
	for _, sub := range subs {
		s.AddSubscription(sub)
	}
	return s
}

func active(id, season int64, number *string) core.Subscription {
	return core.Subscription{ID: id, SeasonID: season, Active: true, Number: number}
}

func TestNextNumber(t *testing.T) {
	cases := []struct {
		name     string
		existing []string
		floor    int64
		want     int64
	}{
		{"empty starts at floor", nil, 1000, 1000},
		{"max plus one", []string{"1000", "1004", "1002"}, 1000, 1005},
		{"non-numeric ignored", []string{"1001", "A12", "2024/0001", " "}, 1000, 1002},
		{"too long ignored", []string{"12345678901"}, 1000, 1000},
		{"never below floor", []string{"5"}, 1000, 1000},
		{"padded values parse", []string{"0001500"}, 1000, 1501},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sequence.NextNumber(tc.existing, tc.floor))
		})
	}
}

func TestAllocateNext(t *testing.T) {
	store := newStore(active(1, 1, nil), active(2, 1, strp("1007")), active(3, 1, nil))
	a := sequence.NewAllocator(store, 1000)
	ctx := context.Background()

	n, err := a.AllocateNext(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1008", n.Value)
	assert.Equal(t, int64(1), n.SubscriptionID)
	assert.False(t, n.AssignedAt.IsZero())

	n, err = a.AllocateNext(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "1009", n.Value)
}

func TestAllocateNextErrors(t *testing.T) {
	store := newStore(active(1, 1, strp("1000")))
	a := sequence.NewAllocator(store, 0)
	assert.Equal(t, sequence.DefaultFloor, a.Floor())
	ctx := context.Background()

	_, err := a.AllocateNext(ctx, 99)
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)

	_, err = a.AllocateNext(ctx, 1)
	var ve *core.ValidationError
	assert.True(t, errors.As(err, &ve), "got %v", err)
}

func TestAllocateNextConcurrent(t *testing.T) {
	const n = 50
	var subs []core.Subscription
	for i := 1; i <= n; i++ {
		subs = append(subs, active(int64(i), 1, nil))
	}
	subs = append(subs, active(n+1, 1, strp("1200")))
	store := newStore(subs...)
	a := sequence.NewAllocator(store, 1000)

	var wg sync.WaitGroup
	results := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := a.AllocateNext(context.Background(), int64(i+1))
			errs[i] = err
			results[i], _ = strconv.ParseInt(got.Value, 10, 64)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		assert.Equal(t, int64(1201+i), v, "allocation %d", i)
	}

	all, _ := store.Subscriptions(context.Background(), 1)
	assert.Empty(t, sequence.AuditDuplicates(all))
}

func TestReassign(t *testing.T) {
	store := newStore(active(1, 1, strp("1000")), active(2, 1, strp("1001")))
	a := sequence.NewAllocator(store, 1000)
	ctx := context.Background()

	_, err := a.Reassign(ctx, 2, "1000", false)
	var ce *core.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, int64(1), ce.HolderID)

	subs, _ := store.Subscriptions(ctx, 1)
	assert.Equal(t, "1001", subs[1].NumberValue(), "failed reassign must not write")

	n, err := a.Reassign(ctx, 2, "1000", true)
	require.NoError(t, err)
	assert.Equal(t, "1000", n.Value)
	subs, _ = store.Subscriptions(ctx, 1)
	dups := sequence.AuditDuplicates(subs)
	require.Len(t, dups, 1)
	assert.Equal(t, []int64{1, 2}, dups[0].SubscriptionIDs)

	_, err = a.Reassign(ctx, 1, "1000", false)
	assert.Error(t, err, "still conflicts with subscription 2")

	n, err = a.Reassign(ctx, 1, " 1500 ", false)
	require.NoError(t, err)
	assert.Equal(t, "1500", n.Value)

	_, err = a.Reassign(ctx, 1, "   ", false)
	var ve *core.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = a.Reassign(ctx, 42, "2000", false)
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestReassignSameNumberOnSameSubscription(t *testing.T) {
	store := newStore(active(1, 1, strp("1000")))
	a := sequence.NewAllocator(store, 1000)
	_, err := a.Reassign(context.Background(), 1, "1000", false)
	assert.NoError(t, err)
}

func TestClearDoesNotReuse(t *testing.T) {
	store := newStore(active(1, 1, nil), active(2, 1, nil), active(3, 1, nil))
	a := sequence.NewAllocator(store, 1000)
	ctx := context.Background()

	_, err := a.AllocateNext(ctx, 1) // 1000
	require.NoError(t, err)
	_, err = a.AllocateNext(ctx, 2) // 1001
	require.NoError(t, err)

	require.NoError(t, a.Clear(ctx, 1))
	n, err := a.AllocateNext(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "1002", n.Value, "cleared 1000 is not handed out again")

	subs, _ := store.Subscriptions(ctx, 1)
	assert.False(t, subs[0].HasNumber())

	var nf *core.NotFoundError
	assert.True(t, errors.As(a.Clear(ctx, 77), &nf))
}

func TestInitializeSeason(t *testing.T) {
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	store := newStore(
		core.Subscription{ID: 1, SeasonID: 2, Active: true, LastName: "Verdi", CreatedAt: base.Add(time.Hour)},
		core.Subscription{ID: 2, SeasonID: 2, Active: true, LastName: "Bianchi", CreatedAt: base.Add(time.Hour)},
		core.Subscription{ID: 3, SeasonID: 2, Active: true, LastName: "Rossi", CreatedAt: base},
		core.Subscription{ID: 4, SeasonID: 2, Active: true, Number: strp("1010")},
		core.Subscription{ID: 5, SeasonID: 2, Active: false},
		core.Subscription{ID: 6, SeasonID: 1, Active: true},
	)
	a := sequence.NewAllocator(store, 1000)
	ctx := context.Background()

	got, err := a.InitializeSeason(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{got[0].SubscriptionID, got[1].SubscriptionID, got[2].SubscriptionID})
	assert.Equal(t, []string{"1011", "1012", "1013"}, []string{got[0].Value, got[1].Value, got[2].Value})

	again, err := a.InitializeSeason(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, again)

	report, err := a.Audit(ctx, 2)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
}

func TestLookup(t *testing.T) {
	store := newStore(active(1, 1, strp("1000")), active(2, 1, strp("1001")))
	a := sequence.NewAllocator(store, 1000)
	ctx := context.Background()

	subs, err := a.Lookup(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(2), subs[0].ID)

	_, err = a.Lookup(ctx, "9999")
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
