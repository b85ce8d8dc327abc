package sequence

import (
	"sort"
	"strconv"
	"strings"

	"circolo/internal/core"
)

// Duplicate is a number held by more than one active subscription.
type Duplicate struct {
	Number          string  `json:"number"`
	SubscriptionIDs []int64 `json:"subscriptionIds"`
}

type AuditReport struct {
	SeasonID   int64       `json:"seasonId"`
	Duplicates []Duplicate `json:"duplicates"`
	Missing    []int64     `json:"missing"`
	Malformed  []int64     `json:"malformed"`
}

// Clean reports whether no check found anything.
func (r AuditReport) Clean() bool {
	return len(r.Duplicates) == 0 && len(r.Missing) == 0 && len(r.Malformed) == 0
}

// RunAudit runs all three checks. None of them modifies subs.
func RunAudit(subs []core.Subscription, seasonID int64) AuditReport {
	return AuditReport{
		SeasonID:   seasonID,
		Duplicates: AuditDuplicates(subs),
		Missing:    AuditMissing(subs, seasonID),
		Malformed:  AuditMalformed(subs),
	}
}

// AuditDuplicates groups active subscriptions by number and returns the
// numbers held more than once, in numeric order.
func AuditDuplicates(subs []core.Subscription) []Duplicate {
	holders := map[string][]int64{}
	for _, s := range subs {
		if !s.Active || !s.HasNumber() {
			continue
		}
		n := strings.TrimSpace(s.NumberValue())
		holders[n] = append(holders[n], s.ID)
	}
	out := []Duplicate{}
	for n, ids := range holders {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out = append(out, Duplicate{Number: n, SubscriptionIDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return numberLess(out[i].Number, out[j].Number) })
	return out
}

// AuditMissing returns the active subscriptions of the season with no number,
// ordered by member name. seasonID 0 matches every season.
func AuditMissing(subs []core.Subscription, seasonID int64) []int64 {
	var missing []core.Subscription
	for _, s := range subs {
		if !s.Active || s.HasNumber() {
			continue
		}
		if seasonID != 0 && s.SeasonID != seasonID {
			continue
		}
		missing = append(missing, s)
	}
	sort.SliceStable(missing, func(i, j int) bool {
		x, y := missing[i], missing[j]
		if x.LastName != y.LastName {
			return x.LastName < y.LastName
		}
		if x.FirstName != y.FirstName {
			return x.FirstName < y.FirstName
		}
		return x.ID < y.ID
	})
	return ids(missing)
}

// AuditMalformed returns active subscriptions whose number is not a plain
// integer or is longer than MaxNumberLength.
func AuditMalformed(subs []core.Subscription) []int64 {
	var bad []core.Subscription
	for _, s := range subs {
		if s.Active && s.HasNumber() && !IsWellFormed(s.NumberValue()) {
			bad = append(bad, s)
		}
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i].ID < bad[j].ID })
	return ids(bad)
}

func ids(subs []core.Subscription) []int64 {
	out := make([]int64, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

// numberLess orders well-formed numbers numerically and puts anything else after them.
func numberLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
