package sequence

import (
	"reflect"
	"testing"

	"circolo/internal/core"
)

func sub(id, season int64, number string, active bool) core.Subscription {
	s := core.Subscription{ID: id, SeasonID: season, Active: active}
	if number != "" {
		s.Number = &number
	}
	return s
}

func TestAuditDuplicates(t *testing.T) {
	subs := []core.Subscription{
		sub(2, 1, "101", true),
		sub(1, 1, "101", true),
		sub(3, 1, "102", true),
	}
	got := AuditDuplicates(subs)
	want := []Duplicate{{Number: "101", SubscriptionIDs: []int64{1, 2}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestAuditDuplicatesOrderAndInactive(t *testing.T) {
	subs := []core.Subscription{
		sub(1, 1, "900", true), sub(2, 1, "900", true),
		sub(3, 1, "80", true), sub(4, 1, "80", true),
		sub(5, 1, "X1", true), sub(6, 1, "X1", true),
		sub(7, 1, "70", true), sub(8, 1, "70", false),
	}
	got := AuditDuplicates(subs)
	if len(got) != 3 || got[0].Number != "80" || got[1].Number != "900" || got[2].Number != "X1" {
		t.Fatalf("unexpected duplicates %+v", got)
	}
}

func TestAuditMissing(t *testing.T) {
	subs := []core.Subscription{
		{ID: 1, SeasonID: 2, Active: true, LastName: "Verdi"},
		{ID: 2, SeasonID: 2, Active: true, LastName: "Bianchi"},
		{ID: 3, SeasonID: 1, Active: true},
		{ID: 4, SeasonID: 2, Active: false},
		sub(5, 2, "1000", true),
		sub(6, 2, "  ", true),
	}
	got := AuditMissing(subs, 2)
	want := []int64{6, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if all := AuditMissing(subs, 0); len(all) != 4 {
		t.Fatalf("expected 4 missing across seasons, got %v", all)
	}
}

func TestAuditMalformed(t *testing.T) {
	subs := []core.Subscription{
		sub(1, 1, "1000", true),
		sub(2, 1, "A-12", true),
		sub(3, 1, "12345678901", true),
		sub(4, 1, "2024/0001", true),
		sub(5, 1, "abc", false),
		sub(6, 1, "1234567890", true),
		sub(7, 1, "-5", true),
	}
	got := AuditMalformed(subs)
	want := []int64{2, 3, 4, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRunAuditIsIdempotent(t *testing.T) {
	subs := []core.Subscription{
		sub(1, 1, "101", true), sub(2, 1, "101", true), sub(3, 1, "", true), sub(4, 1, "x", true),
	}
	first := RunAudit(subs, 1)
	second := RunAudit(subs, 1)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("audit is not idempotent: %+v vs %+v", first, second)
	}
	if first.Clean() {
		t.Fatalf("expected findings")
	}
	if subs[0].NumberValue() != "101" || subs[2].HasNumber() {
		t.Fatalf("audit modified its input")
	}
}
