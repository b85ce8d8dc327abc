package sequence

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"circolo/internal/core"
)

func rec(id, member int64, y, m, d int) core.Receipt {
	return core.Receipt{ID: id, MemberID: member, Date: core.NewDate(y, m, d)}
}

func TestReceiptRank(t *testing.T) {
	receipts := []core.Receipt{
		rec(10, 1, 2024, 9, 10),
		rec(4, 1, 2024, 10, 1),
		rec(3, 1, 2024, 10, 1),
		rec(5, 2, 2024, 9, 1),  // other member
		rec(6, 1, 2024, 8, 31), // previous season
		rec(7, 1, 2025, 9, 1),  // next season
	}
	cases := map[int64]int{10: 1, 3: 2, 4: 3, 5: 1, 6: 1, 7: 1}
	for id, want := range cases {
		got, err := ReceiptRank(receipts, id)
		if err != nil {
			t.Fatalf("receipt %d: %v", id, err)
		}
		if got != want {
			t.Fatalf("receipt %d: expected rank %d, got %d", id, want, got)
		}
	}

	_, err := ReceiptRank(receipts, 99)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReceiptRankSeasonScope(t *testing.T) {
	receipts := []core.Receipt{rec(1, 1, 2024, 9, 1), rec(2, 2, 2024, 9, 2), rec(3, 1, 2024, 9, 3)}
	got, _ := RankIn(receipts, 3, ScopeSeason)
	if got != 3 {
		t.Fatalf("expected season rank 3, got %d", got)
	}
	got, _ = RankIn(receipts, 3, ScopeMember)
	if got != 2 {
		t.Fatalf("expected member rank 2, got %d", got)
	}
}

func TestReceiptRankAfterAnnul(t *testing.T) {
	receipts := []core.Receipt{rec(1, 1, 2024, 9, 1), rec(2, 1, 2024, 9, 2), rec(3, 1, 2024, 9, 3)}
	before, _ := ReceiptRank(receipts, 3)
	after, _ := ReceiptRank([]core.Receipt{receipts[0], receipts[2]}, 3)
	if before != 3 || after != 2 {
		t.Fatalf("expected 3 then 2, got %d then %d", before, after)
	}
}

func TestRankAll(t *testing.T) {
	receipts := []core.Receipt{
		rec(3, 1, 2024, 10, 1),
		rec(1, 2, 2024, 9, 1),
		rec(2, 1, 2024, 9, 5),
		rec(9, 1, 2023, 12, 1),
	}
	got := RankAll(receipts, ScopeMember)
	labels := map[int64]string{}
	for _, r := range got {
		labels[r.ID] = r.Label
	}
	want := map[int64]string{9: "2023/0001", 2: "2024/0001", 3: "2024/0002", 1: "2024/0001"}
	for id, l := range want {
		if labels[id] != l {
			t.Fatalf("receipt %d: expected %s, got %s", id, l, labels[id])
		}
	}
	if got[0].ID != 9 {
		t.Fatalf("expected earliest season first, got %d", got[0].ID)
	}
}

// genReceipts builds receipts for two members spread over two seasons.
func genReceipts(days []int) []core.Receipt {
	out := make([]core.Receipt, 0, len(days))
	for i, d := range days {
		out = append(out, core.Receipt{
			ID:       int64(i + 1),
			MemberID: int64(i%2 + 1),
			Date:     core.DateOf(core.NewDate(2024, 6, 1).AddDate(0, 0, d)),
		})
	}
	return out
}

func TestReceiptRankProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("ranks are a contiguous 1..N run per partition", prop.ForAll(
		func(days []int) bool {
			receipts := genReceipts(days)
			seen := map[partition]map[int]bool{}
			for _, r := range receipts {
				rank, err := ReceiptRank(receipts, r.ID)
				if err != nil {
					return false
				}
				k := ScopeMember.key(r)
				if seen[k] == nil {
					seen[k] = map[int]bool{}
				}
				if seen[k][rank] {
					return false
				}
				seen[k][rank] = true
			}
			for _, ranks := range seen {
				for i := 1; i <= len(ranks); i++ {
					if !ranks[i] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.Property("a later receipt does not change earlier ranks", prop.ForAll(
		func(days []int) bool {
			receipts := genReceipts(days)
			later := core.Receipt{ID: int64(len(receipts) + 100), MemberID: 1, Date: core.NewDate(2030, 1, 1)}
			extended := append(append([]core.Receipt(nil), receipts...), later)
			for _, r := range receipts {
				a, _ := ReceiptRank(receipts, r.ID)
				b, _ := ReceiptRank(extended, r.ID)
				if a != b {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.Property("RankAll agrees with ReceiptRank", prop.ForAll(
		func(days []int) bool {
			receipts := genReceipts(days)
			for _, rr := range RankAll(receipts, ScopeMember) {
				r, _ := ReceiptRank(receipts, rr.ID)
				if r != rr.Rank {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.TestingRun(t)
}
