package sequence

import (
	"fmt"
	"sort"
	"strconv"

	"circolo/internal/core"
)

// Scope selects the partition receipts are numbered within.
type Scope int

const (
	// ScopeMember numbers each member's receipts separately within a season.
	ScopeMember Scope = iota
	// ScopeSeason numbers all receipts of a season in one run.
	ScopeSeason
)

type partition struct {
	member int64
	fy     int
}

func (s Scope) key(r core.Receipt) partition {
	p := partition{fy: core.FiscalYearOf(r.Date)}
	if s == ScopeMember {
		p.member = r.MemberID
	}
	return p
}

func receiptLess(a, b core.Receipt) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// ReceiptRank is 1 plus the number of receipts of the same member and season
// that come earlier by (date, id). It is derived from the given rows each
// time, so annulled receipts simply drop out of the count.
func ReceiptRank(receipts []core.Receipt, receiptID int64) (int, error) {
	return RankIn(receipts, receiptID, ScopeMember)
}

// RankIn is ReceiptRank with an explicit scope.
func RankIn(receipts []core.Receipt, receiptID int64, scope Scope) (int, error) {
	var target *core.Receipt
	for i := range receipts {
		if receipts[i].ID == receiptID {
			target = &receipts[i]
			break
		}
	}
	if target == nil {
		return 0, &core.NotFoundError{Entity: "receipt", ID: strconv.FormatInt(receiptID, 10)}
	}
	key := scope.key(*target)
	rank := 1
	for _, r := range receipts {
		if r.ID != target.ID && scope.key(r) == key && receiptLess(r, *target) {
			rank++
		}
	}
	return rank, nil
}

// RankedReceipt is a receipt with its derived sequence number.
type RankedReceipt struct {
	core.Receipt
	FiscalYear int
	Rank       int
	Label      string
}

// RankAll numbers every receipt within its partition. The result is ordered
// by partition, then by (date, id).
func RankAll(receipts []core.Receipt, scope Scope) []RankedReceipt {
	sorted := make([]core.Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := scope.key(sorted[i]), scope.key(sorted[j])
		if ki.fy != kj.fy {
			return ki.fy < kj.fy
		}
		if ki.member != kj.member {
			return ki.member < kj.member
		}
		return receiptLess(sorted[i], sorted[j])
	})

	out := make([]RankedReceipt, 0, len(sorted))
	counts := map[partition]int{}
	for _, r := range sorted {
		k := scope.key(r)
		counts[k]++
		out = append(out, RankedReceipt{
			Receipt:    r,
			FiscalYear: k.fy,
			Rank:       counts[k],
			Label:      NumberLabel(k.fy, counts[k]),
		})
	}
	return out
}

// NumberLabel formats a receipt number as "2025/0003".
func NumberLabel(fiscalYear, rank int) string {
	return fmt.Sprintf("%d/%04d", fiscalYear, rank)
}
