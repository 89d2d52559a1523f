package bankrec

import (
	"math"
	"sort"
	"time"
)

// Score weights. Amount proximity dominates, reference equality beats date
// equality so a quoted reference outranks a same-day coincidence.
const (
	scoreAmount    = 50
	scoreReference = 30
	scoreDate      = 20
)

// ScoreVoucher rates one voucher against a statement transaction. Amounts are
// compared by magnitude since statement withdrawals carry a negative sign.
func ScoreVoucher(txn Transaction, v Voucher) int {
	score := 0
	if math.Abs(math.Abs(v.Amount)-math.Abs(txn.Amount)) < AmountTolerance {
		score += scoreAmount
	}
	if txn.ReferenceNo != "" && v.ReferenceNo != "" && txn.ReferenceNo == v.ReferenceNo {
		score += scoreReference
	}
	if sameDay(txn.Date, v.PostingDate) {
		score += scoreDate
	}
	return score
}

// RankCandidates scores vouchers, drops zero scores and returns the best
// MaxCandidates sorted by score descending.
func RankCandidates(txn Transaction, vouchers []Voucher) []Candidate {
	candidates := make([]Candidate, 0, len(vouchers))
	for _, v := range vouchers {
		score := ScoreVoucher(txn, v)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Voucher: v, Score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
