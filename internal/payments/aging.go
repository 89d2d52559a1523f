package payments

import (
	"math"
	"sort"
	"time"
)

// AgingRow is one open (party, voucher) position.
type AgingRow struct {
	Party            string
	AgainstVoucherNo string
	AccountType      AccountType
	PostingDate      time.Time
	Outstanding      float64
	AgeDays          int
	Bucket           string
}

// AgingReport lists open positions oldest first with per-bucket totals.
type AgingReport struct {
	AsOf    time.Time
	Rows    []AgingRow
	Buckets map[string]float64
	Total   float64
}

type agingKey struct {
	party   string
	voucher string
}

// BuildAgingReport groups entries by (party, voucher), drops settled
// positions and ages the remainder against asOf. Age counts from the earliest
// posting date of the group.
func BuildAgingReport(entries []Entry, asOf time.Time) AgingReport {
	type position struct {
		accountType AccountType
		earliest    time.Time
		outstanding float64
	}
	positions := map[agingKey]*position{}
	for _, e := range entries {
		if e.IsCancelled {
			continue
		}
		key := agingKey{party: e.Party, voucher: e.AgainstVoucherNo}
		pos, ok := positions[key]
		if !ok {
			pos = &position{accountType: e.AccountType, earliest: e.PostingDate}
			positions[key] = pos
		}
		if e.PostingDate.Before(pos.earliest) {
			pos.earliest = e.PostingDate
		}
		pos.outstanding += e.Amount
	}
	report := AgingReport{AsOf: asOf, Buckets: map[string]float64{}}
	for key, pos := range positions {
		if math.Abs(pos.outstanding) <= OutstandingTolerance {
			continue
		}
		age := int(asOf.Sub(pos.earliest).Hours() / 24)
		if age < 0 {
			age = 0
		}
		row := AgingRow{
			Party:            key.party,
			AgainstVoucherNo: key.voucher,
			AccountType:      pos.accountType,
			PostingDate:      pos.earliest,
			Outstanding:      pos.outstanding,
			AgeDays:          age,
			Bucket:           ageBucket(age),
		}
		report.Rows = append(report.Rows, row)
		report.Buckets[row.Bucket] += row.Outstanding
		report.Total += row.Outstanding
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].AgeDays != report.Rows[j].AgeDays {
			return report.Rows[i].AgeDays > report.Rows[j].AgeDays
		}
		return report.Rows[i].AgainstVoucherNo < report.Rows[j].AgainstVoucherNo
	})
	return report
}

func ageBucket(days int) string {
	switch {
	case days <= 30:
		return "0-30"
	case days <= 60:
		return "31-60"
	case days <= 90:
		return "61-90"
	default:
		return "90+"
	}
}
