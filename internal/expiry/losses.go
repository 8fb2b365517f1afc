package expiry

import (
	"time"

	"github.com/shopspring/decimal"
)

// LossRecord is one calendar month with at least one expired lot
type LossRecord struct {
	// ExpirationMonth is the first day of the month, UTC
	ExpirationMonth      time.Time
	ExpiredLotCount      int
	ExpiredUnitCount     int
	TotalLoss            decimal.Decimal
	AffectedProductCount int
	ProductList          []string
}

// Month normalises t to the first day of its month in UTC
func Month(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// LossSummary totals a sequence of monthly loss records
type LossSummary struct {
	TotalLoss         decimal.Decimal
	TotalExpiredUnits int
	MonthsWithLoss    int
}

// SummarizeLosses adds up loss records. Negative amounts count as zero.
// Every record stands for one month, so MonthsWithLoss is len(records).
func SummarizeLosses(records []LossRecord) LossSummary {
	out := LossSummary{TotalLoss: decimal.Zero}

	for _, r := range records {
		if r.TotalLoss.IsPositive() {
			out.TotalLoss = out.TotalLoss.Add(r.TotalLoss)
		}
		if r.ExpiredUnitCount > 0 {
			out.TotalExpiredUnits += r.ExpiredUnitCount
		}
	}
	out.MonthsWithLoss = len(records)

	return out
}

// LotLoss is the realised loss of a single expired lot
type LotLoss struct {
	Lot          Lot
	DaysExpired  int
	Units        int
	EconomicLoss decimal.Decimal
}

// ExpiredLotLosses returns, in input order, the loss of every lot that is
// expired at reference. Loss is valued at purchase price.
func ExpiredLotLosses(lots []Lot, reference time.Time) []LotLoss {
	out := make([]LotLoss, 0)

	for _, lot := range lots {
		days := DaysRemaining(lot.ExpirationDate, reference)
		if Classify(days) != TierExpired {
			continue
		}

		units := lot.CurrentQuantity
		if units < 0 {
			units = 0
		}

		out = append(out, LotLoss{
			Lot:          lot,
			DaysExpired:  -days,
			Units:        units,
			EconomicLoss: lot.CostValue(),
		})
	}

	return out
}
