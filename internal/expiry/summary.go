package expiry

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary buckets at-risk lots and totals their stock value.
// NORMAL lots appear in no bucket; depleted lots stay in their date bucket.
type Summary struct {
	ReferenceDate     time.Time
	Expired           []Assessment
	Critical          []Assessment
	Upcoming          []Assessment
	TotalValueAtRisk  decimal.Decimal
	TotalExpiredValue decimal.Decimal
}

// AtRiskCount is the number of lots across the three buckets
func (s Summary) AtRiskCount() int {
	return len(s.Expired) + len(s.Critical) + len(s.Upcoming)
}

// Summarize partitions lots into tiers in a single pass, keeping input order
// within each bucket.
func Summarize(lots []Lot, reference time.Time) Summary {
	s := Summary{
		ReferenceDate:     civilDate(reference),
		Expired:           make([]Assessment, 0),
		Critical:          make([]Assessment, 0),
		Upcoming:          make([]Assessment, 0),
		TotalValueAtRisk:  decimal.Zero,
		TotalExpiredValue: decimal.Zero,
	}

	for _, lot := range lots {
		a := Assess(lot, reference)

		switch a.Tier {
		case TierExpired:
			s.Expired = append(s.Expired, a)
			s.TotalExpiredValue = s.TotalExpiredValue.Add(lot.StockValue())
		case TierCritical:
			s.Critical = append(s.Critical, a)
		case TierUpcoming:
			s.Upcoming = append(s.Upcoming, a)
		default:
			continue
		}

		s.TotalValueAtRisk = s.TotalValueAtRisk.Add(lot.StockValue())
	}

	return s
}
