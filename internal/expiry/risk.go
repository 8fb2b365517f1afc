package expiry

import (
	"strings"
	"time"
)

// Tier is the urgency of a lot based on days remaining until expiration
type Tier string

const (
	TierExpired  Tier = "EXPIRED"
	TierCritical Tier = "CRITICAL"
	TierUpcoming Tier = "UPCOMING"
	TierNormal   Tier = "NORMAL"

	// TierDepleted is a display overlay, never a date bucket
	TierDepleted Tier = "DEPLETED"
)

// Upper bounds, inclusive, of the CRITICAL and UPCOMING windows
const (
	CriticalDays = 7
	UpcomingDays = 30
)

// Classify maps days remaining to a tier. Day 0 and day 7 are CRITICAL,
// day 30 is UPCOMING.
func Classify(daysRemaining int) Tier {
	switch {
	case daysRemaining < 0:
		return TierExpired
	case daysRemaining <= CriticalDays:
		return TierCritical
	case daysRemaining <= UpcomingDays:
		return TierUpcoming
	default:
		return TierNormal
	}
}

// DayRange returns the inclusive days-remaining window of a date tier.
// A nil bound is open. ok is false for DEPLETED and unknown tiers.
func (t Tier) DayRange() (lo, hi *int, ok bool) {
	bound := func(v int) *int { return &v }

	switch t {
	case TierExpired:
		return nil, bound(-1), true
	case TierCritical:
		return bound(0), bound(CriticalDays), true
	case TierUpcoming:
		return bound(CriticalDays + 1), bound(UpcomingDays), true
	case TierNormal:
		return bound(UpcomingDays + 1), nil, true
	default:
		return nil, nil, false
	}
}

// ParseTier accepts a tier name in any case
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierExpired, TierCritical, TierUpcoming, TierNormal, TierDepleted:
		return t, true
	}
	return "", false
}

// DaysRemaining is the whole number of calendar days from reference to expiration.
// Only the civil date of each argument counts, read in its own location, so a
// timestamp late in the day never shifts the result.
func DaysRemaining(expiration, reference time.Time) int {
	return int(civilDate(expiration).Sub(civilDate(reference)) / (24 * time.Hour))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Assess classifies a single lot against reference
func Assess(lot Lot, reference time.Time) Assessment {
	days := DaysRemaining(lot.ExpirationDate, reference)
	return Assessment{
		Lot:           lot,
		DaysRemaining: days,
		Tier:          Classify(days),
		Depleted:      lot.Depleted(),
	}
}

// AssessAll classifies every lot, keeping input order
func AssessAll(lots []Lot, reference time.Time) []Assessment {
	out := make([]Assessment, len(lots))
	for i, lot := range lots {
		out[i] = Assess(lot, reference)
	}
	return out
}
