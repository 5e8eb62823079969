// Package pricing computes the total price of a rental interval from
// a vehicle's rate card.  It is a pure function of its inputs: no
// clock, no store, fully deterministic.
package pricing

import (
	"errors"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// ErrInvalidRateCard is returned when the rate card cannot price
// anything, i.e. its daily rate is not positive.
var ErrInvalidRateCard = errors.New("invalid rate card")

// Discount multipliers, in percent, applied to the daily rate when a
// tier has no explicit rate of its own.
const (
	weeklyDiscountPct   = 85
	threeDayDiscountPct = 90
)

// ComputePrice maps (rate card, interval) to a total price.
//
// The rental length in days is the interval duration rounded up to
// whole days, minimum one.  The effective per-day rate is picked by
// duration tier, preferring an explicit tier rate (a total for the
// tier's length) over the fixed-discount fallback:
//
//	days >= 7: weeklyRate/7 per day, else dailyRate × 0.85
//	3..6 days: threeDayRate/3 per day, else dailyRate × 0.90
//	1..2 days: dailyRate
//
// The total is effectiveRate × days rounded half-up to the currency's
// minor unit.  All arithmetic is integer (numerator/denominator pairs
// in cents), so repeated calls can never drift.
func ComputePrice(rc model.RateCard, iv model.Interval) (model.Price, error) {
	if rc.DailyRateCents <= 0 {
		return model.Price{}, ErrInvalidRateCard
	}
	days := iv.Days()

	// numer/denom express the total in fractional cents.
	var numer, denom int64
	switch {
	case days >= 7:
		if r := tierRate(rc.WeeklyRateCents); r > 0 {
			numer, denom = r*days, 7
		} else {
			numer, denom = rc.DailyRateCents*weeklyDiscountPct*days, 100
		}
	case days >= 3:
		if r := tierRate(rc.ThreeDayRateCents); r > 0 {
			numer, denom = r*days, 3
		} else {
			numer, denom = rc.DailyRateCents*threeDayDiscountPct*days, 100
		}
	default:
		numer, denom = rc.DailyRateCents*days, 1
	}

	return model.Price{
		AmountCents: roundHalfUpDiv(numer, denom),
		Currency:    rc.Currency,
	}, nil
}

// tierRate dereferences an optional tier rate.  Non-positive values
// count as absent so a zeroed column falls back to the discount
// schedule instead of pricing the rental at nothing.
func tierRate(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// roundHalfUpDiv returns n/d rounded half-up.  n and d are positive.
func roundHalfUpDiv(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
