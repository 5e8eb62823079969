package model

import "time"

// Interval is a half-open time range [Start, End).  End is exclusive
// so that a dropoff at 10:00 never conflicts with another booking's
// pickup at 10:00.  Both endpoints are normalized to UTC before any
// comparison; NewInterval is the only constructor used by the engine.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval normalizes both endpoints to UTC.  It does not validate
// ordering; the engine rejects Start >= End before any transaction
// opens.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Valid reports whether the interval is strictly ordered.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether two half-open intervals intersect:
// [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.  Touching
// endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Days returns the rental duration in whole days, rounding any
// partial day up, with a minimum of one day.
func (iv Interval) Days() int64 {
	const day = 24 * time.Hour
	d := iv.End.Sub(iv.Start)
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}
