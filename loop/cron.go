package loop

import "time"

// CronSpec is a cron-style (minute, hour, day, week, month) specification
// (spec §4.A). Negative fields are wildcards. Week, when >= 0, takes
// precedence over Day/Month (spec: "If (week ≥ 0), day/month are
// ignored.").
//
// There is no cron-expression library anywhere in the retrieval pack
// (no robfig/cron or similar); this is implemented against the standard
// library time package, the one clearly ambient-but-stdlib piece noted
// in SPEC_FULL.md / DESIGN.md.
type CronSpec struct {
	Minute int // 0-59, or < 0 for wildcard
	Hour   int // 0-23
	Day    int // 1-31
	Week   int // 0 (Sunday) - 6 (Saturday)
	Month  int // 1-12
}

func (c CronSpec) matches(t time.Time) bool {
	if c.Minute >= 0 && t.Minute() != c.Minute {
		return false
	}
	if c.Hour >= 0 && t.Hour() != c.Hour {
		return false
	}
	if c.Week >= 0 {
		return int(t.Weekday()) == c.Week
	}
	if c.Day >= 0 && t.Day() != c.Day {
		return false
	}
	if c.Month >= 0 && int(t.Month()) != c.Month {
		return false
	}
	return true
}

// next returns the next unix time at which all supplied (non-negative)
// components match now's local broken-down representation. Ties are
// broken so the result is strictly greater than now: the search always
// starts at the next whole minute, so "now already matches" can never
// be returned verbatim.
//
// Always steps minute-by-minute rather than trying to skip ahead by the
// coarsest wildcarded field: a coarser skip is only safe when every
// finer field is also wildcarded, and getting that wrong silently
// returns a time that fails to match. Minute resolution over a
// one-year search bound is cheap enough to not matter.
func (c CronSpec) next(now time.Time) time.Time {
	now = now.In(time.Local)
	t := now.Truncate(time.Minute).Add(time.Minute)

	limit := now.Add(366 * 24 * time.Hour)
	for t.Before(limit) {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return t
}
