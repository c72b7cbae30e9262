package loop

import (
	"testing"
	"time"
)

func TestCronSpecMatchesWildcards(t *testing.T) {
	spec := CronSpec{Minute: -1, Hour: -1, Day: -1, Week: -1, Month: -1}
	if !spec.matches(time.Now()) {
		t.Fatal("all-wildcard spec should match any time")
	}
}

func TestCronSpecWeekTakesPrecedenceOverDayMonth(t *testing.T) {
	// A Tuesday (weekday 2) with a Day/Month that would never match.
	tuesday := time.Date(2026, time.July, 28, 9, 0, 0, 0, time.Local)
	if tuesday.Weekday() != time.Tuesday {
		t.Fatalf("fixture date is a %s, want Tuesday", tuesday.Weekday())
	}

	spec := CronSpec{Minute: 0, Hour: 9, Day: 1, Week: int(time.Tuesday), Month: 1}
	if !spec.matches(tuesday) {
		t.Fatal("week field should override a non-matching day/month")
	}
}

func TestCronSpecNextIsStrictlyAfterNow(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.Local)
	spec := CronSpec{Minute: 30, Hour: -1, Day: -1, Week: -1, Month: -1}

	next := spec.next(now)
	if !next.After(now) {
		t.Fatalf("next() returned %v, want strictly after %v", next, now)
	}
	if next.Minute() != 30 {
		t.Fatalf("next().Minute() = %d, want 30", next.Minute())
	}
}

func TestCronSpecNextHandlesMonthBoundary(t *testing.T) {
	// Day 31 in a 30-day month must roll to the next month that has one.
	now := time.Date(2026, time.April, 30, 23, 59, 0, 0, time.Local)
	spec := CronSpec{Minute: -1, Hour: -1, Day: 31, Week: -1, Month: -1}

	next := spec.next(now)
	if next.Day() != 31 {
		t.Fatalf("next().Day() = %d, want 31", next.Day())
	}
	if !next.After(now) {
		t.Fatalf("next() = %v, want after %v", next, now)
	}
}
