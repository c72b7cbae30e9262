package loop

import "time"

var processStartMono = time.Now()

// nowMonoUS returns a monotonic microsecond timestamp, used internally
// for timer scheduling (spec §2's Time module, §4.C's block-time calc).
// Grounded in time.Since's monotonic reading rather than a raw
// CLOCK_MONOTONIC syscall: the teacher's platform pollers already import
// x/sys/unix for everything syscall-shaped, but time.Since is the
// idiomatic Go source of a monotonic clock and needs no extra dep.
func nowMonoUS() int64 {
	return time.Since(processStartMono).Microseconds()
}

func nowWallMS() int64 {
	return time.Now().UnixMilli()
}

// nowUS returns the loop's last-refreshed monotonic clock reading
// (sampled by New, then refreshed via refreshClock at the start of each
// dispatch iteration and again after poll returns), per spec §4.C:
// timers compare against this cached sample, not a clock resampled on
// every check.
func (l *Loop) nowUS() int64 {
	return l.curMonoUS.Load()
}

func (l *Loop) refreshClock() {
	l.curMonoUS.Store(nowMonoUS())
}
