package loop

import "runtime"

// currentGoroutineID extracts the calling goroutine's id by parsing the
// "goroutine N [...]" header runtime.Stack writes, the same trick the
// teacher's Loop.isLoopThread uses. There is no public API for this;
// it's only ever compared for equality against a value captured the
// same way, never interpreted numerically.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
