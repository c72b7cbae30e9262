package loop

// IOEvents is a bitmask of I/O interest/readiness (spec §4.B).
type IOEvents uint32

const (
	IOEventRead IOEvents = 1 << iota
	IOEventWrite
	IOEventError
	IOEventHangup
)

// Has reports whether any of mask's bits are set in e.
func (e IOEvents) Has(mask IOEvents) bool { return e&mask != 0 }

// readyFD is one entry of a watcher.poll() result: an fd plus the
// events that fired for it.
type readyFD struct {
	fd     int
	events IOEvents
}

// watcher is the uniform internal API over epoll/kqueue (spec §4.B).
// Implementations must be O(1)/O(log n) per call and MUST NOT invoke
// user callbacks from poll: dispatch is the Loop's job.
type watcher interface {
	// add registers fd for the given interest, or modifies the existing
	// registration. Idempotent for re-enabling a single direction.
	add(fd int, events IOEvents) error
	// del clears the given bits of interest; if residual interest is
	// empty the fd is fully unregistered.
	del(fd int, events IOEvents) error
	// poll blocks up to timeoutMs (-1 = forever) and appends ready fds
	// (with their revents translated per spec §4.B's contract) to dst,
	// returning the extended slice.
	poll(timeoutMs int, dst []readyFD) ([]readyFD, error)
	// close releases the underlying OS poller instance.
	close() error
}

func newWatcher() (watcher, error) {
	return newPlatformWatcher()
}
