//go:build linux

package loop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// maxDirectFDs bounds the initial size of the direct-indexed registration
// array before growth; grounded on the teacher's FastPoller
// (eventloop/poller_linux.go), which uses a fixed maxFDs array. We grow
// dynamically instead, since a library cannot assume a process-wide
// ulimit -n ceiling.
const maxDirectFDs = 1024

// epollWatcher implements watcher using epoll. Grounded directly on
// eventloop/poller_linux.go's FastPoller: direct fd-indexed slice
// instead of a map, RWMutex-guarded registration, a preallocated event
// buffer for PollIO. Unlike the teacher, registration stores only the
// registered-events mask (no callback), since dispatch belongs to the
// Loop, not the watcher, per spec §4.B.
type epollWatcher struct {
	epfd int

	mu       sync.RWMutex
	regs     []IOEvents // regs[fd] == 0 means not registered
	eventBuf [256]unix.EpollEvent
}

func newPlatformWatcher() (watcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollWatcher{
		epfd: epfd,
		regs: make([]IOEvents, maxDirectFDs),
	}, nil
}

func (w *epollWatcher) ensureCap(fd int) {
	if fd < len(w.regs) {
		return
	}
	grown := make([]IOEvents, fd*2+1)
	copy(grown, w.regs)
	w.regs = grown
}

func (w *epollWatcher) add(fd int, events IOEvents) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ensureCap(fd)
	existing := w.regs[fd]
	want := existing | events
	if want == existing {
		return nil // idempotent: already registered for these directions
	}

	ev := &unix.EpollEvent{Events: eventsToEpoll(want), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if existing == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(w.epfd, op, fd, ev); err != nil {
		return err
	}
	w.regs[fd] = want
	return nil
}

func (w *epollWatcher) del(fd int, events IOEvents) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fd < 0 || fd >= len(w.regs) || w.regs[fd] == 0 {
		return nil
	}
	residual := w.regs[fd] &^ events
	if residual == w.regs[fd] {
		return nil
	}
	if residual == 0 {
		err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		w.regs[fd] = 0
		return err
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(residual), Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	w.regs[fd] = residual
	return nil
}

func (w *epollWatcher) poll(timeoutMs int, dst []readyFD) ([]readyFD, error) {
	n, err := unix.EpollWait(w.epfd, w.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	for i := 0; i < n; i++ {
		fd := int(w.eventBuf[i].Fd)
		dst = append(dst, readyFD{fd: fd, events: epollToEvents(w.eventBuf[i].Events)})
	}
	return dst, nil
}

func (w *epollWatcher) close() error {
	return unix.Close(w.epfd)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events.Has(IOEventRead) {
		e |= unix.EPOLLIN
	}
	if events.Has(IOEventWrite) {
		e |= unix.EPOLLOUT
	}
	return e
}

// epollToEvents implements spec §4.B's contract: read|hangup|error all
// surface as IOEventRead, write|hangup|error all surface as IOEventWrite.
func epollToEvents(e uint32) IOEvents {
	var out IOEvents
	hup := e&unix.EPOLLHUP != 0
	errf := e&unix.EPOLLERR != 0
	if e&unix.EPOLLIN != 0 || hup || errf {
		out |= IOEventRead
	}
	if e&unix.EPOLLOUT != 0 || hup || errf {
		out |= IOEventWrite
	}
	if errf {
		out |= IOEventError
	}
	if hup {
		out |= IOEventHangup
	}
	return out
}
