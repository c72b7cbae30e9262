//go:build darwin

package loop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueWatcher implements watcher using kqueue. Grounded on
// eventloop/poller_darwin.go's FastPoller, adapted to track read/write
// interest per fd with the two EVFILT_READ/EVFILT_WRITE filters spec
// §4.B calls out explicitly ("on kqueue two separate filters").
//
// kevent_index bookkeeping (spec §9's open question) is avoided
// entirely here: each add/del issues its own kevent change directly
// rather than batching through a change-list, so there is no stale
// index to reset. ioReady (loop/handle.go) still resets the handle's
// two index fields unconditionally for spec-mandated idempotency even
// though this watcher doesn't consume them.
type kqueueWatcher struct {
	kq int

	mu       sync.RWMutex
	regs     []IOEvents
	eventBuf [256]unix.Kevent_t
}

func newPlatformWatcher() (watcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueWatcher{
		kq:   kq,
		regs: make([]IOEvents, maxDirectFDs),
	}, nil
}

const maxDirectFDs = 1024

func (w *kqueueWatcher) ensureCap(fd int) {
	if fd < len(w.regs) {
		return
	}
	grown := make([]IOEvents, fd*2+1)
	copy(grown, w.regs)
	w.regs = grown
}

func (w *kqueueWatcher) add(fd int, events IOEvents) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ensureCap(fd)
	existing := w.regs[fd]
	want := existing | events

	var changes []unix.Kevent_t
	if want.Has(IOEventRead) && !existing.Has(IOEventRead) {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
	}
	if want.Has(IOEventWrite) && !existing.Has(IOEventWrite) {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE))
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(w.kq, changes, nil, nil); err != nil {
		return err
	}
	w.regs[fd] = want
	return nil
}

func (w *kqueueWatcher) del(fd int, events IOEvents) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fd < 0 || fd >= len(w.regs) || w.regs[fd] == 0 {
		return nil
	}
	existing := w.regs[fd]
	residual := existing &^ events

	var changes []unix.Kevent_t
	if existing.Has(IOEventRead) && !residual.Has(IOEventRead) {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	}
	if existing.Has(IOEventWrite) && !residual.Has(IOEventWrite) {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	}
	if len(changes) > 0 {
		// Deletes on an already-closed fd are expected during teardown races.
		_, _ = unix.Kevent(w.kq, changes, nil, nil)
	}
	w.regs[fd] = residual
	return nil
}

func (w *kqueueWatcher) poll(timeoutMs int, dst []readyFD) ([]readyFD, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(w.kq, nil, w.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}

	// Coalesce read+write filters for the same fd firing in one batch.
	merged := make(map[int]IOEvents, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		kev := w.eventBuf[i]
		fd := int(kev.Ident)
		var ev IOEvents
		switch kev.Filter {
		case unix.EVFILT_READ:
			ev = IOEventRead
		case unix.EVFILT_WRITE:
			ev = IOEventWrite
		}
		if kev.Flags&unix.EV_EOF != 0 {
			ev |= IOEventHangup | IOEventRead | IOEventWrite
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			ev |= IOEventError
		}
		if _, ok := merged[fd]; !ok {
			order = append(order, fd)
		}
		merged[fd] |= ev
	}
	for _, fd := range order {
		dst = append(dst, readyFD{fd: fd, events: merged[fd]})
	}
	return dst, nil
}

func (w *kqueueWatcher) close() error {
	return unix.Close(w.kq)
}

func kevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}
