package loop

import "sync/atomic"

// Status represents the Loop's run status (spec §3: stopped/running/paused/stopping).
type Status uint32

const (
	// StatusStopped is the initial status and the status after Run returns.
	StatusStopped Status = iota
	StatusRunning
	StatusPaused
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// loopState is a lock-free status cell, grounded on the teacher's
// FastState (eventloop/state.go): a single atomic word, CAS transitions
// for the temporary states, Store for decisive ones.
type loopState struct {
	v atomic.Uint32
}

func newLoopState() *loopState {
	s := &loopState{}
	s.v.Store(uint32(StatusStopped))
	return s
}

func (s *loopState) Load() Status { return Status(s.v.Load()) }

func (s *loopState) Store(v Status) { s.v.Store(uint32(v)) }

func (s *loopState) CAS(from, to Status) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
