package loop

import (
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the narrow fire-and-forget logging surface the loop calls
// into for poll errors; accept/connect failures and handle closes are
// not logged. It is satisfied by *StumpyLogger below, or by any other
// logiface-backed adapter the embedding application wires up.
type Logger interface {
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Errorf(string, ...any) {}
func (noopLogger) Debugf(string, ...any) {}

// StumpyLogger adapts a logiface.Logger[*stumpy.Event], writing
// zero-alloc, newline-delimited structured records via stumpy.Writer.
// Grounded on the teacher's own logging wiring (eventloop uses
// logiface+stumpy for its own diagnostics).
type StumpyLogger struct {
	log *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger wraps an already-configured logiface logger l, which
// decides where records are written.
func NewStumpyLogger(l *logiface.Logger[*stumpy.Event]) *StumpyLogger {
	return &StumpyLogger{log: l}
}

// NewDefaultStumpyLogger constructs a ready-to-use StumpyLogger writing
// newline-delimited JSON to w (os.Stderr if nil).
func NewDefaultStumpyLogger(w io.Writer) *StumpyLogger {
	if w == nil {
		w = os.Stderr
	}
	l := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			_, err := w.Write(append(e.Bytes(), '\n'))
			return err
		})),
	)
	return &StumpyLogger{log: l}
}

func (s *StumpyLogger) Errorf(format string, args ...any) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Err().Log(fmt.Sprintf(format, args...))
}

func (s *StumpyLogger) Debugf(format string, args ...any) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Debug().Log(fmt.Sprintf(format, args...))
}
