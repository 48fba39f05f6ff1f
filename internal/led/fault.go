package led

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrOverrun is returned by engines when the peripheral cannot take the unit
// stream in one transfer.
var ErrOverrun = errors.New("led: transfer overrun")

// FaultKind classifies a transmission fault.
type FaultKind uint8

const (
	// Abort covers every peripheral error that is not Busy or Overrun.
	Abort FaultKind = iota
	Busy
	Overrun
)

func (k FaultKind) String() string {
	switch k {
	case Busy:
		return "busy"
	case Overrun:
		return "overrun"
	default:
		return "abort"
	}
}

// Fault is a transmission failure. It is terminal for the frame and the
// caller; backends never retry.
type Fault struct {
	Backend string
	Op      string
	Kind    FaultKind
	Err     error
}

func newFault(backend, op string, err error) *Fault {
	k := Abort
	switch {
	case errors.Is(err, ErrChannelBusy):
		k = Busy
	case errors.Is(err, ErrOverrun):
		k = Overrun
	}
	return &Fault{Backend: backend, Op: op, Kind: k, Err: err}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s fault during %s: %v", f.Backend, f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }
