package led

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errUnknownTransfer = errors.New("led: no such transfer in flight")

// Handle identifies one transfer started on a Transferer.
type Handle uint64

// Transferer is the capability a backend drives its peripheral through.
// BeginTransfer may do the whole transfer before returning, or only start
// it; AwaitCompletion blocks until the units have left the peripheral.
// Callers cannot tell which.
//
// units belongs to the Transferer until AwaitCompletion returns.
type Transferer[U any] interface {
	BeginTransfer(units []U) (Handle, error)
	AwaitCompletion(h Handle) error
}

// transmitter runs one blocking Idle -> Transmitting -> Idle cycle per call.
type transmitter[U any] struct {
	name string
	ch   *Channel
	tx   Transferer[U]
}

func (t *transmitter[U]) run(units []U) error {
	if err := t.ch.begin(); err != nil {
		return newFault(t.name, "begin", err)
	}
	defer t.ch.end()

	h, err := t.tx.BeginTransfer(units)
	if err != nil {
		return newFault(t.name, "transfer", err)
	}
	if err := t.tx.AwaitCompletion(h); err != nil {
		return newFault(t.name, "completion", err)
	}
	log.Trace().
		Str("backend", t.name).
		Int("units", len(units)).
		Msg("transfer complete")
	return nil
}

func (t *transmitter[U]) Close() error {
	return t.ch.Release()
}

func (t *transmitter[U]) String() string { return t.name }
