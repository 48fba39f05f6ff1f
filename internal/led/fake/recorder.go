// Package fake provides an in-memory LED backend for headless runs and tests.
package fake

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// ErrInjected is the default error returned by a scheduled failure.
var ErrInjected = errors.New("fake: injected transfer failure")

// Sent is one recorded transmission.
type Sent struct {
	Frame ws2812.Frame
	At    time.Time
}

// Recorder keeps every frame it is handed. It can be told to fail at a
// given transmission, counted from 1.
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	calls  int
	failAt int
	err    error
	closed bool
	now    func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// FailAt makes the n-th call to Transmit return err (ErrInjected when nil)
// without recording the frame.
func (r *Recorder) FailAt(n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.failAt, r.err = n, err
	r.mu.Unlock()
}

func (r *Recorder) Transmit(f ws2812.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("fake: transmit on closed recorder")
	}
	r.calls++
	if r.calls == r.failAt {
		return r.err
	}
	r.sent = append(r.sent, Sent{Frame: f, At: r.now()})
	return nil
}

// Calls counts Transmit invocations, failed ones included.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Sent returns a copy of the recorded frames.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) String() string { return "sim" }
