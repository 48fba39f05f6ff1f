package sequence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Sleeper suspends the caller until a wake source fires.
type Sleeper interface {
	Suspend(ctx context.Context, w WakeConfig) (Wake, error)
}

// WakeInput is the part of gpio.PinIn a wake pin needs.
type WakeInput interface {
	String() string
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// edgePoll bounds each WaitForEdge so waiters notice cancellation.
const edgePoll = 100 * time.Millisecond

// GPIOSleeper waits on the wake timer and on every wake pin at once, each
// on its own goroutine.
type GPIOSleeper struct {
	// Lookup resolves pin names; nil uses gpioreg.ByName.
	Lookup func(name string) (WakeInput, error)
}

func byName(name string) (WakeInput, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("sequence: no wake pin %q", name)
	}
	return p, nil
}

func (s GPIOSleeper) Suspend(ctx context.Context, w WakeConfig) (Wake, error) {
	if w.Timer <= 0 && len(w.Pins) == 0 {
		return Wake{}, errors.New("sequence: no wake source")
	}
	lookup := s.Lookup
	if lookup == nil {
		lookup = byName
	}
	inputs := make([]WakeInput, len(w.Pins))
	for i, wp := range w.Pins {
		in, err := lookup(wp.Pin)
		if err != nil {
			return Wake{}, err
		}
		if err := in.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return Wake{}, errors.Wrapf(err, "sequence: configure wake pin %s", wp.Pin)
		}
		inputs[i] = in
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	woke := make(chan Wake, len(inputs)+1)
	g, gctx := errgroup.WithContext(ctx)

	if w.Timer > 0 {
		g.Go(func() error {
			t := time.NewTimer(w.Timer)
			defer t.Stop()
			select {
			case <-t.C:
				woke <- Wake{Timer: true}
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}
	for i, in := range inputs {
		level, name := w.Pins[i].Level, w.Pins[i].Pin
		g.Go(func() error {
			for gctx.Err() == nil {
				if in.Read() == level {
					woke <- Wake{Pin: name}
					cancel()
					return nil
				}
				in.WaitForEdge(edgePoll)
			}
			return nil
		})
	}

	log.Debug().
		Dur("timer", w.Timer).
		Int("pins", len(inputs)).
		Msg("suspended")
	_ = g.Wait()

	select {
	case wk := <-woke:
		return wk, nil
	default:
		return Wake{}, ctx.Err()
	}
}
