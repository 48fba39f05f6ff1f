package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/arcaluminis-neopixel/internal/diagnostics"
	"github.com/coreman2200/arcaluminis-neopixel/internal/led"
	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

var ErrRunning = errors.New("sequence: already running")

// Sequencer shows a Program on a backend, one frame at a time.
type Sequencer struct {
	// Delayer, Sleeper and Reporter may be replaced before Run.
	Delayer  Delayer
	Sleeper  Sleeper
	Reporter diagnostics.Reporter

	backend led.Backend
	prog    Program
	hooks   Hooks

	mu    sync.Mutex
	state State
	sent  int
	now   func() time.Time
}

// NewSequencer checks prog and binds it to b.
func NewSequencer(b led.Backend, prog Program, h Hooks) (*Sequencer, error) {
	if len(prog.Colors) == 0 {
		return nil, errors.New("sequence: program has no colors")
	}
	if prog.Delay < 0 {
		return nil, errors.Errorf("sequence: negative delay %s", prog.Delay)
	}
	if prog.Loop && prog.Sleep != nil {
		return nil, errors.New("sequence: a looping program never reaches sleep")
	}
	return &Sequencer{
		Delayer:  TimerDelay{},
		Sleeper:  GPIOSleeper{},
		Reporter: diagnostics.Log{L: log.Logger},
		backend:  b,
		prog:     prog,
		hooks:    h,
		state:    Idle,
		now:      time.Now,
	}, nil
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sent counts frames transmitted so far.
func (s *Sequencer) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

// Run transmits the program. A transmission fault halts the sequencer for
// good and is returned; no later frame is attempted. The context is only
// consulted between frames, never during one.
func (s *Sequencer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return errors.Wrapf(ErrRunning, "state %s", st)
	}
	s.state = Running
	s.mu.Unlock()
	if s.hooks.OnState != nil {
		s.hooks.OnState(Running)
	}

	if st, ok := s.backend.(led.Settler); ok {
		if err := st.Settle(); err != nil {
			return s.halt(err, 0)
		}
	}

	idx := 0
	for {
		for i, c := range s.prog.Colors {
			if err := ctx.Err(); err != nil {
				s.setState(Idle)
				return err
			}
			f := ws2812.Build(c)
			if err := s.backend.Transmit(f); err != nil {
				return s.halt(err, idx)
			}
			s.mu.Lock()
			s.sent++
			s.mu.Unlock()
			if s.hooks.OnFrame != nil {
				s.hooks.OnFrame(FrameEvent{Index: idx, Color: c, Frame: f, At: s.now()})
			}
			log.Debug().
				Int("frame", idx).
				Stringer("color", c).
				Dur("delay", s.prog.Delay).
				Msg("frame sent")
			idx++

			// Suspension follows the final frame directly.
			if s.prog.Sleep != nil && i == len(s.prog.Colors)-1 {
				break
			}
			if err := s.Delayer.Delay(ctx, s.prog.Delay); err != nil {
				s.setState(Idle)
				return err
			}
		}
		if !s.prog.Loop {
			break
		}
	}

	if s.prog.Sleep != nil {
		s.setState(Sleeping)
		w, err := s.Sleeper.Suspend(ctx, *s.prog.Sleep)
		if err != nil {
			s.setState(Idle)
			return err
		}
		log.Info().Stringer("wake", w).Msg("woke from suspension")
	}
	s.setState(Done)
	return nil
}

func (s *Sequencer) halt(err error, frame int) error {
	s.Reporter.Report(diagnostics.FromFault(err, frame))
	s.setState(Halted)
	return err
}
