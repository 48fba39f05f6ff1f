package sequence

import (
	"context"
	"time"
)

// Delayer holds the sequencer between frames.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}

// TimerDelay waits on a runtime timer. It returns early with the context
// error when ctx is done.
type TimerDelay struct{}

func (TimerDelay) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
