package sequence

import (
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
	"github.com/coreman2200/arcaluminis-neopixel/model"
)

// DefaultDelay is the hold time after each frame of the default program.
const DefaultDelay = 500 * time.Millisecond

// WakePin names an input that ends suspension when it reads Level.
type WakePin struct {
	Pin   string
	Level gpio.Level
}

// WakeConfig lists the wake sources for suspension. Whichever fires first
// wins.
type WakeConfig struct {
	Timer time.Duration
	Pins  []WakePin
}

// Program is a palette shown one color per frame.
type Program struct {
	Colors []model.Color
	Delay  time.Duration
	// Loop repeats the palette until the context is done.
	Loop bool
	// Sleep, when set, suspends once after a single pass.
	Sleep *WakeConfig
}

// DefaultProgram cycles red, green, blue and off once, 500ms apart.
func DefaultProgram() Program {
	return Program{
		Colors: append([]model.Color(nil), model.DefaultPalette...),
		Delay:  DefaultDelay,
	}
}

// State enumerates sequencer states.
type State string

const (
	Idle     State = "idle"
	Running  State = "running"
	Sleeping State = "sleeping"
	Done     State = "done"
	Halted   State = "halted"
)

// FrameEvent describes a frame that left the backend.
type FrameEvent struct {
	Index int
	Color model.Color
	Frame ws2812.Frame
	At    time.Time
}

// Hooks are optional callbacks fired from the goroutine running the
// sequencer.
type Hooks struct {
	OnFrame func(ev FrameEvent)
	OnState func(s State)
}

// Wake tells which source ended a suspension.
type Wake struct {
	Timer bool
	Pin   string
}

func (w Wake) String() string {
	if w.Timer {
		return "timer"
	}
	return "pin " + w.Pin
}
