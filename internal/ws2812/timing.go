package ws2812

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Datasheet timing. A One is Long high then Short low; a Zero is the
// reverse.
const (
	Short     = 400 * time.Nanosecond
	Long      = 850 * time.Nanosecond
	ResetHold = 50 * time.Microsecond
)

const (
	// DefaultSerialClock gives 300ns per shifted bit.
	DefaultSerialClock = 3333 * physic.KiloHertz
	// DefaultPulseClock is the stock RMT source clock with a divider of 1.
	DefaultPulseClock = 80 * physic.MegaHertz
)

// hertz rounds f up to whole hertz.
func hertz(f physic.Frequency) int64 {
	return int64((f + physic.Hertz - 1) / physic.Hertz)
}

// span returns how long n clock periods last at hz.
func span(n int64, hz int64) time.Duration {
	return time.Duration((n*int64(time.Second) + hz - 1) / hz)
}
