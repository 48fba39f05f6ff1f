package ws2812

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// MaxPulseLength is the widest phase the 15-bit length field can hold.
const MaxPulseLength = 1<<15 - 1

// PulseCode is a two-phase waveform measured in peripheral clock cycles.
type PulseCode struct {
	Level1  bool
	Length1 uint16
	Level2  bool
	Length2 uint16
}

// Pack returns the RMT memory word: level2<<31 | length2<<16 | level1<<15 |
// length1.
func (p PulseCode) Pack() uint32 {
	w := uint32(p.Length1&MaxPulseLength) | uint32(p.Length2&MaxPulseLength)<<16
	if p.Level1 {
		w |= 1 << 15
	}
	if p.Level2 {
		w |= 1 << 31
	}
	return w
}

// UnpackPulse inverts PulseCode.Pack.
func UnpackPulse(w uint32) PulseCode {
	return PulseCode{
		Level1:  w&(1<<15) != 0,
		Length1: uint16(w & MaxPulseLength),
		Level2:  w&(1<<31) != 0,
		Length2: uint16(w >> 16 & MaxPulseLength),
	}
}

// Cycles is the combined length of both phases.
func (p PulseCode) Cycles() int {
	return int(p.Length1) + int(p.Length2)
}

// LowCycles counts the cycles spent low.
func (p PulseCode) LowCycles() int {
	n := 0
	if !p.Level1 {
		n += int(p.Length1)
	}
	if !p.Level2 {
		n += int(p.Length2)
	}
	return n
}

// PulseEncoder maps units to pulse codes at a fixed peripheral clock. The
// conversion from durations to cycles is exact.
type PulseEncoder struct {
	clock            physic.Frequency
	hz               int64
	one, zero, reset PulseCode
}

// NewPulseEncoder fails if Short, Long or ResetHold is not a whole number of
// clock cycles, or does not fit a pulse phase.
func NewPulseEncoder(clock physic.Frequency) (PulseEncoder, error) {
	if clock <= 0 || clock%physic.Hertz != 0 {
		return PulseEncoder{}, fmt.Errorf("ws2812: invalid pulse clock %s", clock)
	}
	hz := int64(clock / physic.Hertz)
	short, err := cycles(Short, hz)
	if err != nil {
		return PulseEncoder{}, err
	}
	long, err := cycles(Long, hz)
	if err != nil {
		return PulseEncoder{}, err
	}
	reset, err := cycles(ResetHold, hz)
	if err != nil {
		return PulseEncoder{}, err
	}
	return PulseEncoder{
		clock: clock,
		hz:    hz,
		one:   PulseCode{Level1: true, Length1: long, Level2: false, Length2: short},
		zero:  PulseCode{Level1: true, Length1: short, Level2: false, Length2: long},
		reset: PulseCode{Level1: false, Length1: 0, Level2: false, Length2: reset},
	}, nil
}

func cycles(d time.Duration, hz int64) (uint16, error) {
	n := int64(d) * hz
	if n%int64(time.Second) != 0 {
		return 0, fmt.Errorf("ws2812: %s is not a whole number of cycles at %dHz", d, hz)
	}
	n /= int64(time.Second)
	if n <= 0 || n > MaxPulseLength {
		return 0, fmt.Errorf("ws2812: %s is %d cycles at %dHz, out of range", d, n, hz)
	}
	return uint16(n), nil
}

func (e PulseEncoder) Clock() physic.Frequency { return e.clock }

// Encode maps a unit to its pulse code.
func (e PulseEncoder) Encode(u Unit) PulseCode {
	switch u {
	case One:
		return e.one
	case Reset:
		return e.reset
	default:
		return e.zero
	}
}

// EncodeFrame maps every unit of f.
func (e PulseEncoder) EncodeFrame(f Frame) [FrameUnits]PulseCode {
	var out [FrameUnits]PulseCode
	for i, u := range f {
		out[i] = e.Encode(u)
	}
	return out
}

// AppendWords appends the packed words for f to dst.
func (e PulseEncoder) AppendWords(dst []uint32, f Frame) []uint32 {
	for _, u := range f {
		dst = append(dst, e.Encode(u).Pack())
	}
	return dst
}

// Duration converts a cycle count at the encoder clock.
func (e PulseEncoder) Duration(cycles int) time.Duration {
	return time.Duration(int64(cycles) * int64(time.Second) / e.hz)
}

// Decode maps pulse codes produced by this encoder back to a frame.
func (e PulseEncoder) Decode(codes []PulseCode) (Frame, error) {
	var f Frame
	if len(codes) != FrameUnits {
		return f, fmt.Errorf("%w: %d pulses, want %d", ErrFrameLength, len(codes), FrameUnits)
	}
	for i, c := range codes {
		switch c {
		case e.one:
			f[i] = One
		case e.zero:
			f[i] = Zero
		case e.reset:
			f[i] = Reset
		default:
			return f, fmt.Errorf("%w: pulse %d is %+v", ErrPattern, i, c)
		}
	}
	if !f.Valid() {
		return f, fmt.Errorf("%w: reset is not last", ErrPattern)
	}
	return f, nil
}
