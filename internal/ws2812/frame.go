// Package ws2812 encodes colors into the WS2812 one-wire bit stream.
//
// A Frame is the transport-independent form: 24 bit units (green, red, blue,
// most significant bit first) followed by a reset unit. SerialEncoder and
// PulseEncoder turn a Frame into what a byte-shifting serial peripheral or a
// pulse generator consumes.
package ws2812

import (
	"errors"

	"github.com/coreman2200/arcaluminis-neopixel/model"
)

// Unit is one elementary protocol unit.
type Unit uint8

const (
	Zero Unit = iota
	One
	// Reset holds the line low for at least ResetHold and latches the color.
	Reset
)

func (u Unit) String() string {
	switch u {
	case Zero:
		return "0"
	case One:
		return "1"
	case Reset:
		return "reset"
	default:
		return "invalid"
	}
}

const (
	// BitsPerFrame is 8 bits for each of the three channels.
	BitsPerFrame = 24
	// FrameUnits counts the bit units plus the trailing reset.
	FrameUnits = BitsPerFrame + 1
)

var (
	ErrFrameLength = errors.New("ws2812: wrong frame length")
	ErrPattern     = errors.New("ws2812: unknown bit pattern")
)

// Frame is a complete single-LED update.
type Frame [FrameUnits]Unit

// Build lays out c as G, R, B, each MSB first, and terminates the frame with
// Reset. Black still yields 24 Zero units.
func Build(c model.Color) Frame {
	var f Frame
	i := 0
	for _, ch := range c.GRB() {
		for _, bit := range Bits(ch) {
			f[i] = bit
			i++
		}
	}
	f[BitsPerFrame] = Reset
	return f
}

// Bits splits b into its bits, most significant first.
func Bits(b byte) [8]Unit {
	var out [8]Unit
	for i := range out {
		if b&0x80 != 0 {
			out[i] = One
		} else {
			out[i] = Zero
		}
		b <<= 1
	}
	return out
}

func (f Frame) Len() int { return len(f) }

// Channel returns the eight bit units of wire channel n (0 green, 1 red,
// 2 blue).
func (f Frame) Channel(n int) [8]Unit {
	var out [8]Unit
	copy(out[:], f[n*8:n*8+8])
	return out
}

// Color decodes the frame back into the color it carries.
func (f Frame) Color() model.Color {
	var grb [3]byte
	for i := 0; i < BitsPerFrame; i++ {
		grb[i/8] <<= 1
		if f[i] == One {
			grb[i/8] |= 1
		}
	}
	return model.NewColor(grb[1], grb[0], grb[2])
}

// Valid reports whether f has 24 bit units followed by exactly one Reset.
func (f Frame) Valid() bool {
	for i := 0; i < BitsPerFrame; i++ {
		if f[i] != Zero && f[i] != One {
			return false
		}
	}
	return f[BitsPerFrame] == Reset
}

func (f Frame) String() string {
	buf := make([]byte, 0, BitsPerFrame+3+len(" reset"))
	for i := 0; i < BitsPerFrame; i++ {
		if i > 0 && i%8 == 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, f[i].String()...)
	}
	buf = append(buf, ' ')
	buf = append(buf, f[BitsPerFrame].String()...)
	return string(buf)
}
