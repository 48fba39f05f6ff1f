package ws2812

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Patterns maps each 2-bit window of a channel byte to the wire byte that
// emulates it. Every logical bit becomes a 4-bit half: 1000 for Zero, 1110
// for One.
var Patterns = [4]byte{0b1000_1000, 0b1000_1110, 0b1110_1000, 0b1110_1110}

const (
	zeroHalf byte = 0b1000
	oneHalf  byte = 0b1110
)

// WireBytesPerFrame is the data part of a serial frame: 4 wire bytes per
// channel byte.
const WireBytesPerFrame = 3 * 4

// EncodeByte expands one channel byte into four wire bytes, taking the top
// two bits first.
func EncodeByte(b byte) [4]byte {
	var out [4]byte
	for i := range out {
		bits := (b & 0b1100_0000) >> 6
		out[i] = Patterns[bits]
		b <<= 2
	}
	return out
}

// DecodeByte inverts EncodeByte.
func DecodeByte(p [4]byte) (byte, error) {
	var b byte
	for _, w := range p {
		bits, ok := patternIndex(w)
		if !ok {
			return 0, fmt.Errorf("%w: %#08b", ErrPattern, w)
		}
		b = b<<2 | bits
	}
	return b, nil
}

func patternIndex(w byte) (byte, bool) {
	for i, p := range Patterns {
		if p == w {
			return byte(i), true
		}
	}
	return 0, false
}

func half(u Unit) byte {
	if u == One {
		return oneHalf
	}
	return zeroHalf
}

// SerialEncoder packs frames for a peripheral shifting bytes at a fixed
// clock. There is no reset primitive, so the reset unit becomes enough zero
// bytes to hold the line low for ResetHold.
type SerialEncoder struct {
	clock  physic.Frequency
	hz     int64
	filler int
}

// BitTiming is the waveform a serial clock actually produces for each bit
// value.
type BitTiming struct {
	OneHigh, OneLow   time.Duration
	ZeroHigh, ZeroLow time.Duration
	Reset             time.Duration
}

func NewSerialEncoder(clock physic.Frequency) (SerialEncoder, error) {
	if clock <= 0 {
		return SerialEncoder{}, fmt.Errorf("ws2812: invalid serial clock %s", clock)
	}
	hz := hertz(clock)
	bits := (int64(ResetHold)*hz + int64(time.Second) - 1) / int64(time.Second)
	return SerialEncoder{
		clock:  clock,
		hz:     hz,
		filler: int((bits + 7) / 8),
	}, nil
}

func (e SerialEncoder) Clock() physic.Frequency { return e.clock }

// Filler is the number of zero bytes standing in for the reset unit.
func (e SerialEncoder) Filler() int { return e.filler }

// FrameSize is the number of wire bytes AppendFrame adds.
func (e SerialEncoder) FrameSize() int { return WireBytesPerFrame + e.filler }

// Timing reports the emulated pulse widths at the configured clock.
func (e SerialEncoder) Timing() BitTiming {
	return BitTiming{
		OneHigh:  span(3, e.hz),
		OneLow:   span(1, e.hz),
		ZeroHigh: span(1, e.hz),
		ZeroLow:  span(3, e.hz),
		Reset:    e.ResetDuration(),
	}
}

// ResetDuration is how long the filler keeps the line low.
func (e SerialEncoder) ResetDuration() time.Duration {
	return span(int64(e.filler)*8, e.hz)
}

// AppendFrame appends the wire bytes for f to dst.
func (e SerialEncoder) AppendFrame(dst []byte, f Frame) []byte {
	for i := 0; i < BitsPerFrame; i += 2 {
		dst = append(dst, half(f[i])<<4|half(f[i+1]))
	}
	for i := 0; i < e.filler; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// Decode parses the output of AppendFrame.
func (e SerialEncoder) Decode(wire []byte) (Frame, error) {
	var f Frame
	if len(wire) != e.FrameSize() {
		return f, fmt.Errorf("%w: %d bytes, want %d", ErrFrameLength, len(wire), e.FrameSize())
	}
	for ch := 0; ch < 3; ch++ {
		var p [4]byte
		copy(p[:], wire[ch*4:ch*4+4])
		b, err := DecodeByte(p)
		if err != nil {
			return f, err
		}
		for i, u := range Bits(b) {
			f[ch*8+i] = u
		}
	}
	for _, w := range wire[WireBytesPerFrame:] {
		if w != 0 {
			return f, fmt.Errorf("%w: reset filler is not low", ErrPattern)
		}
	}
	f[BitsPerFrame] = Reset
	return f, nil
}
