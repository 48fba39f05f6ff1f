package led

import (
	"runtime"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// StreamOut is the part of gpiostream.PinOut the pulse engine uses.
type StreamOut interface {
	String() string
	StreamOut(s gpiostream.Stream) error
}

// pulseStream plays pulse codes on a pin by rasterizing them into a bit
// stream sampled at the pulse clock, one bit per cycle.
type pulseStream struct {
	out   StreamOut
	clock physic.Frequency
	next  Handle
	bits  []byte
	done  atomic.Bool
	err   error
}

func (p *pulseStream) BeginTransfer(codes []ws2812.PulseCode) (Handle, error) {
	p.bits = rasterize(p.bits[:0], codes)
	p.next++
	p.err = nil
	p.done.Store(false)
	s := &gpiostream.BitStream{Bits: p.bits, Freq: p.clock, LSBF: false}
	go func() {
		p.err = p.out.StreamOut(s)
		p.done.Store(true)
	}()
	return p.next, nil
}

// AwaitCompletion spins on the completion flag, yielding between checks.
func (p *pulseStream) AwaitCompletion(h Handle) error {
	if h != p.next {
		return errUnknownTransfer
	}
	for !p.done.Load() {
		runtime.Gosched()
	}
	return p.err
}

// rasterize appends codes as MSB-first bits, one per clock cycle. The tail
// of the last byte is padded low.
func rasterize(dst []byte, codes []ws2812.PulseCode) []byte {
	var cur byte
	n := 0
	emit := func(level bool, length uint16) {
		for i := uint16(0); i < length; i++ {
			cur <<= 1
			if level {
				cur |= 1
			}
			n++
			if n == 8 {
				dst = append(dst, cur)
				cur, n = 0, 0
			}
		}
	}
	for _, c := range codes {
		emit(c.Level1, c.Length1)
		emit(c.Level2, c.Length2)
	}
	if n > 0 {
		dst = append(dst, cur<<(8-n))
	}
	return dst
}

// PulseGenerator drives the strip from a pulse peripheral: each unit is one
// two-phase pulse code measured in clock cycles.
type PulseGenerator struct {
	transmitter[ws2812.PulseCode]
	enc   ws2812.PulseEncoder
	codes [ws2812.FrameUnits]ws2812.PulseCode
}

// NewPulseGenerator fails when clock cannot express the WS2812 timings in
// whole cycles.
func NewPulseGenerator(ch *Channel, out StreamOut, clock physic.Frequency) (*PulseGenerator, error) {
	enc, err := ws2812.NewPulseEncoder(clock)
	if err != nil {
		return nil, err
	}
	return &PulseGenerator{
		transmitter: transmitter[ws2812.PulseCode]{
			name: KindPulse + "{" + out.String() + "}",
			ch:   ch,
			tx:   &pulseStream{out: out, clock: clock},
		},
		enc: enc,
	}, nil
}

func (g *PulseGenerator) Encoder() ws2812.PulseEncoder { return g.enc }

func (g *PulseGenerator) Transmit(f ws2812.Frame) error {
	g.codes = g.enc.EncodeFrame(f)
	return g.run(g.codes[:])
}
