package led

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/arcaluminis-neopixel/internal/led/fake"
	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// Options selects and parameterizes a backend for Open.
type Options struct {
	Kind string
	// SPIDev is passed to spireg.Open; empty picks the first port.
	SPIDev   string
	SPIClock physic.Frequency
	// PulsePin is looked up with gpioreg.ByName.
	PulsePin   string
	PulseClock physic.Frequency
	// Fallback opens the console preview when no SPI port is found.
	Fallback bool
}

// Open claims the channel for o.Kind and builds the backend on it. The host
// drivers must already be loaded.
func Open(o Options) (Backend, error) {
	switch o.Kind {
	case KindBitBang, KindDMA, KindNRZ:
		return openSPI(o)
	case KindPulse:
		return openPulse(o)
	case KindPreview:
		ch, err := Claim("console")
		if err != nil {
			return nil, err
		}
		return NewPreview(ch), nil
	case KindSim:
		return fake.NewRecorder(), nil
	default:
		return nil, errors.Errorf("led: unknown backend %q", o.Kind)
	}
}

func openSPI(o Options) (Backend, error) {
	port, err := spireg.Open(o.SPIDev)
	if err != nil {
		if o.Fallback {
			log.Warn().Err(err).Msg("no SPI port found, previewing on the console")
			return Open(Options{Kind: KindPreview})
		}
		return nil, errors.Wrap(err, "led: open spi port")
	}
	ch, err := Claim("spi:" + port.String())
	if err != nil {
		cleanup("spi port", port.Close)
		return nil, err
	}

	var b Backend
	if o.Kind == KindNRZ {
		b, err = NewNRZ(ch, port)
	} else {
		b, err = connectSerial(o, ch, port)
	}
	if err != nil {
		cleanup("channel", ch.Release)
		cleanup("spi port", port.Close)
		return nil, err
	}
	return &owned{Backend: b, res: port}, nil
}

func connectSerial(o Options, ch *Channel, port spi.Port) (Backend, error) {
	clock := o.SPIClock
	if clock == 0 {
		clock = ws2812.DefaultSerialClock
	}
	conn, err := port.Connect(clock, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrapf(err, "led: connect spi at %s", clock)
	}
	if o.Kind == KindDMA {
		return NewDMASerial(ch, conn, clock)
	}
	return NewBitBangedSerial(ch, conn, clock)
}

func openPulse(o Options) (Backend, error) {
	p := gpioreg.ByName(o.PulsePin)
	if p == nil {
		return nil, errors.Errorf("led: no pin %q", o.PulsePin)
	}
	out, ok := p.(gpiostream.PinOut)
	if !ok {
		return nil, errors.Errorf("led: pin %s cannot stream", p)
	}
	clock := o.PulseClock
	if clock == 0 {
		clock = ws2812.DefaultPulseClock
	}
	ch, err := Claim("rmt:" + p.Name())
	if err != nil {
		return nil, err
	}
	g, err := NewPulseGenerator(ch, out, clock)
	if err != nil {
		cleanup("channel", ch.Release)
		return nil, err
	}
	return g, nil
}

// cleanup runs a release on a failed open. The open error is what the
// caller sees, so a release error is only logged.
func cleanup(what string, release func() error) {
	if err := release(); err != nil {
		log.Debug().Err(err).Str("resource", what).Msg("release after failed open")
	}
}

// owned closes the resource the backend was built on after the backend.
type owned struct {
	Backend
	res io.Closer
}

func (o *owned) Settle() error {
	if s, ok := o.Backend.(Settler); ok {
		return s.Settle()
	}
	return nil
}

func (o *owned) Close() error {
	err := o.Backend.Close()
	if cerr := o.res.Close(); err == nil {
		err = cerr
	}
	return err
}
