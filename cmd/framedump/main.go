// framedump prints the WS2812 encodings of one or more colors.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
	"github.com/coreman2200/arcaluminis-neopixel/model"
)

// freq adapts physic.Frequency to pflag.
type freq struct{ *physic.Frequency }

func (freq) Type() string { return "frequency" }

func main() {
	serial := ws2812.DefaultSerialClock
	pulse := ws2812.DefaultPulseClock
	flag.Var(freq{&serial}, "serial-clock", "serial peripheral clock, e.g. 3.333MHz")
	flag.Var(freq{&pulse}, "pulse-clock", "pulse peripheral clock, e.g. 80MHz")
	words := flag.Bool("words", false, "print packed pulse words instead of cycle counts")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: framedump [flags] color...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	se, err := ws2812.NewSerialEncoder(serial)
	if err != nil {
		log.Fatal().Err(err).Msg("serial clock")
	}
	pe, err := ws2812.NewPulseEncoder(pulse)
	if err != nil {
		log.Fatal().Err(err).Msg("pulse clock")
	}

	tm := se.Timing()
	fmt.Printf("serial %s: one %s/%s zero %s/%s reset %s (%d filler bytes)\n",
		se.Clock(), tm.OneHigh, tm.OneLow, tm.ZeroHigh, tm.ZeroLow, tm.Reset, se.Filler())
	fmt.Printf("pulse %s: reset %s\n\n", pe.Clock(), pe.Duration(pe.Encode(ws2812.Reset).Cycles()))

	for _, arg := range flag.Args() {
		c, err := model.ParseColor(arg)
		if err != nil {
			log.Fatal().Err(err).Msg("parse color")
		}
		f := ws2812.Build(c)
		fmt.Printf("%s\n  units  %s\n", c, f)

		wire := se.AppendFrame(nil, f)
		fmt.Printf("  serial % x + %d x 00\n", wire[:ws2812.WireBytesPerFrame], se.Filler())

		codes := pe.EncodeFrame(f)
		if err := verify(se, pe, c, wire, codes[:]); err != nil {
			log.Fatal().Err(err).Stringer("color", c).Msg("encoding does not decode back")
		}

		var sb strings.Builder
		if *words {
			for i, w := range pe.AppendWords(nil, f) {
				if i > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprintf(&sb, "%08x", w)
			}
		} else {
			for i, p := range codes {
				if i > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprintf(&sb, "%s", pulseString(p))
			}
		}
		fmt.Printf("  pulse  %s\n", sb.String())
	}
}

// verify decodes both wire forms and checks they carry c.
func verify(se ws2812.SerialEncoder, pe ws2812.PulseEncoder, c model.Color, wire []byte, codes []ws2812.PulseCode) error {
	sf, err := se.Decode(wire)
	if err != nil {
		return errors.Wrap(err, "serial")
	}
	pf, err := pe.Decode(codes)
	if err != nil {
		return errors.Wrap(err, "pulse")
	}
	if sf.Color() != c || pf.Color() != c {
		return errors.Errorf("decoded serial %s pulse %s", sf.Color(), pf.Color())
	}
	return nil
}

func pulseString(p ws2812.PulseCode) string {
	lv := func(b bool) string {
		if b {
			return "H"
		}
		return "L"
	}
	return fmt.Sprintf("%s%d%s%d", lv(p.Level1), p.Length1, lv(p.Level2), p.Length2)
}
