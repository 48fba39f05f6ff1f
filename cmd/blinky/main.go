package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis-neopixel/internal/config"
	diag "github.com/coreman2200/arcaluminis-neopixel/internal/diagnostics"
	"github.com/coreman2200/arcaluminis-neopixel/internal/led"
	"github.com/coreman2200/arcaluminis-neopixel/internal/monitor"
	"github.com/coreman2200/arcaluminis-neopixel/internal/sequence"
)

const heartbeat = 10 * time.Second

func main() {
	var (
		configPath = flag.StringP("config", "c", "blinky.yaml", "path to a YAML or TOML config")
		backend    = flag.StringP("backend", "b", "", "backend: bitbang | dma | pulse | nrzled | preview | sim")
		spiDev     = flag.String("spi-dev", "", "SPI port name (empty picks the first)")
		speedHz    = flag.Int64("speed-hz", 0, "SPI clock in Hz")
		pin        = flag.String("pin", "", "pulse output pin, e.g. GPIO18")
		addr       = flag.String("monitor", "", "monitor listen address, e.g. :8080")
		loop       = flag.Bool("loop", false, "repeat the palette until interrupted")
		verbose    = flag.BoolP("verbose", "v", false, "debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		cfg = config.Default()
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *spiDev != "" {
		cfg.SPI.Dev = *spiDev
	}
	if *speedHz != 0 {
		cfg.SPI.SpeedHz = *speedHz
	}
	if *pin != "" {
		cfg.Pulse.Pin = *pin
	}
	if *addr != "" {
		cfg.Monitor.Addr = *addr
	}
	if *loop {
		cfg.Sequence.Loop = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	lvl, _ := zerolog.ParseLevel(cfg.Log.Level)
	zerolog.SetGlobalLevel(lvl)

	if err := run(cfg); err != nil {
		var fault *led.Fault
		if errors.As(err, &fault) {
			log.Error().Err(err).Str("backend", fault.Backend).Stringer("kind", fault.Kind).Msg("halted on transmission fault")
		} else {
			log.Error().Err(err).Msg("blinky failed")
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.Backend != led.KindSim && cfg.Backend != led.KindPreview {
		if _, err := host.Init(); err != nil {
			return errors.Wrap(err, "host init")
		}
	}
	opts := cfg.LedOptions()
	opts.Fallback = true
	b, err := led.Open(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("close backend")
		}
	}()

	prog, err := cfg.Program()
	if err != nil {
		return err
	}
	mon := monitor.New(b.String())
	seq, err := sequence.NewSequencer(b, prog, mon.Hooks())
	if err != nil {
		return err
	}
	seq.Reporter = diag.Multi{diag.Log{L: log.Logger}, mon}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("backend", b.String()).
		Int("colors", len(prog.Colors)).
		Dur("delay", prog.Delay).
		Bool("loop", prog.Loop).
		Msg("starting sequence")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := seq.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.Monitor.Addr != "" {
		g.Go(func() error { return mon.ListenAndServe(gctx, cfg.Monitor.Addr) })
	}
	g.Go(func() error {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				log.Info().Str("state", string(seq.State())).Int("frames", seq.Sent()).Msg("heartbeat")
			}
		}
	})
	return g.Wait()
}
