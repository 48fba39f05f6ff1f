package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-neopixel/internal/led"
	"github.com/coreman2200/arcaluminis-neopixel/internal/sequence"
	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
	"github.com/coreman2200/arcaluminis-neopixel/model"
)

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

type SPI struct {
	Dev     string `yaml:"dev"`      // "" picks the first port
	SpeedHz int64  `yaml:"speed_hz"` // e.g. 3333000
}

type Pulse struct {
	Pin     string `yaml:"pin"`      // e.g. GPIO18
	ClockHz int64  `yaml:"clock_hz"` // e.g. 80000000
}

type WakePin struct {
	Pin   string `yaml:"pin"`
	Level string `yaml:"level"` // "high" | "low"
}

// Sleep is enabled when it names a timer or at least one pin.
type Sleep struct {
	Timer Duration  `yaml:"timer,omitempty"`
	Pins  []WakePin `yaml:"pins,omitempty"`
}

func (s Sleep) Enabled() bool { return s.Timer > 0 || len(s.Pins) > 0 }

type Sequence struct {
	Colors []string `yaml:"colors"` // names or #rrggbb
	Delay  Duration `yaml:"delay"`
	Loop   bool     `yaml:"loop"`
	Sleep  Sleep    `yaml:"sleep,omitempty"`
}

type Monitor struct {
	Addr string `yaml:"addr"` // "" disables the monitor
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Backend  string   `yaml:"backend"` // see led.Kinds
	SPI      SPI      `yaml:"spi"`
	Pulse    Pulse    `yaml:"pulse"`
	Sequence Sequence `yaml:"sequence"`
	Monitor  Monitor  `yaml:"monitor"`
	Log      Log      `yaml:"log"`
}

// Default runs the red, green, blue, off palette once over bit-banged SPI.
func Default() *Config {
	return &Config{
		Backend: led.KindBitBang,
		SPI:     SPI{SpeedHz: hz(ws2812.DefaultSerialClock)},
		Pulse:   Pulse{Pin: "GPIO18", ClockHz: hz(ws2812.DefaultPulseClock)},
		Sequence: Sequence{
			Colors: []string{"red", "green", "blue", "off"},
			Delay:  Duration(sequence.DefaultDelay),
		},
		Log: Log{Level: "info"},
	}
}

func hz(f physic.Frequency) int64 { return int64(f / physic.Hertz) }

// Load reads path over the defaults. Files ending in .toml are TOML,
// anything else YAML.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if b, err = tomlToYAML(b); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return c, nil
}

// tomlToYAML re-encodes a TOML document so both formats share one decoder.
func tomlToYAML(b []byte) ([]byte, error) {
	t, err := toml.LoadBytes(b)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(t.ToMap())
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	known := false
	for _, k := range led.Kinds {
		known = known || k == c.Backend
	}
	if !known {
		return errors.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.SPI.SpeedHz < 0 || c.Pulse.ClockHz < 0 {
		return errors.New("config: negative clock")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log level")
	}
	_, err := c.Program()
	return err
}

// Program converts the sequence section.
func (c *Config) Program() (sequence.Program, error) {
	p := sequence.Program{
		Delay: time.Duration(c.Sequence.Delay),
		Loop:  c.Sequence.Loop,
	}
	if len(c.Sequence.Colors) == 0 {
		return p, errors.New("config: sequence has no colors")
	}
	for _, s := range c.Sequence.Colors {
		col, err := model.ParseColor(s)
		if err != nil {
			return p, errors.Wrap(err, "config")
		}
		p.Colors = append(p.Colors, col)
	}
	if p.Delay < 0 {
		return p, errors.Errorf("config: negative delay %s", p.Delay)
	}
	if !c.Sequence.Sleep.Enabled() {
		return p, nil
	}
	if p.Loop {
		return p, errors.New("config: sleep cannot follow a looping sequence")
	}
	w := &sequence.WakeConfig{Timer: time.Duration(c.Sequence.Sleep.Timer)}
	for _, wp := range c.Sequence.Sleep.Pins {
		var l gpio.Level
		switch strings.ToLower(wp.Level) {
		case "high":
			l = gpio.High
		case "low":
			l = gpio.Low
		default:
			return p, errors.Errorf("config: wake pin %s: level %q is not high or low", wp.Pin, wp.Level)
		}
		w.Pins = append(w.Pins, sequence.WakePin{Pin: wp.Pin, Level: l})
	}
	p.Sleep = w
	return p, nil
}

// LedOptions maps the backend sections to led.Open options.
func (c *Config) LedOptions() led.Options {
	return led.Options{
		Kind:       c.Backend,
		SPIDev:     c.SPI.Dev,
		SPIClock:   physic.Frequency(c.SPI.SpeedHz) * physic.Hertz,
		PulsePin:   c.Pulse.Pin,
		PulseClock: physic.Frequency(c.Pulse.ClockHz) * physic.Hertz,
	}
}
