package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-neopixel/internal/sequence"
	"github.com/coreman2200/arcaluminis-neopixel/model"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	p, err := c.Program()
	require.NoError(t, err)
	assert.Equal(t, sequence.DefaultProgram(), p)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "blinky.yaml", `
backend: dma
spi:
  dev: /dev/spidev0.1
sequence:
  colors: [white, "#102030"]
  delay: 250ms
  sleep:
    timer: 5s
    pins:
      - pin: GPIO0
        level: low
monitor:
  addr: ":8080"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "dma", c.Backend)
	assert.Equal(t, "/dev/spidev0.1", c.SPI.Dev)
	// Unset fields keep their defaults.
	assert.Equal(t, int64(3333000), c.SPI.SpeedHz)
	assert.Equal(t, "info", c.Log.Level)

	p, err := c.Program()
	require.NoError(t, err)
	assert.Equal(t, []model.Color{model.White, model.NewColor(0x10, 0x20, 0x30)}, p.Colors)
	assert.Equal(t, 250*time.Millisecond, p.Delay)
	require.NotNil(t, p.Sleep)
	assert.Equal(t, 5*time.Second, p.Sleep.Timer)
	assert.Equal(t, []sequence.WakePin{{Pin: "GPIO0", Level: gpio.Low}}, p.Sleep.Pins)

	o := c.LedOptions()
	assert.Equal(t, "dma", o.Kind)
	assert.Equal(t, 3333*physic.KiloHertz, o.SPIClock)
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "blinky.toml", `
backend = "pulse"

[pulse]
pin = "GPIO21"
clock_hz = 40000000

[sequence]
colors = ["red", "off"]
delay = "1s"
loop = true

[log]
level = "debug"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "pulse", c.Backend)
	assert.Equal(t, "GPIO21", c.Pulse.Pin)
	assert.Equal(t, 40*physic.MegaHertz, c.LedOptions().PulseClock)
	assert.Equal(t, Duration(time.Second), c.Sequence.Delay)
	assert.True(t, c.Sequence.Loop)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	c := Default()
	c.Backend = "sim"
	c.Sequence.Delay = Duration(750 * time.Millisecond)
	c.Sequence.Sleep = Sleep{Timer: Duration(time.Minute), Pins: []WakePin{{Pin: "GPIO4", Level: "high"}}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, c))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"backend":   func(c *Config) { c.Backend = "laser" },
		"color":     func(c *Config) { c.Sequence.Colors = []string{"mauve"} },
		"no colors": func(c *Config) { c.Sequence.Colors = nil },
		"level":     func(c *Config) { c.Sequence.Sleep.Pins = []WakePin{{Pin: "GPIO0", Level: "up"}} },
		"loop+sleep": func(c *Config) {
			c.Sequence.Loop = true
			c.Sequence.Sleep.Timer = Duration(time.Second)
		},
		"log":   func(c *Config) { c.Log.Level = "loud" },
		"delay": func(c *Config) { c.Sequence.Delay = Duration(-time.Second) },
		"clock": func(c *Config) { c.SPI.SpeedHz = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(write(t, "bad.yaml", "sequence:\n  delay: soon\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "bad.toml", "backend = \n"))
	assert.Error(t, err)
}
