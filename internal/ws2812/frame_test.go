package ws2812

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/arcaluminis-neopixel/model"
)

func TestBuildBlack(t *testing.T) {
	f := Build(model.Off)
	assert.Equal(t, FrameUnits, f.Len())
	for i := 0; i < BitsPerFrame; i++ {
		assert.Equal(t, Zero, f[i], "unit %d", i)
	}
	assert.Equal(t, Reset, f[BitsPerFrame])
}

func TestBuildWhite(t *testing.T) {
	f := Build(model.White)
	for i := 0; i < BitsPerFrame; i++ {
		assert.Equal(t, One, f[i], "unit %d", i)
	}
	assert.Equal(t, Reset, f[BitsPerFrame])
}

func TestBuildChannelOrderAndMSBFirst(t *testing.T) {
	f := Build(model.NewColor(0b1000_0000, 0, 0))

	red := f.Channel(1)
	assert.Equal(t, One, red[0])
	for i := 1; i < 8; i++ {
		assert.Equal(t, Zero, red[i], "red bit %d", i)
	}
	assert.Equal(t, [8]Unit{}, f.Channel(0), "green")
	assert.Equal(t, [8]Unit{}, f.Channel(2), "blue")
}

func TestBuildGreenFirst(t *testing.T) {
	f := Build(model.NewColor(0, 0x01, 0))
	// Green's LSB is the eighth unit on the wire.
	assert.Equal(t, One, f[7])
	assert.Equal(t, "00000001 00000000 00000000 reset", f.String())
}

func TestFrameRoundTrip(t *testing.T) {
	for r := 0; r < 256; r += 17 {
		for g := 0; g < 256; g += 13 {
			for b := 0; b < 256; b += 11 {
				c := model.NewColor(uint8(r), uint8(g), uint8(b))
				f := Build(c)
				if !assert.True(t, f.Valid()) {
					return
				}
				if !assert.Equal(t, c, f.Color()) {
					return
				}
			}
		}
	}
}

func TestFrameValid(t *testing.T) {
	f := Build(model.Red)
	assert.True(t, f.Valid())

	f[3] = Reset
	assert.False(t, f.Valid())

	g := Build(model.Red)
	g[BitsPerFrame] = Zero
	assert.False(t, g.Valid())
}

func TestBits(t *testing.T) {
	assert.Equal(t, [8]Unit{One, Zero, One, Zero, Zero, One, Zero, One}, Bits(0xA5))
}
