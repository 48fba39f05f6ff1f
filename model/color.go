package model

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	RED_OFFSET   uint8 = 0x10
	GREEN_OFFSET uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

// Color is an immutable 24-bit RGB value. Two colors are the same color when
// they compare equal with ==.
type Color struct {
	r, g, b uint8
}

var (
	Off   = Color{}
	Red   = Color{r: 0xFF}
	Green = Color{g: 0xFF}
	Blue  = Color{b: 0xFF}
	White = Color{r: 0xFF, g: 0xFF, b: 0xFF}
)

// DefaultPalette is the demonstration cycle: red, green, blue, then off.
var DefaultPalette = []Color{Red, Green, Blue, Off}

var named = map[string]Color{
	"off":   Off,
	"black": Off,
	"red":   Red,
	"green": Green,
	"blue":  Blue,
	"white": White,
}

func NewColor(r, g, b uint8) Color {
	return Color{r: r, g: g, b: b}
}

// FromPacked unpacks 0x00RRGGBB. The top byte is ignored.
func FromPacked(c uint32) Color {
	return Color{
		r: getcolor(c, RED_OFFSET),
		g: getcolor(c, GREEN_OFFSET),
		b: getcolor(c, BLUE_OFFSET),
	}
}

// ParseColor accepts a color name (red, green, blue, white, off, black) or a
// hex triplet such as "#ff8800".
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return FromPacked(uint32(v)), nil
}

func (c Color) R() uint8 { return c.r }
func (c Color) G() uint8 { return c.g }
func (c Color) B() uint8 { return c.b }

// Packed returns the color as 0x00RRGGBB.
func (c Color) Packed() uint32 {
	var v uint32
	v = setcolor(v, c.r, RED_OFFSET)
	v = setcolor(v, c.g, GREEN_OFFSET)
	v = setcolor(v, c.b, BLUE_OFFSET)
	return v
}

// GRB returns the channel bytes in wire order.
func (c Color) GRB() [3]byte {
	return [3]byte{c.g, c.r, c.b}
}

func (c Color) ToNRGBA() color.NRGBA {
	return color.NRGBA{R: c.r, G: c.g, B: c.b, A: 0xFF}
}

// String returns "#rrggbb".
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

func setcolor(c uint32, n uint8, off uint8) uint32 {
	var val uint32 = uint32(n) << off
	var mask uint32 = 0xFF << off
	return (c & (^mask)) | val
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & (mask)) >> off)
}
