package led

import (
	"fmt"
	"image"
	"os"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// NRZFreq is the SPI clock nrzled requires: four SPI bits per LED bit,
// 400ns each.
const NRZFreq = 2500 * physic.KiloHertz

// DrawerBackend paints each frame's color as a single pixel on a
// display.Drawer. It backs the nrzled reference driver and the console
// preview.
type DrawerBackend struct {
	name    string
	ch      *Channel
	drawer  display.Drawer
	img     *image.NRGBA
	newline bool
}

// NewNRZ drives a one-pixel strip through periph's own NRZ encoder.
func NewNRZ(ch *Channel, port spi.Port) (*DrawerBackend, error) {
	d, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: 1,
		Channels:  3,
		Freq:      NRZFreq,
	})
	if err != nil {
		return nil, err
	}
	return newDrawer(KindNRZ+"{"+d.String()+"}", ch, d, false), nil
}

// NewPreview prints the color as an ANSI block on stdout.
func NewPreview(ch *Channel) *DrawerBackend {
	return newDrawer(KindPreview, ch, screen.New(1), true)
}

func newDrawer(name string, ch *Channel, d display.Drawer, newline bool) *DrawerBackend {
	return &DrawerBackend{
		name:    name,
		ch:      ch,
		drawer:  d,
		img:     image.NewNRGBA(image.Rect(0, 0, 1, 1)),
		newline: newline,
	}
}

func (d *DrawerBackend) Transmit(f ws2812.Frame) error {
	if err := d.ch.begin(); err != nil {
		return newFault(d.name, "begin", err)
	}
	defer d.ch.end()

	d.img.SetNRGBA(0, 0, f.Color().ToNRGBA())
	if err := d.drawer.Draw(d.drawer.Bounds(), d.img, image.Point{}); err != nil {
		return newFault(d.name, "draw", err)
	}
	if d.newline {
		fmt.Fprint(os.Stdout, "\n")
	}
	return nil
}

// Close blanks the pixel and releases the channel.
func (d *DrawerBackend) Close() error {
	if err := d.drawer.Halt(); err != nil {
		return err
	}
	return d.ch.Release()
}

func (d *DrawerBackend) String() string { return d.name }
