package led

import "github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"

// Backend abstracts a WS2812 output sink.
type Backend interface {
	// Transmit emits one frame and returns once it, reset hold included, has
	// left the peripheral. A frame is never retried.
	Transmit(f ws2812.Frame) error
	// Close releases the channel.
	Close() error
	String() string
}

// Settler is implemented by backends that can drive the line low for a long
// stretch before the first frame.
type Settler interface {
	Settle() error
}

// settleBytes is how many zero bytes a serial backend shifts out to settle.
const settleBytes = 256

const (
	KindBitBang = "bitbang"
	KindDMA     = "dma"
	KindPulse   = "pulse"
	KindNRZ     = "nrzled"
	KindPreview = "preview"
	KindSim     = "sim"
)

// Kinds lists every backend Open understands.
var Kinds = []string{KindBitBang, KindDMA, KindPulse, KindNRZ, KindPreview, KindSim}
