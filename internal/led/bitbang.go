package led

import (
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// spiBytes shifts one byte per Tx call; the transfer is done by the time
// BeginTransfer returns.
type spiBytes struct {
	conn spi.Conn
	next Handle
	err  error
}

func (s *spiBytes) BeginTransfer(units []byte) (Handle, error) {
	s.next++
	s.err = nil
	for i := range units {
		if err := s.conn.Tx(units[i:i+1], nil); err != nil {
			s.err = err
			break
		}
	}
	return s.next, nil
}

func (s *spiBytes) AwaitCompletion(h Handle) error {
	if h != s.next {
		return errUnknownTransfer
	}
	return s.err
}

// BitBangedSerial drives the strip from a serial peripheral, writing the
// encoded bytes one at a time.
type BitBangedSerial struct {
	transmitter[byte]
	enc ws2812.SerialEncoder
	buf []byte
}

// NewBitBangedSerial wraps conn, which must already be connected at clock.
func NewBitBangedSerial(ch *Channel, conn spi.Conn, clock physic.Frequency) (*BitBangedSerial, error) {
	enc, err := ws2812.NewSerialEncoder(clock)
	if err != nil {
		return nil, err
	}
	return &BitBangedSerial{
		transmitter: transmitter[byte]{
			name: KindBitBang + "{" + conn.String() + "}",
			ch:   ch,
			tx:   &spiBytes{conn: conn},
		},
		enc: enc,
		buf: make([]byte, 0, enc.FrameSize()),
	}, nil
}

func (b *BitBangedSerial) Encoder() ws2812.SerialEncoder { return b.enc }

func (b *BitBangedSerial) Transmit(f ws2812.Frame) error {
	b.buf = b.enc.AppendFrame(b.buf[:0], f)
	return b.run(b.buf)
}

func (b *BitBangedSerial) Settle() error {
	return b.run(make([]byte, settleBytes))
}
