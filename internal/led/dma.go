package led

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
)

// spiBulk hands the whole buffer to the peripheral in one Tx running on its
// own goroutine. Completion is signalled on done.
type spiBulk struct {
	conn spi.Conn
	next Handle
	done chan error
}

func (s *spiBulk) BeginTransfer(units []byte) (Handle, error) {
	if s.done != nil {
		return 0, ErrChannelBusy
	}
	// A buffer the port cannot take in one Tx would be split, and the gap
	// between the pieces latches the strip mid frame.
	if l, ok := s.conn.(conn.Limits); ok {
		if limit := l.MaxTxSize(); limit > 0 && len(units) > limit {
			return 0, errors.Wrapf(ErrOverrun, "%d bytes, port takes %d", len(units), limit)
		}
	}
	s.next++
	done := make(chan error, 1)
	s.done = done
	go func(c spi.Conn) {
		done <- c.Tx(units, nil)
	}(s.conn)
	return s.next, nil
}

func (s *spiBulk) AwaitCompletion(h Handle) error {
	if s.done == nil || h != s.next {
		return errors.Wrapf(errUnknownTransfer, "handle %d", h)
	}
	err := <-s.done
	s.done = nil
	return err
}

// DMASerial is the serial backend with a split start/wait. Between Start and
// Wait the encoded buffer is on loan to the peripheral and the channel stays
// Transmitting, so a second Start fails with a Busy fault.
type DMASerial struct {
	name string
	ch   *Channel
	enc  ws2812.SerialEncoder
	eng  Transferer[byte]
	buf  []byte
	mu   sync.Mutex
}

// Pending is a frame in flight on a DMASerial.
type Pending struct {
	d    *DMASerial
	h    Handle
	once sync.Once
	err  error
}

func NewDMASerial(ch *Channel, conn spi.Conn, clock physic.Frequency) (*DMASerial, error) {
	enc, err := ws2812.NewSerialEncoder(clock)
	if err != nil {
		return nil, err
	}
	return &DMASerial{
		name: KindDMA + "{" + conn.String() + "}",
		ch:   ch,
		enc:  enc,
		eng:  &spiBulk{conn: conn},
		buf:  make([]byte, 0, settleBytes),
	}, nil
}

// Start encodes f and begins the transfer without waiting for it.
func (d *DMASerial) Start(f ws2812.Frame) (*Pending, error) {
	return d.start(func(buf []byte) []byte { return d.enc.AppendFrame(buf, f) })
}

func (d *DMASerial) start(fill func([]byte) []byte) (*Pending, error) {
	if err := d.ch.begin(); err != nil {
		return nil, newFault(d.name, "start", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = fill(d.buf[:0])
	h, err := d.eng.BeginTransfer(d.buf)
	if err != nil {
		d.ch.end()
		return nil, newFault(d.name, "transfer", err)
	}
	return &Pending{d: d, h: h}, nil
}

// Wait blocks until the transfer completes. Calling it again returns the
// same result.
func (p *Pending) Wait() error {
	p.once.Do(func() {
		p.d.mu.Lock()
		err := p.d.eng.AwaitCompletion(p.h)
		p.d.mu.Unlock()
		p.d.ch.end()
		if err != nil {
			p.err = newFault(p.d.name, "completion", err)
		}
	})
	return p.err
}

func (d *DMASerial) Transmit(f ws2812.Frame) error {
	p, err := d.Start(f)
	if err != nil {
		return err
	}
	return p.Wait()
}

func (d *DMASerial) Settle() error {
	p, err := d.start(func(buf []byte) []byte {
		for i := 0; i < settleBytes; i++ {
			buf = append(buf, 0)
		}
		return buf
	})
	if err != nil {
		return err
	}
	return p.Wait()
}

func (d *DMASerial) Encoder() ws2812.SerialEncoder { return d.enc }

func (d *DMASerial) Close() error { return d.ch.Release() }

func (d *DMASerial) String() string { return d.name }
