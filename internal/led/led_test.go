package led

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/arcaluminis-neopixel/internal/ws2812"
	"github.com/coreman2200/arcaluminis-neopixel/model"
)

// recConn records every Tx. When gate is set each Tx blocks until it is
// closed. failAt makes the n-th Tx fail.
type recConn struct {
	mu     sync.Mutex
	writes [][]byte
	failAt int
	gate   chan struct{}
}

func (c *recConn) String() string { return "rec" }

func (c *recConn) Duplex() conn.Duplex { return conn.Half }

func (c *recConn) TxPackets([]spi.Packet) error { return errors.New("unsupported") }

func (c *recConn) Tx(w, r []byte) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes)+1 == c.failAt {
		return errors.New("bus error")
	}
	c.writes = append(c.writes, append([]byte(nil), w...))
	return nil
}

func (c *recConn) joined() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.writes, nil)
}

func claim(t *testing.T, name string) *Channel {
	t.Helper()
	ch, err := Claim(name)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Release() })
	return ch
}

func TestChannelClaimIsExclusive(t *testing.T) {
	ch := claim(t, "test:exclusive")
	_, err := Claim("test:exclusive")
	assert.ErrorIs(t, err, ErrChannelClaimed)

	require.NoError(t, ch.Release())
	again, err := Claim("test:exclusive")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestChannelStates(t *testing.T) {
	ch := claim(t, "test:states")
	assert.Equal(t, Idle, ch.State())
	require.NoError(t, ch.begin())
	assert.Equal(t, Transmitting, ch.State())
	assert.ErrorIs(t, ch.begin(), ErrChannelBusy)
	assert.ErrorIs(t, ch.Release(), ErrChannelBusy)
	ch.end()
	require.NoError(t, ch.Release())
	assert.ErrorIs(t, ch.begin(), ErrClosed)
}

func TestBitBangOneTxPerByte(t *testing.T) {
	c := &recConn{}
	b, err := NewBitBangedSerial(claim(t, "test:bitbang"), c, ws2812.DefaultSerialClock)
	require.NoError(t, err)

	f := ws2812.Build(model.NewColor(0xA5, 0x00, 0xFF))
	require.NoError(t, b.Transmit(f))

	want := b.Encoder().AppendFrame(nil, f)
	require.Len(t, c.writes, len(want))
	for _, w := range c.writes {
		assert.Len(t, w, 1)
	}
	assert.Equal(t, want, c.joined())
	assert.Equal(t, "bitbang{rec}", b.String())
}

func TestBitBangPlayback(t *testing.T) {
	enc, err := ws2812.NewSerialEncoder(ws2812.DefaultSerialClock)
	require.NoError(t, err)
	f := ws2812.Build(model.Green)

	p := &spitest.Playback{}
	for _, w := range enc.AppendFrame(nil, f) {
		p.Ops = append(p.Ops, conntest.IO{W: []byte{w}})
	}
	c, err := p.Connect(ws2812.DefaultSerialClock, spi.Mode0, 8)
	require.NoError(t, err)

	b, err := NewBitBangedSerial(claim(t, "test:playback"), c, ws2812.DefaultSerialClock)
	require.NoError(t, err)
	require.NoError(t, b.Transmit(f))
	assert.NoError(t, p.Close())
}

func TestBitBangFaultAborts(t *testing.T) {
	c := &recConn{failAt: 5}
	ch := claim(t, "test:bitbang-fault")
	b, err := NewBitBangedSerial(ch, c, ws2812.DefaultSerialClock)
	require.NoError(t, err)

	err = b.Transmit(ws2812.Build(model.Red))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, Abort, fault.Kind)
	assert.Len(t, c.writes, 4)
	assert.Equal(t, Idle, ch.State())
}

func TestBitBangSettle(t *testing.T) {
	c := &recConn{}
	b, err := NewBitBangedSerial(claim(t, "test:settle"), c, ws2812.DefaultSerialClock)
	require.NoError(t, err)
	require.NoError(t, b.Settle())
	assert.Equal(t, make([]byte, settleBytes), c.joined())
}

func TestDMAStartWhileInFlightIsBusy(t *testing.T) {
	c := &recConn{gate: make(chan struct{})}
	ch := claim(t, "test:dma")
	d, err := NewDMASerial(ch, c, ws2812.DefaultSerialClock)
	require.NoError(t, err)

	f := ws2812.Build(model.Blue)
	p, err := d.Start(f)
	require.NoError(t, err)
	assert.Equal(t, Transmitting, ch.State())

	_, err = d.Start(ws2812.Build(model.Red))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, Busy, fault.Kind)
	assert.ErrorIs(t, d.Close(), ErrChannelBusy)

	close(c.gate)
	require.NoError(t, p.Wait())
	require.NoError(t, p.Wait())
	assert.Equal(t, Idle, ch.State())

	require.Len(t, c.writes, 1)
	assert.Equal(t, d.Encoder().AppendFrame(nil, f), c.writes[0])
}

func TestDMATransmitFault(t *testing.T) {
	c := &recConn{failAt: 1}
	ch := claim(t, "test:dma-fault")
	d, err := NewDMASerial(ch, c, ws2812.DefaultSerialClock)
	require.NoError(t, err)

	err = d.Transmit(ws2812.Build(model.White))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "completion", fault.Op)
	assert.Equal(t, Idle, ch.State())
}

// limitedConn is a recConn that reports a maximum transfer size.
type limitedConn struct {
	recConn
	max int
}

func (c *limitedConn) MaxTxSize() int { return c.max }

func TestDMAOverrunOnShortPort(t *testing.T) {
	c := &limitedConn{max: 16}
	ch := claim(t, "test:dma-overrun")
	d, err := NewDMASerial(ch, c, ws2812.DefaultSerialClock)
	require.NoError(t, err)

	_, err = d.Start(ws2812.Build(model.Green))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, Overrun, fault.Kind)
	assert.ErrorIs(t, err, ErrOverrun)
	assert.Equal(t, Idle, ch.State())
	assert.Empty(t, c.writes)

	// The frame fits once the port takes it whole.
	c.max = d.Encoder().FrameSize()
	require.NoError(t, d.Transmit(ws2812.Build(model.Green)))
	assert.Len(t, c.writes, 1)
}

type recStream struct {
	mu      sync.Mutex
	streams []*gpiostream.BitStream
	err     error
}

func (s *recStream) String() string { return "GPIO18" }

func (s *recStream) StreamOut(st gpiostream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs := st.(*gpiostream.BitStream)
	s.streams = append(s.streams, &gpiostream.BitStream{
		Bits: append([]byte(nil), bs.Bits...),
		Freq: bs.Freq,
		LSBF: bs.LSBF,
	})
	return s.err
}

// runs returns the lengths of consecutive equal bits, MSB first, and the
// level of the first run.
func runs(b []byte) ([]int, bool) {
	var out []int
	first := b[0]&0x80 != 0
	cur, n := first, 0
	for _, x := range b {
		for i := 7; i >= 0; i-- {
			bit := x>>uint(i)&1 == 1
			if bit == cur {
				n++
				continue
			}
			out = append(out, n)
			cur, n = bit, 1
		}
	}
	return append(out, n), first
}

func TestPulseGeneratorRaster(t *testing.T) {
	s := &recStream{}
	g, err := NewPulseGenerator(claim(t, "test:pulse"), s, ws2812.DefaultPulseClock)
	require.NoError(t, err)
	require.NoError(t, g.Transmit(ws2812.Build(model.NewColor(0x00, 0x80, 0x00))))

	require.Len(t, s.streams, 1)
	bs := s.streams[0]
	assert.Equal(t, ws2812.DefaultPulseClock, bs.Freq)
	assert.False(t, bs.LSBF)
	// 24 bits of 100 cycles plus a 4000 cycle reset.
	assert.Len(t, bs.Bits, (24*100+4000)/8)

	r, high := runs(bs.Bits)
	require.True(t, high)
	// Green 0x80 starts with a one followed by a zero.
	assert.Equal(t, []int{68, 32, 32}, r[:3])
	assert.Equal(t, 68+4000, r[len(r)-1])
}

func TestPulseGeneratorFault(t *testing.T) {
	s := &recStream{err: errors.New("rmt stalled")}
	ch := claim(t, "test:pulse-fault")
	g, err := NewPulseGenerator(ch, s, ws2812.DefaultPulseClock)
	require.NoError(t, err)

	err = g.Transmit(ws2812.Build(model.Off))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, Abort, fault.Kind)
	assert.Equal(t, Idle, ch.State())
}

func TestPulseGeneratorRejectsClock(t *testing.T) {
	_, err := NewPulseGenerator(claim(t, "test:pulse-clock"), &recStream{}, 0)
	assert.Error(t, err)
}

func TestRasterize(t *testing.T) {
	codes := []ws2812.PulseCode{{Level1: true, Length1: 3, Level2: false, Length2: 2}}
	assert.Equal(t, []byte{0b1110_0000}, rasterize(nil, codes))
	codes = append(codes, ws2812.PulseCode{Level1: true, Length1: 4, Level2: false, Length2: 1})
	assert.Equal(t, []byte{0b1110_0111, 0b1000_0000}, rasterize(nil, codes))
}

func TestNRZ(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewNRZ(claim(t, "test:nrz"), spitest.NewRecordRaw(&buf))
	require.NoError(t, err)
	c := model.NewColor(0xA5, 0x12, 0xFE)
	require.NoError(t, n.Transmit(ws2812.Build(c)))

	// Twelve pattern bytes in GRB order, then a three byte latch.
	wire := buf.Bytes()
	require.Len(t, wire, 15)
	var grb [3]byte
	for i := range grb {
		b, err := ws2812.DecodeByte([4]byte(wire[4*i : 4*i+4]))
		require.NoError(t, err)
		grb[i] = b
	}
	assert.Equal(t, c.GRB(), grb)
	assert.Equal(t, []byte{0, 0, 0}, wire[12:])
}

func TestFaultKinds(t *testing.T) {
	assert.Equal(t, Busy, newFault("x", "op", ErrChannelBusy).Kind)
	assert.Equal(t, Overrun, newFault("x", "op", ErrOverrun).Kind)
	f := newFault("x", "op", errors.New("boom"))
	assert.Equal(t, Abort, f.Kind)
	assert.Equal(t, "x: abort fault during op: boom", f.Error())
}

func TestOpen(t *testing.T) {
	b, err := Open(Options{Kind: KindSim})
	require.NoError(t, err)
	assert.Equal(t, "sim", b.String())

	_, err = Open(Options{Kind: "laser"})
	assert.Error(t, err)

	_, err = Open(Options{Kind: KindPulse, PulsePin: "NOPE"})
	assert.Error(t, err)
}

func TestCleanupLogsReleaseError(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	cleanup("channel", func() error { return nil })
	assert.Zero(t, buf.Len())

	cleanup("spi port", func() error { return errors.New("port stuck") })
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"resource":"spi port"`)
	assert.Contains(t, buf.String(), `"error":"port stuck"`)
}
