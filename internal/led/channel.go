package led

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrChannelBusy    = errors.New("led: channel is transmitting")
	ErrChannelClaimed = errors.New("led: channel already claimed")
	ErrClosed         = errors.New("led: channel released")
)

// ChannelState is Idle or Transmitting.
type ChannelState int32

const (
	Idle ChannelState = iota
	Transmitting
)

func (s ChannelState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transmitting:
		return "transmitting"
	default:
		return "unknown"
	}
}

// claims holds the names of every live Channel in the process.
var claims = struct {
	sync.Mutex
	m map[string]struct{}
}{m: map[string]struct{}{}}

// Channel is the exclusive handle on one physical output channel. Only one
// live Channel per name exists at a time; Release frees the name.
type Channel struct {
	name     string
	state    atomic.Int32
	released atomic.Bool
}

// Claim takes the channel called name, e.g. "spi:/dev/spidev0.0".
func Claim(name string) (*Channel, error) {
	claims.Lock()
	defer claims.Unlock()
	if _, ok := claims.m[name]; ok {
		return nil, errors.Wrap(ErrChannelClaimed, name)
	}
	claims.m[name] = struct{}{}
	return &Channel{name: name}, nil
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) State() ChannelState { return ChannelState(c.state.Load()) }

// begin moves Idle to Transmitting.
func (c *Channel) begin() error {
	if c.released.Load() {
		return ErrClosed
	}
	if !c.state.CompareAndSwap(int32(Idle), int32(Transmitting)) {
		return ErrChannelBusy
	}
	return nil
}

func (c *Channel) end() {
	c.state.Store(int32(Idle))
}

// Release gives the name back. It fails while a frame is in flight.
func (c *Channel) Release() error {
	if c.State() == Transmitting {
		return ErrChannelBusy
	}
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	claims.Lock()
	delete(claims.m, c.name)
	claims.Unlock()
	return nil
}
