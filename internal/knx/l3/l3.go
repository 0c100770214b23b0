package l3

import (
	"context"
	"errors"
	"sync"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knx/netdev"
)

// ErrNoInterface is returned by Send when no configured interface's
// address matches the telegram's source.
var ErrNoInterface = errors.New("l3: no interface for source address")

// Interface binds a physical address to the frame device that carries
// traffic for it. A device normally has exactly one interface, but
// nothing here assumes that.
type Interface struct {
	Address knx.Address
	Device  *netdev.Device
}

// Layer is the network layer: it filters inbound telegrams by
// destination and selects an outbound interface by source address.
// Upward receives every telegram accepted on the inbound path; it is
// the transport layer's entry point and must be set before Receive is
// called.
type Layer struct {
	Upward func(knx.Telegram) error

	mu         sync.RWMutex
	interfaces []Interface
}

// NewLayer creates a Layer with the given interfaces.
func NewLayer(interfaces ...Interface) *Layer {
	return &Layer{interfaces: append([]Interface(nil), interfaces...)}
}

// AddInterface registers an additional interface.
func (l *Layer) AddInterface(iface Interface) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interfaces = append(l.interfaces, iface)
}

func (l *Layer) findByAddress(addr knx.Address) (Interface, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, iface := range l.interfaces {
		if iface.Address.Equal(addr) {
			return iface, true
		}
	}
	return Interface{}, false
}

// Receive admits or drops an inbound telegram: group-addressed traffic
// always passes; individually-addressed traffic passes only if its
// destination is this device's own address or the broadcast address.
func (l *Layer) Receive(t knx.Telegram) error {
	if !t.GroupAddressed() {
		dst := t.Destination()
		if !dst.Equal(knx.Broadcast) {
			if _, ok := l.findByAddress(dst); !ok {
				return nil
			}
		}
	}
	if l.Upward == nil {
		return nil
	}
	return l.Upward(t)
}

// Send selects the interface whose address matches the telegram's
// source and dispatches it.
func (l *Layer) Send(ctx context.Context, t knx.Telegram) error {
	iface, ok := l.findByAddress(t.Source())
	if !ok {
		return ErrNoInterface
	}
	return iface.Device.Send(ctx, t)
}
