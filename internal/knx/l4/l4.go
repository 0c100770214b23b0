package l4

import (
	"context"
	"sync"
	"time"

	"github.com/basilfx/knx-devstack/internal/knx"
)

const maxSeq = 16

// disconnectReason distinguishes why a NACK-triggered disconnect control
// telegram carries sequence number 0 — it is not part of any sequence, it
// is simply the fixed value gnrc_knx_l4.c uses for T_DISCONNECT_PDU.
const disconnectReason = 0

// Connection is the single active transport-layer session a System-7
// device supports. Bigger controllers multiplex several; this stack
// mirrors the original's one-at-a-time restriction.
type Connection struct {
	Connected bool
	Dest      knx.Address
	// destSeq is the sequence number expected on the next inbound NDP
	// telegram from Dest.
	destSeq int
	// srcSeq is the sequence number to stamp on the next outbound NDP
	// telegram to Dest.
	srcSeq    int
	Timestamp time.Time
}

// DefaultIdleTimeout is the inactivity window after which an otherwise
// healthy connection is torn down on the next inbound NDP rather than
// serviced.
const DefaultIdleTimeout = 6 * time.Second

// Layer is the transport layer. Upward delivers connectionless (UDP) and
// acknowledged (NDP) payloads to the application layer; Downward sends a
// fully-built telegram out through the network layer. Both must be set
// before Receive or Send is called.
type Layer struct {
	Upward   func(knx.Telegram) error
	Downward func(context.Context, knx.Telegram) error

	// IdleTimeout bounds how long a connection may sit without activity
	// before an inbound NDP tears it down instead of being serviced.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	mu   sync.Mutex
	conn Connection
}

// NewLayer creates an unconnected transport layer.
func NewLayer() *Layer {
	return &Layer{}
}

func (l *Layer) idleTimeout() time.Duration {
	if l.IdleTimeout <= 0 {
		return DefaultIdleTimeout
	}
	return l.IdleTimeout
}

// Connection returns a snapshot of the current connection state.
func (l *Layer) Connection() Connection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Receive processes an inbound telegram according to its TPCI class.
func (l *Layer) Receive(ctx context.Context, t knx.Telegram) error {
	switch t.TPCIClass() {
	case knx.ClassUCD:
		l.handleUCD(t)
		return nil
	case knx.ClassNCD:
		return l.handleNCD(ctx, t)
	case knx.ClassUDP:
		return l.forward(t)
	case knx.ClassNDP:
		return l.handleNDP(ctx, t)
	default:
		return nil
	}
}

func (l *Layer) forward(t knx.Telegram) error {
	if l.Upward == nil {
		return nil
	}
	return l.Upward(t)
}

func (l *Layer) handleUCD(t knx.Telegram) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch t.ControlSubCode() {
	case knx.UCDConnect:
		if l.conn.Connected {
			return
		}
		l.conn = Connection{
			Connected: true,
			Dest:      t.Source(),
			Timestamp: time.Now(),
		}
	case knx.UCDDisconnect:
		if l.conn.Connected && l.conn.Dest.Equal(t.Source()) {
			l.conn = Connection{}
		}
	}
}

func (l *Layer) handleNCD(ctx context.Context, t knx.Telegram) error {
	l.mu.Lock()

	if !l.conn.Connected || !l.conn.Dest.Equal(t.Source()) {
		l.mu.Unlock()
		return nil
	}

	switch t.ControlSubCode() {
	case knx.NCDACK:
		seq := t.SequenceNumber()
		if seq == l.conn.srcSeq {
			l.conn.Timestamp = time.Now()
			l.conn.srcSeq = (l.conn.srcSeq + 1) % maxSeq
		}
		l.mu.Unlock()
		return nil
	case knx.NCDNACK:
		l.conn.Connected = false
		l.mu.Unlock()
		return l.sendControl(ctx, t, knx.ClassUCD, knx.UCDDisconnect, disconnectReason)
	default:
		l.mu.Unlock()
		return nil
	}
}

func (l *Layer) handleNDP(ctx context.Context, t knx.Telegram) error {
	l.mu.Lock()

	if !l.conn.Connected || !l.conn.Dest.Equal(t.Source()) {
		l.mu.Unlock()
		return nil
	}

	if time.Since(l.conn.Timestamp) > l.idleTimeout() {
		l.conn.Connected = false
		l.mu.Unlock()
		return l.sendControl(ctx, t, knx.ClassUCD, knx.UCDDisconnect, disconnectReason)
	}

	seq := t.SequenceNumber()
	if seq != l.conn.destSeq {
		l.conn.Connected = false
		l.mu.Unlock()
		return l.sendControl(ctx, t, knx.ClassUCD, knx.UCDDisconnect, disconnectReason)
	}

	l.conn.Timestamp = time.Now()
	l.mu.Unlock()

	if err := l.forward(t); err != nil {
		return err
	}
	if err := l.sendControl(ctx, t, knx.ClassNCD, knx.NCDACK, seq); err != nil {
		return err
	}

	l.mu.Lock()
	l.conn.destSeq = (seq + 1) % maxSeq
	l.mu.Unlock()
	return nil
}

// sendControl builds and sends the individually-addressed reply telegram
// gnrc_knx_l4.c calls _send_control: source and destination swapped
// relative to in, same priority, carrying only a TPCI control byte.
func (l *Layer) sendControl(ctx context.Context, in knx.Telegram, class knx.TPCIClass, subcode, seq int) error {
	if l.Downward == nil {
		return nil
	}

	out := knx.Build(knx.Standard, in.Destination(), in.Source(), false)
	out.SetPriority(in.Priority())
	out.SetTPCIClass(class)
	out.SetControlSubCode(subcode)
	if class == knx.ClassNDP || class == knx.ClassNCD {
		out.SetSequenceNumber(seq)
	}

	return l.Downward(ctx, out)
}

// Send transmits an outbound telegram. NDP telegrams require an active
// connection to their destination and are stamped with the next
// outbound sequence number; UDP and other classes pass straight through.
func (l *Layer) Send(ctx context.Context, t knx.Telegram) error {
	if t.TPCIClass() == knx.ClassNDP {
		l.mu.Lock()
		if !l.conn.Connected || !l.conn.Dest.Equal(t.Destination()) {
			l.mu.Unlock()
			return ErrNotConnected
		}
		t.SetSequenceNumber(l.conn.srcSeq)
		l.mu.Unlock()
	}

	if l.Downward == nil {
		return nil
	}
	return l.Downward(ctx, t)
}
