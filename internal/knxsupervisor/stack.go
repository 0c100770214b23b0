package knxsupervisor

import (
	"context"
	"errors"
	"sync"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knx/l3"
	"github.com/basilfx/knx-devstack/internal/knx/l4"
	"github.com/basilfx/knx-devstack/internal/knx/l7"
	"github.com/basilfx/knx-devstack/internal/knx/netdev"
)

// mailboxSize bounds each layer task's receive mailbox.
const mailboxSize = 8

// Telegram direction labels passed to taps.
const (
	DirectionRx = "rx"
	DirectionTx = "tx"
)

// Tap observes every telegram crossing the link boundary, inbound and
// outbound. Taps run synchronously on the protocol path and must be
// fast; anything slow belongs behind its own buffer.
type Tap func(direction string, t knx.Telegram)

// FrameDevice is the slice of netdev.Device the stack needs; narrowed to
// an interface so tests can drive the stack without a transceiver.
type FrameDevice interface {
	Recv(ctx context.Context) (knx.Telegram, error)
	Send(ctx context.Context, t knx.Telegram) error
}

// Stack owns the goroutines and mailboxes the protocol layers run in:
// a link receive loop feeding the network layer's mailbox, and one task
// per layer draining its own. The layers themselves stay synchronous;
// every cross-layer handoff on the inbound path goes through a bounded
// channel, so a stalled upper layer sheds load by dropping telegrams
// instead of blocking the link.
type Stack struct {
	dev       FrameDevice
	network   *l3.Layer
	transport *l4.Layer
	app       *l7.Layer
	logger    Logger

	l3In chan knx.Telegram
	l4In chan knx.Telegram
	l7In chan knx.Telegram

	tapMu sync.RWMutex
	taps  []Tap
}

// NewStack wires the layers together: inbound handoffs run through the
// stack's mailboxes, the application layer sends through the transport
// layer (which stamps sequence numbers), and everything outbound funnels
// through one tap point before the network layer dispatches it.
func NewStack(dev FrameDevice, network *l3.Layer, transport *l4.Layer, app *l7.Layer, logger Logger) *Stack {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Stack{
		dev:       dev,
		network:   network,
		transport: transport,
		app:       app,
		logger:    logger,
		l3In:      make(chan knx.Telegram, mailboxSize),
		l4In:      make(chan knx.Telegram, mailboxSize),
		l7In:      make(chan knx.Telegram, mailboxSize),
	}

	network.Upward = func(t knx.Telegram) error {
		s.deliver(s.l4In, t, "l4")
		return nil
	}
	transport.Upward = func(t knx.Telegram) error {
		s.deliver(s.l7In, t, "l7")
		return nil
	}
	transport.Downward = func(ctx context.Context, t knx.Telegram) error {
		s.notifyTaps(DirectionTx, t)
		return network.Send(ctx, t)
	}
	app.Downward = transport.Send

	return s
}

// AddTap registers a telegram observer. Safe to call while the stack is
// running.
func (s *Stack) AddTap(tap Tap) {
	s.tapMu.Lock()
	s.taps = append(s.taps, tap)
	s.tapMu.Unlock()
}

func (s *Stack) notifyTaps(direction string, t knx.Telegram) {
	s.tapMu.RLock()
	taps := s.taps
	s.tapMu.RUnlock()
	for _, tap := range taps {
		tap(direction, t)
	}
}

// deliver enqueues a telegram into a layer mailbox without blocking: a
// full mailbox drops the telegram, bounding how far back-pressure can
// reach toward the link.
func (s *Stack) deliver(mailbox chan knx.Telegram, t knx.Telegram, layer string) {
	select {
	case mailbox <- t:
	default:
		s.logger.Warn("mailbox full, dropping telegram", "layer", layer)
	}
}

// Run registers the stack's workers with the supervisor and returns
// immediately; the workers run until ctx is cancelled.
func (s *Stack) Run(ctx context.Context, sup *Supervisor) {
	sup.Go(ctx, Worker{Name: "link-rx", Run: s.runLinkRx})
	sup.Go(ctx, Worker{Name: "l3", Run: s.runL3})
	sup.Go(ctx, Worker{Name: "l4", Run: s.runL4})
	sup.Go(ctx, Worker{Name: "l7", Run: s.runL7})
}

// runLinkRx drains the frame device: each valid telegram is tapped and
// handed to the network layer's mailbox; incomplete or malformed frames
// are logged and dropped, per the silent-drop policy for bad traffic.
func (s *Stack) runLinkRx(ctx context.Context) error {
	for {
		t, err := s.dev.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() //nolint:wrapcheck // cancellation passes through
			}
			if errors.Is(err, netdev.ErrClosed) {
				return err //nolint:wrapcheck // driver gone; supervisor restarts us
			}
			s.logger.Debug("dropping bad frame", "error", err)
			continue
		}
		s.notifyTaps(DirectionRx, t)
		s.deliver(s.l3In, t, "l3")
	}
}

func (s *Stack) runL3(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // cancellation passes through
		case t := <-s.l3In:
			if err := s.network.Receive(t); err != nil {
				s.logger.Warn("l3 receive failed", "error", err)
			}
		}
	}
}

func (s *Stack) runL4(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // cancellation passes through
		case t := <-s.l4In:
			if err := s.transport.Receive(ctx, t); err != nil {
				s.logger.Warn("l4 receive failed", "error", err)
			}
		}
	}
}

func (s *Stack) runL7(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // cancellation passes through
		case t := <-s.l7In:
			if err := s.app.Receive(ctx, t); err != nil {
				s.logger.Warn("l7 receive failed", "error", err)
			}
		}
	}
}
