package transceiver

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the optional logging hook a Driver reports framing and I/O
// problems through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds operational counters, safe for concurrent reads while Run
// is active.
type Stats struct {
	TelegramsRx  uint64
	TelegramsTx  uint64
	Incomplete   uint64
	Dropped      uint64
	LastActivity time.Time
}

// Driver implements the shared TPUART/NCN5120 host protocol over a byte
// stream: receive framing with an end-of-telegram gap timer and rolling
// CRC, and a request/response command protocol (reset, state, set
// address, send) serialised against the same stream. One Driver owns one
// UART exclusively; Run is its single reader.
type Driver struct {
	port   io.ReadWriter
	params Params
	logger Logger

	events chan Event

	// cmdMu serialises host-initiated requests: only one may be
	// in flight at a time, matching the single in-flight command the
	// chips themselves support.
	cmdMu sync.Mutex

	// mu guards st and resp, shared between Run (the single reader) and
	// whichever goroutine currently holds cmdMu.
	mu   sync.Mutex
	st   state
	resp chan byte

	rxBuf        []byte
	rxMin, rxMax int

	telegramsRx atomic.Uint64
	telegramsTx atomic.Uint64
	incomplete  atomic.Uint64
	dropped     atomic.Uint64
	lastUnixNS  atomic.Int64
}

// New creates a Driver bound to port, using the given variant Params.
// logger may be nil.
func New(port io.ReadWriter, params Params, logger Logger) *Driver {
	return &Driver{
		port:   port,
		params: params,
		logger: logger,
		events: make(chan Event, 16),
	}
}

// Events returns the channel telegrams and framing events are delivered
// on. The caller should drain it for as long as Run is active.
func (d *Driver) Events() <-chan Event {
	return d.events
}

// Stats returns a snapshot of the driver's counters.
func (d *Driver) Stats() Stats {
	var ts time.Time
	if ns := d.lastUnixNS.Load(); ns != 0 {
		ts = time.Unix(0, ns)
	}
	return Stats{
		TelegramsRx:  d.telegramsRx.Load(),
		TelegramsTx:  d.telegramsTx.Load(),
		Incomplete:   d.incomplete.Load(),
		Dropped:      d.dropped.Load(),
		LastActivity: ts,
	}
}

// Run reads the UART until ctx is cancelled or a read error occurs,
// driving the receive state machine and completing telegrams on the
// end-of-telegram gap timer. It closes the Events channel before
// returning. Run is not safe to call more than once per Driver.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.events)

	byteCh := make(chan byte, 32)
	errCh := make(chan error, 1)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := d.port.Read(buf)
			if err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
				}
				return
			}
			if n == 0 {
				continue
			}
			select {
			case byteCh <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	var gap *time.Timer
	var gapC <-chan time.Time

	armGap := func() {
		if gap == nil {
			gap = time.NewTimer(d.params.EndOfTelegram)
		} else {
			if !gap.Stop() {
				select {
				case <-gap.C:
				default:
				}
			}
			gap.Reset(d.params.EndOfTelegram)
		}
		gapC = gap.C
	}
	disarmGap := func() { gapC = nil }

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("transceiver: read: %w", err)
		case b := <-byteCh:
			d.lastUnixNS.Store(time.Now().UnixNano())
			if d.onByte(b) {
				armGap()
			} else {
				disarmGap()
			}
		case <-gapC:
			disarmGap()
			d.onGapTimeout()
		}
	}
}

// onByte feeds one received byte into the driver. It reports whether the
// driver is now mid-telegram and the gap timer should be (re)armed.
func (d *Driver) onByte(b byte) (receiving bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.st {
	case stateSending, stateWaitForResponse:
		// A command is in flight: this byte is an echo or response, not
		// the start of an inbound telegram.
		if d.resp != nil {
			select {
			case d.resp <- b:
			default:
				d.dropped.Add(1)
			}
		}
		return false

	case stateIdle, stateCompleted:
		kind, min, max, ok := classify(b, d.params.Commands)
		if !ok {
			// Mirrors the original driver dropping a byte that would
			// begin a new telegram while busy: here, a byte that simply
			// doesn't match any known control pattern.
			d.dropped.Add(1)
			return false
		}
		_ = kind
		d.rxBuf = append(d.rxBuf[:0], b)
		d.rxMin, d.rxMax = min, max
		d.st = stateReceiving
		return true

	case stateReceiving:
		d.rxBuf = append(d.rxBuf, b)
		if d.tryCompleteLocked() {
			return false
		}
		if len(d.rxBuf) >= d.rxMax {
			// Hit the hard upper bound without a CRC/length match; treat
			// as complete anyway so the buffer doesn't grow unbounded.
			d.finishLocked(false)
			return false
		}
		return true

	default:
		return false
	}
}

// tryCompleteLocked checks whether the buffer now satisfies the
// telegram's minimum length and, when a CRC trailer is in use, whether
// the trailing two bytes match a checksum computed over everything
// before them. The telegram's true length isn't known in advance (the
// extended frame's length byte still has to be trusted by the
// higher-level codec), so this recomputes the checksum over the
// candidate body on every new byte rather than trying to maintain a
// lagging rolling sum; bodies are at most 261 bytes, so the cost is
// negligible. Caller holds d.mu.
func (d *Driver) tryCompleteLocked() bool {
	if len(d.rxBuf) < d.rxMin {
		return false
	}
	if !d.params.CRCEnabled {
		d.finishLocked(true)
		return true
	}
	if len(d.rxBuf) < d.rxMin+2 {
		return false
	}
	body := d.rxBuf[:len(d.rxBuf)-2]
	crc := newRollingCRC(d.params.CRCSeed)
	for _, b := range body {
		crc.update(b)
	}
	want := crc.sum16()
	got := uint16(d.rxBuf[len(d.rxBuf)-2])<<8 | uint16(d.rxBuf[len(d.rxBuf)-1])
	if want != got {
		return false
	}
	d.finishLocked(true)
	return true
}

// finishLocked emits the accumulated buffer as a complete telegram and
// resets receive state. Caller holds d.mu.
func (d *Driver) finishLocked(valid bool) {
	telegram := append([]byte(nil), d.rxBuf...)
	d.rxBuf = nil
	d.st = stateCompleted
	if valid {
		d.telegramsRx.Add(1)
		d.emit(Event{Kind: EventTelegram, Telegram: telegram})
	} else {
		d.incomplete.Add(1)
		d.emit(Event{Kind: EventTelegramIncomplete, Telegram: telegram})
	}
}

// onGapTimeout runs when the end-of-telegram gap elapses mid-receive: the
// chip has stopped sending bytes before the expected length was reached.
func (d *Driver) onGapTimeout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.st != stateReceiving || len(d.rxBuf) == 0 {
		d.st = stateIdle
		return
	}
	d.finishLocked(false)
	d.st = stateIdle
}

// emit delivers an event, dropping it (and counting it) rather than
// blocking Run if the caller isn't keeping up.
func (d *Driver) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
		if d.logger != nil {
			d.logger.Warn("transceiver: events channel full, dropping event", "kind", ev.Kind)
		}
	}
}

// classify inspects a candidate first byte of a new telegram and returns
// the minimum/maximum total telegram length for framing, matching the
// control-byte patterns each service advertises. Poll is checked first:
// its mask is a superset of the data-request masks.
func classify(b byte, cmd commands) (kind byte, min, max int, ok bool) {
	switch {
	case matches(b, cmd.LPollDataRequest):
		return cmd.LPollDataRequest, 7, 7, true
	case matches(b, cmd.LDataRequest):
		return cmd.LDataRequest, 8, 23, true
	case matches(b, cmd.LExtDataRequest):
		return cmd.LExtDataRequest, 9, 263, true
	default:
		return 0, 0, 0, false
	}
}

// sendRequest writes payload and collects exactly expect response bytes,
// serialised against any other in-flight command. It is the shared
// implementation behind Reset and State.
func (d *Driver) sendRequest(ctx context.Context, payload []byte, expect int) ([]byte, error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	resp := make(chan byte, expect)
	d.mu.Lock()
	d.st = stateWaitForResponse
	d.resp = resp
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.st = stateIdle
		d.resp = nil
		d.mu.Unlock()
	}()

	if _, err := d.port.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReq, err)
	}

	out := make([]byte, 0, expect)
	timeout := time.NewTimer(d.params.WaitForResponse)
	defer timeout.Stop()
	for len(out) < expect {
		select {
		case b := <-resp:
			out = append(out, b)
		case <-timeout.C:
			return nil, ErrReq
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// Reset issues U_RESET_REQUEST and waits for a matching U_RESET_RESPONSE.
func (d *Driver) Reset(ctx context.Context) error {
	out, err := d.sendRequest(ctx, []byte{d.params.Commands.ResetRequest}, 1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	if !matches(out[0], d.params.Commands.ResetResponse) {
		return ErrInit
	}
	return nil
}

// State issues U_STATE_REQUEST and returns the raw state byte.
func (d *Driver) State(ctx context.Context) (byte, error) {
	out, err := d.sendRequest(ctx, []byte{d.params.Commands.StateRequest}, 1)
	if err != nil {
		return 0, err
	}
	if !matches(out[0], d.params.Commands.StateResponse) {
		return 0, ErrResp
	}
	d.emit(Event{Kind: EventStateIndication, StateByte: out[0]})
	return out[0], nil
}

// ActivateCRC enables the chip's CRC trailer on received telegrams. It
// does not itself change Params.CRCEnabled; callers construct the
// variant with the matching setting.
func (d *Driver) ActivateCRC(ctx context.Context) error {
	return d.fireAndForget(ctx, d.params.Commands.ActivateCRC)
}

// ActivateBusmonitor puts the chip into bus-monitor mode: every telegram
// on the bus is reported, with no acknowledgements sent.
func (d *Driver) ActivateBusmonitor(ctx context.Context) error {
	return d.fireAndForget(ctx, d.params.Commands.ActivateBusmon)
}

// SetAddress writes the chip's physical address via its proprietary
// command protocol, which sends the address little-endian (low byte
// first, then high byte) — distinct from the big-endian address
// encoding telegrams use on the bus itself.
func (d *Driver) SetAddress(ctx context.Context, raw uint16) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	payload := []byte{
		d.params.Commands.SetAddress,
		byte(raw),
		byte(raw >> 8),
	}
	if _, err := d.port.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrReq, err)
	}
	return nil
}

// Send transmits a telegram using the continue/end byte-pair protocol
// and waits for the chip's echo followed by an L_DATA_CONFIRM byte. It
// returns ErrArgs if the telegram exceeds the variant's max send size,
// and ErrResp if the confirm byte reports a NACK.
func (d *Driver) Send(ctx context.Context, telegram []byte) error {
	if len(telegram) == 0 || len(telegram) > d.params.MaxSend {
		return ErrArgs
	}

	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	expect := len(telegram) + 1
	if d.params.CRCEnabled {
		expect += 2
	}

	resp := make(chan byte, expect)
	d.mu.Lock()
	d.st = stateSending
	d.resp = resp
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.st = stateIdle
		d.resp = nil
		d.mu.Unlock()
	}()

	for i, b := range telegram {
		ctrl := d.params.Commands.DataContinue
		if i == len(telegram)-1 {
			ctrl = d.params.Commands.DataEnd
		}
		if _, err := d.port.Write([]byte{ctrl | byte(i), b}); err != nil {
			return fmt.Errorf("%w: %v", ErrReq, err)
		}
	}

	out := make([]byte, 0, expect)
	timeout := time.NewTimer(time.Duration(expect) * d.params.WaitForAck)
	defer timeout.Stop()
	for len(out) < expect {
		select {
		case b := <-resp:
			out = append(out, b)
		case <-timeout.C:
			return ErrReq
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// The confirm's low bits identify the L_DATA_CONFIRM service; its high
	// bit is the ACK/NACK discriminator (set = positive confirm).
	confirm := out[len(out)-1]
	if !matches(confirm, d.params.Commands.LDataConfirm) || confirm&0x80 == 0 {
		return ErrResp
	}
	d.telegramsTx.Add(1)
	return nil
}

func (d *Driver) fireAndForget(ctx context.Context, cmd byte) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if _, err := d.port.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("%w: %v", ErrReq, err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
