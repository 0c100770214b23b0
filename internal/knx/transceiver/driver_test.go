package transceiver

import (
	"context"
	"io"
	"testing"
	"time"
)

// duplex pairs an independent reader and writer into a single
// io.ReadWriter, so tests can drive each direction of a Driver's UART
// with its own io.Pipe.
type duplex struct {
	r io.Reader
	w io.Writer
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func newTestDriver(t *testing.T) (*Driver, *io.PipeWriter, *io.PipeReader, context.CancelFunc) {
	t.Helper()
	toDriver, fromTest := io.Pipe()
	toTest, fromDriver := io.Pipe()
	port := &duplex{r: toDriver, w: fromDriver}

	d := New(port, TPUARTParams(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)
	return d, fromTest, toTest, cancel
}

func readByte(t *testing.T, r *io.PipeReader) byte {
	t.Helper()
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf[0]
}

func TestDriverResetSuccess(t *testing.T) {
	d, toDriver, fromDriver, _ := newTestDriver(t)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- d.Reset(ctx)
	}()

	got := readByte(t, fromDriver)
	if got != tpuartCommands.ResetRequest {
		t.Fatalf("request byte = %#x, want %#x", got, tpuartCommands.ResetRequest)
	}
	if _, err := toDriver.Write([]byte{tpuartCommands.ResetResponse}); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Reset: %v", err)
	}
}

func TestDriverResetTimeout(t *testing.T) {
	d, _, fromDriver, _ := newTestDriver(t)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- d.Reset(ctx)
	}()

	readByte(t, fromDriver) // consume the request, never answer it
	if err := <-errCh; err == nil {
		t.Fatal("Reset: want timeout error, got nil")
	}
}

func TestDriverSendACK(t *testing.T) {
	d, toDriver, fromDriver, _ := newTestDriver(t)

	telegram := []byte{0xBC, 0x11, 0x01, 0x01, 0x01, 0xE1, 0x00, 0x80, 0x00, 0x6A}
	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- d.Send(ctx, telegram)
	}()

	for i, b := range telegram {
		ctrl := readByte(t, fromDriver)
		data := readByte(t, fromDriver)
		wantCtrl := tpuartCommands.DataContinue
		if i == len(telegram)-1 {
			wantCtrl = tpuartCommands.DataEnd
		}
		if ctrl != wantCtrl|byte(i) || data != b {
			t.Fatalf("pair %d = (%#x,%#x), want (%#x,%#x)", i, ctrl, data, wantCtrl|byte(i), b)
		}
	}

	// echo + 2 crc bytes + confirm byte, all arbitrary except the confirm
	// byte must satisfy the L_DATA_CONFIRM mask.
	resp := append(append([]byte{}, telegram...), 0x00, 0x00, 0x8b)
	if _, err := toDriver.Write(resp); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := d.Stats().TelegramsTx; got != 1 {
		t.Errorf("TelegramsTx = %d, want 1", got)
	}
}

func TestDriverSendNACK(t *testing.T) {
	d, toDriver, fromDriver, _ := newTestDriver(t)

	telegram := []byte{0xBC, 0x11, 0x01}
	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- d.Send(ctx, telegram)
	}()

	for range telegram {
		readByte(t, fromDriver)
		readByte(t, fromDriver)
	}
	// L_DATA_CONFIRM with the high (ACK) bit clear is a negative confirm.
	resp := append(append([]byte{}, telegram...), 0x00, 0x00, 0x0b)
	if _, err := toDriver.Write(resp); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if err := <-errCh; err != ErrResp {
		t.Fatalf("Send error = %v, want ErrResp", err)
	}
}

func TestDriverSendGarbageConfirm(t *testing.T) {
	d, toDriver, fromDriver, _ := newTestDriver(t)

	telegram := []byte{0xBC, 0x11, 0x01}
	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- d.Send(ctx, telegram)
	}()

	for range telegram {
		readByte(t, fromDriver)
		readByte(t, fromDriver)
	}
	resp := append(append([]byte{}, telegram...), 0x00, 0x00, 0x00) // not an L_DATA_CONFIRM at all
	if _, err := toDriver.Write(resp); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if err := <-errCh; err != ErrResp {
		t.Fatalf("Send error = %v, want ErrResp", err)
	}
}

func TestDriverSendRejectsOversizedTelegram(t *testing.T) {
	d, _, _, _ := newTestDriver(t)
	big := make([]byte, TPUARTParams().MaxSend+1)
	if err := d.Send(context.Background(), big); err != ErrArgs {
		t.Fatalf("Send error = %v, want ErrArgs", err)
	}
}

func TestDriverSetAddressIsLittleEndian(t *testing.T) {
	d, _, fromDriver, _ := newTestDriver(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.SetAddress(context.Background(), 0x1234)
	}()

	cmd := readByte(t, fromDriver)
	lo := readByte(t, fromDriver)
	hi := readByte(t, fromDriver)
	if cmd != tpuartCommands.SetAddress {
		t.Errorf("cmd = %#x, want %#x", cmd, tpuartCommands.SetAddress)
	}
	if lo != 0x34 || hi != 0x12 {
		t.Errorf("address bytes = (%#x,%#x), want (0x34,0x12)", lo, hi)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
}

func TestDriverReceivesCompleteStandardTelegram(t *testing.T) {
	d, toDriver, _, _ := newTestDriver(t)

	body := []byte{0x90, 0x11, 0x01, 0x11, 0x08, 0x60, 0x80, 0x6A}
	crc := newRollingCRC(TPUARTParams().CRCSeed)
	for _, b := range body {
		crc.update(b)
	}
	sum := crc.sum16()
	frame := append(append([]byte{}, body...), byte(sum>>8), byte(sum))

	go func() {
		_, _ = toDriver.Write(frame)
	}()

	select {
	case ev := <-d.Events():
		if ev.Kind != EventTelegram {
			t.Fatalf("event kind = %v, want EventTelegram", ev.Kind)
		}
		if len(ev.Telegram) != len(frame) {
			t.Fatalf("telegram len = %d, want %d", len(ev.Telegram), len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for telegram event")
	}
}

func TestDriverGapTimeoutReportsIncomplete(t *testing.T) {
	d, toDriver, _, _ := newTestDriver(t)

	go func() {
		_, _ = toDriver.Write([]byte{0x90, 0x11, 0x01})
	}()

	select {
	case ev := <-d.Events():
		if ev.Kind != EventTelegramIncomplete {
			t.Fatalf("event kind = %v, want EventTelegramIncomplete", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for incomplete event")
	}
}
