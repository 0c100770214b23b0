package netdev

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knx/transceiver"
)

type duplex struct {
	r io.Reader
	w io.Writer
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func newTestDevice(t *testing.T) (*Device, *io.PipeWriter, *io.PipeReader) {
	t.Helper()
	toDriver, fromTest := io.Pipe()
	toTest, fromDriver := io.Pipe()
	port := &duplex{r: toDriver, w: fromDriver}

	driver := transceiver.New(port, transceiver.TPUARTParams(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go driver.Run(ctx)

	return New(driver), fromTest, toTest
}

func TestDeviceRecvParsesCompleteTelegram(t *testing.T) {
	dev, toDriver, _ := newTestDevice(t)

	src, _ := knx.PhysicalAddress(1, 1, 1)
	dst, _ := knx.PhysicalAddress(1, 1, 2)
	tgm := knx.Build(knx.Standard, src, dst, false)
	tgm.UpdateChecksum()

	go func() {
		_, _ = toDriver.Write(tgm)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := dev.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !got.Source().Equal(src) || !got.Destination().Equal(dst) {
		t.Fatalf("Recv telegram addresses = %v -> %v, want %v -> %v",
			got.Source(), got.Destination(), src, dst)
	}
}

func TestDeviceRecvReportsIncomplete(t *testing.T) {
	dev, toDriver, _ := newTestDevice(t)

	go func() {
		_, _ = toDriver.Write([]byte{0x90, 0x11, 0x22})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := dev.Recv(ctx); err != ErrIncomplete {
		t.Fatalf("Recv error = %v, want ErrIncomplete", err)
	}
}

func TestDeviceSendStampsChecksum(t *testing.T) {
	dev, _, fromDriver := newTestDevice(t)

	src, _ := knx.PhysicalAddress(1, 1, 1)
	dst, _ := knx.PhysicalAddress(1, 1, 2)
	tgm := knx.Build(knx.Standard, src, dst, false)
	tgm[len(tgm)-1] = 0x00 // deliberately wrong checksum before Send fixes it

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		errCh <- dev.Send(ctx, tgm)
	}()

	// Send stamps the checksum before writing anything, so reading just
	// the first continue/end byte pair is enough to prove transmission
	// started with a valid telegram; the goroutine above is left to time
	// out on its own context once the test returns.
	pair := make([]byte, 2)
	if _, err := io.ReadFull(fromDriver, pair); err != nil {
		t.Fatalf("read first pair: %v", err)
	}
	if !tgm.IsChecksumValid() {
		t.Error("Send did not update the checksum before transmitting")
	}
}
