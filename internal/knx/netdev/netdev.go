package netdev

import (
	"context"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knx/transceiver"
)

// Device adapts a link-layer Driver into a frame device: Recv blocks for
// the next complete, checksum-valid telegram; Send stamps the checksum
// and streams the telegram through the driver's send protocol.
type Device struct {
	driver *transceiver.Driver
}

// New wraps driver as a frame device. driver.Run must already be (or
// about to be) running for Recv to ever return.
func New(driver *transceiver.Driver) *Device {
	return &Device{driver: driver}
}

// Recv waits for the next telegram event from the link driver. A
// malformed buffer (one that parses as a complete frame but fails
// Telegram invariants — bad checksum, length mismatch) is reported as an
// error rather than silently dropped, so callers can count it;
// ErrIncomplete is returned when the gap timer cut a telegram short.
func (d *Device) Recv(ctx context.Context) (knx.Telegram, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-d.driver.Events():
			if !ok {
				return nil, ErrClosed
			}
			switch ev.Kind {
			case transceiver.EventTelegram:
				return knx.Parse(ev.Telegram)
			case transceiver.EventTelegramIncomplete:
				return nil, ErrIncomplete
			default:
				continue
			}
		}
	}
}

// Send finalises t's checksum and transmits it.
func (d *Device) Send(ctx context.Context, t knx.Telegram) error {
	t.UpdateChecksum()
	return d.driver.Send(ctx, []byte(t))
}
