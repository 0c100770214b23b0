package l7

import (
	"context"
	"testing"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

func newTestDevice(t *testing.T) *knxdevice.Device {
	t.Helper()
	addr, err := knx.PhysicalAddress(1, 1, 8)
	if err != nil {
		t.Fatalf("PhysicalAddress: %v", err)
	}
	return knxdevice.NewDevice(addr, "knx0")
}

// TestGroupValueWriteEchoesNoResponse: a
// Group-Value-Write on a device at 1.1.8 with one association mapping the
// telegram's destination group to a writable BIT1 com-object stores the
// value and raises a com_object_write event, with no outbound telegram.
func TestGroupValueWriteEchoesNoResponse(t *testing.T) {
	device := newTestDevice(t)
	device.ComObjects = []*knxdevice.ComObject{
		knxdevice.NewComObject(knxdevice.Bit1, knx.PriorityLow, knxdevice.AccessFlags{
			Enabled: true, Write: true,
		}),
	}
	// The raw telegram below addresses group 0/1/1 (dest bytes 0x01, 0x01
	// split as main(5)/mid(3)/sub(8)).
	group, _ := knx.GroupAddress(0, 1, 1)
	device.Associations.Update(
		[]knxdevice.AssocTableRow{{AddressIndex: 1, ComObjectIndex: 0}},
		[]knxdevice.AddressTableRow{{Address: group}},
		8,
	)

	var events []knxdevice.Event
	device.OnEvent = func(_ *knxdevice.Device, ev knxdevice.Event) { events = append(events, ev) }

	layer := NewLayer(device)
	sent := false
	layer.Downward = func(context.Context, knx.Telegram) error { sent = true; return nil }

	raw := []byte{0xBC, 0x11, 0x03, 0x01, 0x01, 0xE1, 0x00, 0x80, 0x30}
	tgm, err := knx.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := layer.Receive(context.Background(), tgm); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	obj := device.ComObjects[0]
	if got := obj.Value()[0]; got != 0 {
		t.Fatalf("stored value = %d, want 0", got)
	}
	if sent {
		t.Fatal("Group-Value-Write must not produce an outbound telegram")
	}

	found := false
	for _, ev := range events {
		if _, ok := ev.(knxdevice.ComObjectWriteEvent); ok {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a com_object_write event")
	}
}

// TestPropertyValueReadResponsePayload ports scenario S3 byte for byte.
func TestPropertyValueReadResponsePayload(t *testing.T) {
	device := newTestDevice(t)
	prop := knxdevice.NewProperty(0x0B, knxdevice.PropertyTypeGeneric6, knxdevice.PropertyFlags{Writable: true}, 1)
	if _, err := prop.Write([]byte{0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, 1, 1); err != nil {
		t.Fatalf("seed property: %v", err)
	}
	device.Properties = []*knxdevice.PropertyObject{{Properties: []*knxdevice.Property{prop}}}

	layer := NewLayer(device)
	var response knx.Telegram
	layer.Downward = func(_ context.Context, t knx.Telegram) error { response = t; return nil }

	peer, _ := knx.PhysicalAddress(1, 1, 1)
	req := knx.Build(knx.Standard, peer, device.Address, false)
	// payload[0] is a placeholder overwritten by SetExtendedAPCI below;
	// ExtendedData() reports payload[1:], so the service parameters ride
	// at indices 1..4.
	if err := req.SetPayload([]byte{0, 0x00, 0x0B, 0x10, 0x01}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	req.SetExtendedAPCI(knx.ExtPropertyValueRead)
	req.UpdateChecksum()

	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if response == nil {
		t.Fatal("expected a Property-Value-Response")
	}

	want := []byte{0x00, 0x0B, 0x10, 0x01, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	got := response.ExtendedData()
	if len(got) != len(want) {
		t.Fatalf("payload length = %d, want %d (%x)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload[%d] = %#x, want %#x (full: %x)", i, got[i], want[i], got)
		}
	}
}

// TestIndividualAddressWriteGatedByProgrammingMode ports scenario S4.
func TestIndividualAddressWriteGatedByProgrammingMode(t *testing.T) {
	device := newTestDevice(t)
	layer := NewLayer(device)
	layer.Downward = func(context.Context, knx.Telegram) error { return nil }

	newAddr, _ := knx.PhysicalAddress(1, 1, 9)
	peer, _ := knx.PhysicalAddress(0, 0, 0)
	req := knx.Build(knx.Standard, peer, knx.Broadcast, false)
	if err := req.SetPayload([]byte{0, byte(newAddr >> 8), byte(newAddr)}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	req.SetAPCI(knx.IndividualAddressWrite)
	req.UpdateChecksum()

	var events []knxdevice.Event
	device.OnEvent = func(_ *knxdevice.Device, ev knxdevice.Event) { events = append(events, ev) }

	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(events) != 0 {
		t.Fatal("address write must be ignored while programming mode is off")
	}

	device.Info.ProgrammingMode = true
	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one set_address event, got %d", len(events))
	}
	if _, ok := events[0].(knxdevice.SetAddressEvent); !ok {
		t.Fatalf("expected SetAddressEvent, got %T", events[0])
	}
	if !device.Address.Equal(newAddr) {
		t.Fatalf("device address = %v, want %v", device.Address, newAddr)
	}
}

// TestGroupValueReadEmitsResponseWithCurrentValue exercises the read path
// (a service S1/S3/S4 don't cover) for a full-byte com-object.
func TestGroupValueReadEmitsResponseWithCurrentValue(t *testing.T) {
	device := newTestDevice(t)
	device.ComObjects = []*knxdevice.ComObject{
		knxdevice.NewComObject(knxdevice.Byte1, knx.PriorityLow, knxdevice.AccessFlags{
			Enabled: true, Read: true, Write: true,
		}),
	}
	_, _ = device.WriteComObject(0, []byte{0x2A})
	device.ComObjects[0].Access.Write = false // read-only from the bus afterwards

	group, _ := knx.GroupAddress(1, 2, 3)
	device.Associations.Update(
		[]knxdevice.AssocTableRow{{AddressIndex: 1, ComObjectIndex: 0}},
		[]knxdevice.AddressTableRow{{Address: group}},
		8,
	)

	layer := NewLayer(device)
	var response knx.Telegram
	layer.Downward = func(_ context.Context, t knx.Telegram) error { response = t; return nil }

	peer, _ := knx.PhysicalAddress(1, 1, 1)
	req := knx.Build(knx.Standard, peer, group, true)
	req.SetAPCI(knx.GroupValueRead)
	req.UpdateChecksum()

	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if response == nil {
		t.Fatal("expected a Group-Value-Response")
	}
	if response.APCI() != knx.GroupValueResponse {
		t.Fatalf("APCI = %v, want GroupValueResponse", response.APCI())
	}
	if got := response.Payload()[1]; got != 0x2A {
		t.Fatalf("response payload = %#x, want 0x2a", got)
	}
}

// TestMaskVersionRead checks the fixed mask version 0x0705 is reported.
func TestMaskVersionRead(t *testing.T) {
	device := newTestDevice(t)
	layer := NewLayer(device)
	var response knx.Telegram
	layer.Downward = func(_ context.Context, t knx.Telegram) error { response = t; return nil }

	peer, _ := knx.PhysicalAddress(1, 1, 1)
	req := knx.Build(knx.Standard, peer, device.Address, false)
	if err := req.SetPayload([]byte{0}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	req.SetAPCI(knx.MaskVersionRead)
	req.UpdateChecksum()

	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if response == nil {
		t.Fatal("expected a Mask-Version-Response")
	}
	payload := response.Payload()
	got := uint16(payload[1])<<8 | uint16(payload[2])
	if got != knxdevice.MaskVersion0705 {
		t.Fatalf("mask version = %#x, want %#x", got, knxdevice.MaskVersion0705)
	}
}

// TestMemoryWriteVerifyModeEchoesResponse checks the device-control
// verify-mode bit (0x04) gates an echoing Memory-Response on write.
func TestMemoryWriteVerifyModeEchoesResponse(t *testing.T) {
	device := newTestDevice(t)
	seg := &knxdevice.MemorySegment{
		StartAddr: 0x0060,
		Kind:      knxdevice.RAM,
		Flags:     knxdevice.MemoryFlags{Readable: true, Writable: true},
		Backing:   make([]byte, 8),
	}
	if err := device.Memory.Add(seg); err != nil {
		t.Fatalf("Add: %v", err)
	}
	device.Info.DeviceControl = 0x04

	layer := NewLayer(device)
	var response knx.Telegram
	layer.Downward = func(_ context.Context, t knx.Telegram) error { response = t; return nil }

	peer, _ := knx.PhysicalAddress(1, 1, 1)
	req := knx.Build(knx.Standard, peer, device.Address, false)
	if err := req.SetPayload([]byte{3, 0x00, 0x60, 0xAA, 0xBB, 0xCC}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	req.SetAPCI(knx.MemoryWrite)
	req.UpdateChecksum()

	if err := layer.Receive(context.Background(), req); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if response == nil {
		t.Fatal("expected a verify-mode Memory-Response")
	}
	got := response.Payload()[4:]
	want := []byte{0xAA, 0xBB, 0xCC}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("echoed byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
