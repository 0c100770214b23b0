package knxdevice

import (
	"testing"

	"github.com/basilfx/knx-devstack/internal/knx"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	addr, _ := knx.PhysicalAddress(1, 1, 8)
	d := NewDevice(addr, "knx0")

	d.ComObjects = []*ComObject{
		NewComObject(Bit1, knx.PriorityLow, fullAccess()),
		NewComObject(Byte2, knx.PriorityLow, fullAccess()),
	}

	addrTable := []AddressTableRow{
		{Address: mustGroup(t, 0, 0, 1)},
	}
	assocRows := []AssocTableRow{
		{AddressIndex: 1, ComObjectIndex: 0},
	}
	if err := d.Associations.Update(assocRows, addrTable, 255); err != nil {
		t.Fatalf("Associations.Update: %v", err)
	}

	d.Memory.Segments = nil
	_ = d.Memory.Add(&MemorySegment{
		StartAddr: 0,
		Kind:      RAM,
		Flags:     MemoryFlags{Readable: true, Writable: true},
		Backing:   make([]byte, 16),
	})

	d.Properties = []*PropertyObject{{Properties: []*Property{
		NewProperty(1, PropertyTypeUnsignedChar, PropertyFlags{Writable: true}, 1),
	}}}

	return d
}

func TestDeviceUpdateComObjectReturnsAssociations(t *testing.T) {
	d := newTestDevice(t)
	assocs, err := d.UpdateComObject(0, []byte{0x01})
	if err != nil {
		t.Fatalf("UpdateComObject: %v", err)
	}
	if len(assocs) != 1 {
		t.Fatalf("len(assocs) = %d, want 1", len(assocs))
	}
	if !assocs[0].GroupAddr.Equal(mustGroup(t, 0, 0, 1)) {
		t.Errorf("association group = %v, want 0/0/1", assocs[0].GroupAddr)
	}
}

func TestDeviceReadWriteMemoryRaisesEvents(t *testing.T) {
	d := newTestDevice(t)
	var got []Event
	d.OnEvent = func(_ *Device, e Event) { got = append(got, e) }

	if err := d.WriteMemory(4, []byte{0xAB}); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	data, err := d.ReadMemory(4, 1)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if data[0] != 0xAB {
		t.Errorf("ReadMemory = %#x, want 0xAB", data[0])
	}
	if len(got) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(got))
	}
	if _, ok := got[0].(MemWriteEvent); !ok {
		t.Errorf("events[0] = %T, want MemWriteEvent", got[0])
	}
	if _, ok := got[1].(MemReadEvent); !ok {
		t.Errorf("events[1] = %T, want MemReadEvent", got[1])
	}
}

func TestDeviceWritePropertyRaisesEvent(t *testing.T) {
	d := newTestDevice(t)
	var got Event
	d.OnEvent = func(_ *Device, e Event) { got = e }

	if _, err := d.WriteProperty(0, 1, 1, 1, []byte{0x42}); err != nil {
		t.Fatalf("WriteProperty: %v", err)
	}
	ev, ok := got.(PropWriteEvent)
	if !ok {
		t.Fatalf("event = %T, want PropWriteEvent", got)
	}
	if ev.Object != 0 || ev.Count != 1 || ev.Start != 1 {
		t.Errorf("event fields = %+v, unexpected", ev)
	}
}

func TestDeviceSetAddressRaisesEvent(t *testing.T) {
	d := newTestDevice(t)
	var got Event
	d.OnEvent = func(_ *Device, e Event) { got = e }

	newAddr, _ := knx.PhysicalAddress(1, 1, 9)
	d.SetAddress(newAddr)

	if d.Address != newAddr {
		t.Errorf("Address = %v, want %v", d.Address, newAddr)
	}
	ev, ok := got.(SetAddressEvent)
	if !ok {
		t.Fatalf("event = %T, want SetAddressEvent", got)
	}
	if ev.Address != newAddr {
		t.Errorf("event.Address = %v, want %v", ev.Address, newAddr)
	}
}
