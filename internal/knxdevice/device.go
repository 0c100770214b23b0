package knxdevice

import "github.com/basilfx/knx-devstack/internal/knx"

// MaskVersion0705 is the only mask version this stack implements:
// System 7, twisted pair.
const MaskVersion0705 uint16 = 0x0705

// Device aggregates everything the application layer operates on: the
// device's own address and identity, its memory segments, property
// objects, communication objects, and the group-address association map.
// All of it is created at configuration time and lives for the process;
// BuildComObjects/AssocTable.Update are the only operations that replace
// the runtime structures wholesale, invoked whenever a downloader writes
// the backing configuration tables.
type Device struct {
	Address     knx.Address
	MaskVersion uint16
	Info        InfoTable

	Memory     MemoryTable
	Properties []*PropertyObject
	ComObjects []*ComObject

	Associations AssocTable

	// Interface names the bound netdev interface outbound telegrams are
	// sent on; L3 owns the actual dispatch.
	Interface string

	OnEvent EventCallback
}

// NewDevice creates a device fixed to mask version 0705.
func NewDevice(address knx.Address, iface string) *Device {
	return &Device{
		Address:     address,
		MaskVersion: MaskVersion0705,
		Interface:   iface,
	}
}

// raise delivers an event to the registered callback, if any. A nil
// callback is a valid, silent configuration (no host application
// attached yet).
func (d *Device) raise(event Event) {
	if d.OnEvent != nil {
		d.OnEvent(d, event)
	}
}

// PropertyObjectByIndex returns the property object at the given 0-based
// index.
func (d *Device) PropertyObjectByIndex(index int) (*PropertyObject, error) {
	if index < 0 || index >= len(d.Properties) {
		return nil, ErrNotFound
	}
	return d.Properties[index], nil
}

// ComObjectByIndex returns the communication object at the given 0-based
// index.
func (d *Device) ComObjectByIndex(index int) (*ComObject, error) {
	if index < 0 || index >= len(d.ComObjects) {
		return nil, ErrNotFound
	}
	return d.ComObjects[index], nil
}

// ComObjectIndex returns the 0-based index of obj within d.ComObjects, or
// false if obj does not belong to this device. Event handlers receive a
// *ComObject pointer but often need its index to resolve associations
// (AssocTable is indexed by com-object position, not pointer).
func (d *Device) ComObjectIndex(obj *ComObject) (int, bool) {
	for i, o := range d.ComObjects {
		if o == obj {
			return i, true
		}
	}
	return 0, false
}

// GroupAddressesFor returns every group address associated with the given
// communication object index, in association-table order.
func (d *Device) GroupAddressesFor(index int) []knx.Address {
	var out []knx.Address
	idx, err := d.Associations.FindByComObject(index)
	for err == nil {
		out = append(out, d.Associations.At(idx).GroupAddr)
		idx, err = d.Associations.IterByComObject(idx, index)
	}
	return out
}

// ReadComObject reads a communication object by index and raises a
// com_object_read event on success.
func (d *Device) ReadComObject(index int, buf []byte) (int, error) {
	obj, err := d.ComObjectByIndex(index)
	if err != nil {
		return 0, err
	}
	n, err := obj.Read(buf)
	if err != nil {
		return 0, err
	}
	d.raise(ComObjectReadEvent{ComObject: obj})
	return n, nil
}

// WriteComObject writes a communication object by index and raises a
// com_object_write event on success.
func (d *Device) WriteComObject(index int, buf []byte) (int, error) {
	obj, err := d.ComObjectByIndex(index)
	if err != nil {
		return 0, err
	}
	n, err := obj.Write(buf)
	if err != nil {
		return 0, err
	}
	d.raise(ComObjectWriteEvent{ComObject: obj})
	return n, nil
}

// UpdateComObjectFromBus writes a communication object's value from an
// incoming Group-Value-Response, gated on the Update access flag, and
// raises a com_object_write event on success.
func (d *Device) UpdateComObjectFromBus(index int, buf []byte) (int, error) {
	obj, err := d.ComObjectByIndex(index)
	if err != nil {
		return 0, err
	}
	n, err := obj.Update(buf)
	if err != nil {
		return 0, err
	}
	d.raise(ComObjectWriteEvent{ComObject: obj})
	return n, nil
}

// UpdateComObject is the host-application-facing counterpart of a group
// write: it stores a new value directly (bypassing Write's access-flag
// check, since the host is the authoritative source) and returns every
// association referencing it, for the caller to turn into outbound
// Group-Value-Write telegrams — one per associated group address.
func (d *Device) UpdateComObject(index int, value []byte) ([]Association, error) {
	obj, err := d.ComObjectByIndex(index)
	if err != nil {
		return nil, err
	}
	if len(value) < obj.Size() {
		return nil, ErrBufferTooSmall
	}
	copy(obj.value, value[:obj.Size()])

	var out []Association
	idx, err := d.Associations.FindByComObject(index)
	for err == nil {
		out = append(out, d.Associations.At(idx))
		idx, err = d.Associations.IterByComObject(idx, index)
	}
	return out, nil
}

// ReadMemory reads from a memory segment and raises a mem_read event on
// success.
func (d *Device) ReadMemory(addr uint16, size int) ([]byte, error) {
	seg, err := d.Memory.Find(addr, size)
	if err != nil {
		return nil, err
	}
	data, err := seg.Read(addr, size)
	if err != nil {
		return nil, err
	}
	d.raise(MemReadEvent{Segment: seg})
	return data, nil
}

// WriteMemory writes to a memory segment and raises a mem_write event on
// success.
func (d *Device) WriteMemory(addr uint16, data []byte) error {
	seg, err := d.Memory.Find(addr, len(data))
	if err != nil {
		return err
	}
	if err := seg.Write(addr, data); err != nil {
		return err
	}
	d.raise(MemWriteEvent{Segment: seg})
	return nil
}

// ReadProperty reads count elements of a property starting at the
// 1-based element index start, and raises a prop_read event on success.
func (d *Device) ReadProperty(object, id uint8, count, start int, buf []byte) (int, error) {
	obj, err := d.PropertyObjectByIndex(int(object))
	if err != nil {
		return 0, err
	}
	prop, err := obj.FindByID(id)
	if err != nil {
		return 0, err
	}
	n, err := prop.Read(buf, count, start)
	if err != nil {
		return 0, err
	}
	d.raise(PropReadEvent{Property: prop, Object: int(object), Count: count, Start: start})
	return n, nil
}

// WriteProperty writes count elements of a property starting at the
// 1-based element index start, and raises a prop_write event on success.
func (d *Device) WriteProperty(object, id uint8, count, start int, data []byte) (int, error) {
	obj, err := d.PropertyObjectByIndex(int(object))
	if err != nil {
		return 0, err
	}
	prop, err := obj.FindByID(id)
	if err != nil {
		return 0, err
	}
	n, err := prop.Write(data, count, start)
	if err != nil {
		return 0, err
	}
	d.raise(PropWriteEvent{Property: prop, Object: int(object), Count: count, Start: start, Data: data})
	return n, nil
}

// SetAddress updates the device's own physical address and raises a
// set_address event. Gated by the caller on programming-mode / serial
// match, matching the two services (plain and serial-qualified
// Individual-Address-Write) that are allowed to invoke it.
func (d *Device) SetAddress(addr knx.Address) {
	d.Address = addr
	d.raise(SetAddressEvent{Address: addr})
}

// Restart raises a restart event; the host application decides what
// rebooting actually means for its runtime.
func (d *Device) Restart() {
	d.raise(RestartEvent{})
}

// Authorize raises an authorize event for the access level a key
// resolved to.
func (d *Device) Authorize(level uint8) {
	d.raise(AuthorizeEvent{Level: level})
}
