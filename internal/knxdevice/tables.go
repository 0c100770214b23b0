package knxdevice

import "github.com/basilfx/knx-devstack/internal/knx"

// InfoTable is the device info RAM table: the small set of fields a
// downloader configures outside the property/memory system, and that the
// application layer consults directly for individual-address management
// and restart gating.
type InfoTable struct {
	ProgrammingMode bool
	Serial          [6]byte
	ManufacturerID  uint16
	HardwareType    [6]byte
	OrderInfo       [10]byte
	DeviceControl   uint8
}

// ComObjectTableRow is a single row of the memory-mapped communication
// object configuration table a downloader writes: per-object type and
// packed access/priority flags, consumed by BuildComObjects to
// (re)create the runtime ComObject array.
type ComObjectTableRow struct {
	Type  ComObjectType
	Flags uint8 // bits 7..2 = access flags, bits 1..0 = priority
}

// accessFromFlags unpacks the top 6 bits of a com-object table row's
// flags byte into AccessFlags, matching the bit assignment used by the
// priority field occupying the low 2 bits (knx_com_object_update masks
// access with 0xfc and priority with 0x03).
func accessFromFlags(flags uint8) AccessFlags {
	return AccessFlags{
		Enabled:  flags&0x80 != 0,
		Read:     flags&0x40 != 0,
		Write:    flags&0x20 != 0,
		Transmit: flags&0x10 != 0,
		Update:   flags&0x08 != 0,
	}
}

// BuildComObjects creates a fresh ComObject array from the raw table
// rows — the runtime equivalent of knx_com_object_update.
func BuildComObjects(rows []ComObjectTableRow) []*ComObject {
	objects := make([]*ComObject, len(rows))
	for i, row := range rows {
		priority := knx.Priority(row.Flags & 0x03)
		objects[i] = NewComObject(row.Type, priority, accessFromFlags(row.Flags))
	}
	return objects
}
