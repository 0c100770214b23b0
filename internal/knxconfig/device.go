package knxconfig

import (
	"encoding/hex"
	"fmt"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

// BuildDevice translates a validated Config's device section into a fresh
// knxdevice.Device: it parses the physical address and info table, then
// runs the same table-loading path a downloader would use at
// configuration time (BuildComObjects, property/memory construction,
// AssocTable.Update), so the tables a YAML document describes end up
// exactly where the application layer expects to find them.
func BuildDevice(cfg *DeviceConfig) (*knxdevice.Device, error) {
	addr, err := knx.ParsePhysical(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("knxconfig: device.address: %w", err)
	}

	device := knxdevice.NewDevice(addr, "knx0")

	info, err := buildInfoTable(cfg.Info)
	if err != nil {
		return nil, err
	}
	device.Info = info

	rows := make([]knxdevice.ComObjectTableRow, len(cfg.Tables.ComObjects))
	for i, c := range cfg.Tables.ComObjects {
		typ, err := parseComObjectType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("knxconfig: com_objects[%d]: %w", i, err)
		}
		priority, err := parsePriority(c.Priority)
		if err != nil {
			return nil, fmt.Errorf("knxconfig: com_objects[%d]: %w", i, err)
		}
		rows[i] = knxdevice.ComObjectTableRow{
			Type:  typ,
			Flags: packAccessFlags(c.Access, priority),
		}
	}
	device.ComObjects = knxdevice.BuildComObjects(rows)

	properties, err := buildPropertyObjects(cfg.Tables.Properties)
	if err != nil {
		return nil, err
	}
	device.Properties = properties

	for i, m := range cfg.Tables.Memory {
		seg, err := buildMemorySegment(m)
		if err != nil {
			return nil, fmt.Errorf("knxconfig: memory[%d]: %w", i, err)
		}
		if err := device.Memory.Add(seg); err != nil {
			return nil, fmt.Errorf("knxconfig: memory[%d]: %w", i, err)
		}
	}

	addrTable := make([]knxdevice.AddressTableRow, len(cfg.Tables.Addresses))
	for i, a := range cfg.Tables.Addresses {
		group, err := knx.ParseGroup(a)
		if err != nil {
			return nil, fmt.Errorf("knxconfig: addresses[%d]: %w", i, err)
		}
		addrTable[i] = knxdevice.AddressTableRow{Address: group}
	}

	assocRows := make([]knxdevice.AssocTableRow, len(cfg.Tables.Associations))
	for i, a := range cfg.Tables.Associations {
		assocRows[i] = knxdevice.AssocTableRow{
			AddressIndex:   a.AddressIndex,
			ComObjectIndex: a.ComObjectIndex,
		}
	}

	limit := cfg.Tables.AssocLimit
	if limit <= 0 {
		limit = len(assocRows)
	}
	if err := device.Associations.Update(assocRows, addrTable, limit); err != nil {
		return nil, fmt.Errorf("knxconfig: associations: %w", err)
	}

	return device, nil
}

func buildInfoTable(cfg InfoConfig) (knxdevice.InfoTable, error) {
	info := knxdevice.InfoTable{
		ProgrammingMode: cfg.ProgrammingMode,
		ManufacturerID:  cfg.ManufacturerID,
		DeviceControl:   cfg.DeviceControl,
	}

	if cfg.Serial != "" {
		b, err := hex.DecodeString(cfg.Serial)
		if err != nil || len(b) != len(info.Serial) {
			return info, fmt.Errorf("knxconfig: device.info.serial must be %d hex-encoded bytes", len(info.Serial))
		}
		copy(info.Serial[:], b)
	}
	if cfg.HardwareType != "" {
		b, err := hex.DecodeString(cfg.HardwareType)
		if err != nil || len(b) != len(info.HardwareType) {
			return info, fmt.Errorf("knxconfig: device.info.hardware_type must be %d hex-encoded bytes", len(info.HardwareType))
		}
		copy(info.HardwareType[:], b)
	}
	copy(info.OrderInfo[:], cfg.OrderInfo)

	return info, nil
}

func parseComObjectType(s string) (knxdevice.ComObjectType, error) {
	switch s {
	case "bit1":
		return knxdevice.Bit1, nil
	case "bit2":
		return knxdevice.Bit2, nil
	case "bit3":
		return knxdevice.Bit3, nil
	case "bit4":
		return knxdevice.Bit4, nil
	case "bit5":
		return knxdevice.Bit5, nil
	case "bit6":
		return knxdevice.Bit6, nil
	case "bit7":
		return knxdevice.Bit7, nil
	case "byte1":
		return knxdevice.Byte1, nil
	case "byte2":
		return knxdevice.Byte2, nil
	case "byte3":
		return knxdevice.Byte3, nil
	case "byte4":
		return knxdevice.Byte4, nil
	case "byte6":
		return knxdevice.Byte6, nil
	case "byte8":
		return knxdevice.Byte8, nil
	case "byte10":
		return knxdevice.Byte10, nil
	case "byte14":
		return knxdevice.Byte14, nil
	case "variable":
		return knxdevice.Variable, nil
	default:
		return 0, fmt.Errorf("unknown com-object type %q", s)
	}
}

func parsePriority(s string) (knx.Priority, error) {
	switch s {
	case "", "low":
		return knx.PriorityLow, nil
	case "high":
		return knx.PriorityHigh, nil
	case "alarm":
		return knx.PriorityAlarm, nil
	case "system":
		return knx.PrioritySystem, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// packAccessFlags mirrors the bit assignment knxdevice.accessFromFlags
// expects: access bits in the top 6 bits, priority in the low 2.
func packAccessFlags(a AccessFlagsCfg, priority knx.Priority) uint8 {
	var flags uint8
	if a.Enabled {
		flags |= 0x80
	}
	if a.Read {
		flags |= 0x40
	}
	if a.Write {
		flags |= 0x20
	}
	if a.Transmit {
		flags |= 0x10
	}
	if a.Update {
		flags |= 0x08
	}
	return flags | byte(priority)&0x03
}

func buildPropertyObjects(cfgs []PropertyObjectCfg) ([]*knxdevice.PropertyObject, error) {
	objects := make([]*knxdevice.PropertyObject, len(cfgs))
	for i, obj := range cfgs {
		props := make([]*knxdevice.Property, len(obj.Properties))
		for j, p := range obj.Properties {
			typ, err := parsePropertyType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("knxconfig: properties[%d].properties[%d]: %w", i, j, err)
			}
			props[j] = knxdevice.NewProperty(p.ID, typ, knxdevice.PropertyFlags{
				Writable: p.Flags.Writable,
				Pointer:  p.Flags.Pointer,
				Array:    p.Flags.Array,
			}, p.ElementCount)
		}
		objects[i] = &knxdevice.PropertyObject{Properties: props}
	}
	return objects, nil
}

func parsePropertyType(s string) (knxdevice.PropertyType, error) {
	switch s {
	case "control":
		return knxdevice.PropertyTypeControl, nil
	case "char":
		return knxdevice.PropertyTypeChar, nil
	case "unsigned_char":
		return knxdevice.PropertyTypeUnsignedChar, nil
	case "int":
		return knxdevice.PropertyTypeInt, nil
	case "unsigned_int":
		return knxdevice.PropertyTypeUnsignedInt, nil
	case "knx_float":
		return knxdevice.PropertyTypeKNXFloat, nil
	case "date":
		return knxdevice.PropertyTypeDate, nil
	case "time":
		return knxdevice.PropertyTypeTime, nil
	case "ulong":
		return knxdevice.PropertyTypeULong, nil
	case "signed_long":
		return knxdevice.PropertyTypeSignedLong, nil
	case "float":
		return knxdevice.PropertyTypeFloat, nil
	case "double":
		return knxdevice.PropertyTypeDouble, nil
	case "char_block":
		return knxdevice.PropertyTypeCharBlock, nil
	case "poll_group_settings":
		return knxdevice.PropertyTypePollGroupSettings, nil
	case "short_char_block":
		return knxdevice.PropertyTypeShortCharBlock, nil
	case "date_time":
		return knxdevice.PropertyTypeDateTime, nil
	case "variable_length":
		return knxdevice.PropertyTypeVariableLength, nil
	case "generic1":
		return knxdevice.PropertyTypeGeneric1, nil
	case "generic2":
		return knxdevice.PropertyTypeGeneric2, nil
	case "generic3":
		return knxdevice.PropertyTypeGeneric3, nil
	case "generic4":
		return knxdevice.PropertyTypeGeneric4, nil
	case "generic6":
		return knxdevice.PropertyTypeGeneric6, nil
	case "generic8":
		return knxdevice.PropertyTypeGeneric8, nil
	case "generic10":
		return knxdevice.PropertyTypeGeneric10, nil
	case "generic12":
		return knxdevice.PropertyTypeGeneric12, nil
	case "generic20":
		return knxdevice.PropertyTypeGeneric20, nil
	case "utf8":
		return knxdevice.PropertyTypeUTF8, nil
	default:
		return 0, fmt.Errorf("unknown property type %q", s)
	}
}

func buildMemorySegment(cfg MemorySegmentCfg) (*knxdevice.MemorySegment, error) {
	kind, err := parseMemoryKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", cfg.Size)
	}
	return &knxdevice.MemorySegment{
		StartAddr: cfg.StartAddr,
		Kind:      kind,
		Flags: knxdevice.MemoryFlags{
			Readable: cfg.Flags.Readable,
			Writable: cfg.Flags.Writable,
		},
		Backing: make([]byte, cfg.Size),
	}, nil
}

func parseMemoryKind(s string) (knxdevice.MemoryKind, error) {
	switch s {
	case "ram":
		return knxdevice.RAM, nil
	case "eeprom":
		return knxdevice.EEPROM, nil
	case "flash":
		return knxdevice.FLASH, nil
	default:
		return 0, fmt.Errorf("unknown memory kind %q", s)
	}
}
