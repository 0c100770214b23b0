package knxdevice

import "fmt"

// PropertyType is the semantic type of a property value. The closed KNX
// enum has 64 members; only the ones this stack's testable properties and
// supplemented services reference are named, the rest are represented by
// their raw numeric id via PropertyType(n) — element size still resolves
// correctly through propertyElementSize's default case.
type PropertyType int

const (
	PropertyTypeControl PropertyType = iota + 1
	PropertyTypeChar
	PropertyTypeUnsignedChar
	PropertyTypeInt
	PropertyTypeUnsignedInt
	PropertyTypeKNXFloat
	PropertyTypeDate
	PropertyTypeTime
	PropertyTypeULong
	PropertyTypeSignedLong
	PropertyTypeFloat
	PropertyTypeDouble
	PropertyTypeCharBlock
	PropertyTypePollGroupSettings
	PropertyTypeShortCharBlock
	PropertyTypeDateTime
	PropertyTypeVariableLength
	PropertyTypeGeneric1
	PropertyTypeGeneric2
	PropertyTypeGeneric3
	PropertyTypeGeneric4
	PropertyTypeGeneric6
	PropertyTypeGeneric8
	PropertyTypeGeneric10
	PropertyTypeGeneric12
	PropertyTypeGeneric20
	PropertyTypeUTF8
)

// propertyElementSize returns the fixed per-element byte size for a
// property type, matching the KNX property descriptor layout.
// VARIABLE_LENGTH and UTF8 are reported as 255 per the descriptor
// convention (their true element count is total-size-dependent, resolved
// by the property's own ElementCount field rather than this function).
func propertyElementSize(t PropertyType) int {
	switch t {
	case PropertyTypeControl, PropertyTypeChar, PropertyTypeUnsignedChar, PropertyTypeGeneric1:
		return 1
	case PropertyTypeInt, PropertyTypeUnsignedInt, PropertyTypeGeneric2:
		return 2
	case PropertyTypeGeneric3:
		return 3
	case PropertyTypeKNXFloat, PropertyTypeDate, PropertyTypeTime, PropertyTypeULong,
		PropertyTypeSignedLong, PropertyTypeFloat, PropertyTypeGeneric4:
		return 4
	case PropertyTypeGeneric6:
		return 6
	case PropertyTypeDouble, PropertyTypeDateTime, PropertyTypeGeneric8:
		return 8
	case PropertyTypeGeneric10:
		return 10
	case PropertyTypeGeneric12:
		return 12
	case PropertyTypeGeneric20:
		return 20
	case PropertyTypeVariableLength, PropertyTypeUTF8:
		return 255 //nolint:mnd // descriptor convention: variable/string types report 255
	default:
		return 1
	}
}

// PropertyFlags are the per-property capability bits surfaced in a
// Property-Description-Read response.
type PropertyFlags struct {
	Writable bool
	Pointer  bool
	Array    bool
}

// Property is a single id-addressable value within a PropertyObject.
type Property struct {
	ID           uint8
	Type         PropertyType
	Flags        PropertyFlags
	ElementSize  int // resolved at construction from Type, or overridden for variable-length
	ElementCount int

	value []byte
}

// NewProperty creates a property sized for elementCount elements of the
// given type.
func NewProperty(id uint8, t PropertyType, flags PropertyFlags, elementCount int) *Property {
	size := propertyElementSize(t)
	return &Property{
		ID:           id,
		Type:         t,
		Flags:        flags,
		ElementSize:  size,
		ElementCount: elementCount,
		value:        make([]byte, size*elementCount),
	}
}

// Read copies count elements starting at the 1-based element index start
// into buf. A start of 0 is meaningless here — callers wanting the
// element count for start==0 should use ElementCount directly (this
// mirrors the dispatcher-level special case in Property-Value-Read, not a
// rule of the accessor itself).
func (p *Property) Read(buf []byte, count, start int) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}
	n := count * p.ElementSize
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(buf))
	}
	offset := (start - 1) * p.ElementSize
	if offset < 0 || offset+n > len(p.value) {
		return 0, fmt.Errorf("%w: start=%d count=%d out of range", ErrBufferTooSmall, start, count)
	}
	return copy(buf, p.value[offset:offset+n]), nil
}

// Write copies count elements from buf into the property starting at the
// 1-based element index start. Control properties are state transitions
// handled entirely through device events: a write to one always succeeds
// without mutating the backing bytes, and a subsequent read returns the
// unchanged prior value — matching the testable property that "writes to
// control properties always succeed but read back unchanged".
func (p *Property) Write(buf []byte, count, start int) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}
	if !p.Flags.Writable {
		return 0, ErrNotWritable
	}
	n := count * p.ElementSize
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(buf))
	}
	if p.Type == PropertyTypeControl {
		return n, nil
	}
	offset := (start - 1) * p.ElementSize
	if offset < 0 || offset+n > len(p.value) {
		return 0, fmt.Errorf("%w: start=%d count=%d out of range", ErrBufferTooSmall, start, count)
	}
	copy(p.value[offset:offset+n], buf[:n])
	return n, nil
}

// PropertyObject is a container of properties, addressed by ordinal index
// from the device, with properties inside addressed either by id or by
// (0-based) index.
type PropertyObject struct {
	Properties []*Property
}

// FindByID returns the property with the given id.
func (o *PropertyObject) FindByID(id uint8) (*Property, error) {
	for _, p := range o.Properties {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// FindByIndex returns the property at the given 0-based index.
func (o *PropertyObject) FindByIndex(index int) (*Property, error) {
	if index < 0 || index >= len(o.Properties) {
		return nil, ErrNotFound
	}
	return o.Properties[index], nil
}

// IndexOf returns the 0-based index of the property with the given id.
func (o *PropertyObject) IndexOf(id uint8) (int, error) {
	for i, p := range o.Properties {
		if p.ID == id {
			return i, nil
		}
	}
	return 0, ErrNotFound
}
