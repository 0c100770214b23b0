package knxdevice

import (
	"fmt"

	"github.com/basilfx/knx-devstack/internal/knx"
)

// ComObjectType is the fixed semantic type of a communication object:
// seven sub-byte bit widths (Bit1..Bit7, of which only Bit1..Bit6 are
// true sub-byte — Bit7 is a full byte in its own right), eight byte sizes
// up to 14 bytes, and a variable-length case whose byte count is carried
// on the object itself rather than implied by its type.
type ComObjectType int

const (
	Bit1 ComObjectType = iota
	Bit2
	Bit3
	Bit4
	Bit5
	Bit6
	Bit7
	Byte1
	Byte2
	Byte3
	Byte4
	Byte6
	Byte8
	Byte10
	Byte14
	Variable
)

// Size returns the at-rest byte size for fixed-size types. Bit1..Bit6
// report zero — the value occupies no byte of its own at rest, only the
// low N bits of the merged APCI byte during telegram (de)serialisation;
// Read/Write on a ComObject clamp this up to one byte, since even a
// bit-sized value must live somewhere between accesses. Variable returns
// 0; callers must track the configured size separately (see
// ComObject.size).
func (t ComObjectType) Size() int {
	switch t {
	case Bit1, Bit2, Bit3, Bit4, Bit5, Bit6:
		return 0
	case Bit7, Byte1:
		return 1
	case Byte2:
		return 2
	case Byte3:
		return 3
	case Byte4:
		return 4
	case Byte6:
		return 6
	case Byte8:
		return 8
	case Byte10:
		return 10
	case Byte14:
		return 14
	default:
		return 0
	}
}

// String returns the type's configuration-file name ("bit1".."byte14",
// "variable").
func (t ComObjectType) String() string {
	names := [...]string{
		"bit1", "bit2", "bit3", "bit4", "bit5", "bit6", "bit7",
		"byte1", "byte2", "byte3", "byte4", "byte6", "byte8", "byte10", "byte14",
		"variable",
	}
	if t < 0 || int(t) >= len(names) {
		return fmt.Sprintf("comobjecttype(%d)", int(t))
	}
	return names[t]
}

// SubByteWidth returns the number of significant bits for sub-byte types
// (1..6), or 0 for byte-sized and variable types.
func (t ComObjectType) SubByteWidth() int {
	switch t {
	case Bit1:
		return 1
	case Bit2:
		return 2
	case Bit3:
		return 3
	case Bit4:
		return 4
	case Bit5:
		return 5
	case Bit6:
		return 6
	default:
		return 0
	}
}

// AccessFlags are the per-object permission bits the application layer
// checks before acting on a group or property service.
type AccessFlags struct {
	Enabled  bool
	Read     bool
	Write    bool
	Transmit bool
	Update   bool
}

// ComObject is a single addressable, typed value exchanged over group
// addresses. Storage is always a Go slice; the inline-vs-pointer storage
// discriminator of the sources this is modelled on is a microcontroller
// memory-layout optimisation with no analogue once the backing store is a
// garbage-collected slice, so it is not reproduced here.
type ComObject struct {
	Type     ComObjectType
	Priority knx.Priority
	Access   AccessFlags

	size  int // overrides Type.Size() when Type == Variable
	value []byte
}

// atRestSize is a type's storage footprint between accesses: Size(),
// clamped up to one byte for the sub-byte types that report zero.
func atRestSize(t ComObjectType) int {
	if n := t.Size(); n > 0 {
		return n
	}
	return 1
}

// NewComObject creates a communication object of a fixed-size type, zero
// valued.
func NewComObject(t ComObjectType, priority knx.Priority, access AccessFlags) *ComObject {
	return &ComObject{
		Type:     t,
		Priority: priority,
		Access:   access,
		value:    make([]byte, atRestSize(t)),
	}
}

// NewVariableComObject creates a communication object of the
// variable-length type with the given byte size.
func NewVariableComObject(size int, priority knx.Priority, access AccessFlags) *ComObject {
	return &ComObject{
		Type:     Variable,
		Priority: priority,
		Access:   access,
		size:     size,
		value:    make([]byte, size),
	}
}

// Size returns the object's at-rest byte size.
func (c *ComObject) Size() int {
	if c.Type == Variable {
		return c.size
	}
	return atRestSize(c.Type)
}

// Read copies the object's current value into buf, returning the number
// of bytes written. Sub-byte types still report/copy a whole byte — bit
// widths only matter at telegram (de)serialisation time.
func (c *ComObject) Read(buf []byte) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}
	if !c.Access.Enabled || !c.Access.Read {
		return 0, ErrNotReadable
	}
	n := c.Size()
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(buf))
	}
	return copy(buf, c.value), nil
}

// Write replaces the object's value from buf.
func (c *ComObject) Write(buf []byte) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}
	if !c.Access.Enabled || !c.Access.Write {
		return 0, ErrNotWritable
	}
	n := c.Size()
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(buf))
	}
	copy(c.value, buf[:n])
	return n, nil
}

// Value returns the object's raw stored bytes. Callers must not retain or
// mutate the returned slice across a subsequent Write.
func (c *ComObject) Value() []byte {
	return c.value
}

// Update writes a value arriving as a Group-Value-Response off the bus.
// It is gated by the Update access flag rather than Write's — a
// Group-Value-Response updates the object's held value even when the
// object does not accept direct Group-Value-Write commands, the
// distinction the application layer's two incoming services respect.
func (c *ComObject) Update(buf []byte) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}
	if !c.Access.Enabled || !c.Access.Update {
		return 0, ErrNotWritable
	}
	n := c.Size()
	if len(buf) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, n, len(buf))
	}
	copy(c.value, buf[:n])
	return n, nil
}
