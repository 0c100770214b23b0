package knxdevice

import "errors"

// Sentinel errors returned by the object-model accessors. The original
// C sources these are modelled on return small negative integers
// (-1/-2/-3); Go never overloads a return value's sign, so the accessors
// here return (int, error) pairs instead, checked with errors.Is.
var (
	// ErrNilBuffer is returned when a read/write is given a nil
	// destination/source buffer.
	ErrNilBuffer = errors.New("knxdevice: buffer is nil")

	// ErrBufferTooSmall is returned when a read's destination buffer (or
	// a write's source buffer) cannot hold the requested element count.
	ErrBufferTooSmall = errors.New("knxdevice: buffer too small")

	// ErrNotWritable is returned by Write when the target does not carry
	// write access.
	ErrNotWritable = errors.New("knxdevice: not writable")

	// ErrNotReadable is returned by Read when the target does not carry
	// read access.
	ErrNotReadable = errors.New("knxdevice: not readable")

	// ErrNotFound is returned when a property, communication object, or
	// memory segment lookup fails to find a match.
	ErrNotFound = errors.New("knxdevice: not found")

	// ErrOverlap is returned when a memory segment would overlap an
	// existing one.
	ErrOverlap = errors.New("knxdevice: memory segments overlap")

	// ErrSerialMismatch is returned by the serial-gated individual
	// address services when the supplied serial does not match the
	// device's own.
	ErrSerialMismatch = errors.New("knxdevice: serial number mismatch")

	// ErrEncodingFailed is returned by a DPT encoder when the supplied
	// value cannot be represented in the target datapoint type.
	ErrEncodingFailed = errors.New("knxdevice: dpt encoding failed")

	// ErrDecodingFailed is returned by a DPT decoder when the supplied
	// bytes are too short or out of range for the datapoint type.
	ErrDecodingFailed = errors.New("knxdevice: dpt decoding failed")
)
