package knx

import "errors"

// Sentinel errors returned by the telegram codec and address parser.
// Callers should compare with errors.Is, not string matching.
var (
	// ErrUnknownType is returned when a buffer does not match any of the
	// three declared telegram shapes (standard, extended, poll).
	ErrUnknownType = errors.New("knx: buffer does not match a known telegram type")

	// ErrTooShort is returned when a buffer is shorter than the minimum
	// length for its apparent type, or shorter than any type's minimum.
	ErrTooShort = errors.New("knx: telegram buffer too short")

	// ErrBadChecksum is returned by Parse when the trailing checksum byte
	// does not match the XOR of the preceding bytes.
	ErrBadChecksum = errors.New("knx: checksum invalid")

	// ErrPayloadTooLarge is returned by SetPayload when the supplied
	// payload would overflow the telegram type's length field.
	ErrPayloadTooLarge = errors.New("knx: payload exceeds telegram type's capacity")

	// ErrWrongType is returned by accessors that only apply to one
	// telegram type when called against a telegram of another type.
	ErrWrongType = errors.New("knx: accessor not valid for this telegram type")

	// ErrAddressRange is returned by the address constructors when a
	// component (area, line, device, main, mid, sub) overflows its bit
	// width.
	ErrAddressRange = errors.New("knx: address component out of range")

	// ErrAddressFormat is returned by the address parsers when the
	// input string does not match the expected "a.l.d" or "m/s/u" shape.
	ErrAddressFormat = errors.New("knx: malformed address string")
)
