package knx

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 16-bit KNX bus address. The same representation carries two
// unrelated interpretations — physical (area.line.device) and group
// (main/mid/sub, or the flat main/sub form) — chosen by the caller, not by
// any tag on the value itself; a telegram's own group-addressed flag says
// which interpretation applies to its destination field.
type Address uint16

// Sentinel addresses.
const (
	Broadcast Address = 0x0000
	Undefined Address = 0xFFFF
)

// Bit widths for the two physical-address component splits and for the two
// group-address component splits.
const (
	areaBits   = 4
	lineBits   = 4
	deviceBits = 8

	mainBits = 5
	midBits  = 3
	subBits  = 8

	main2Bits = 5
	sub2Bits  = 11

	maxArea   = 1<<areaBits - 1
	maxLine   = 1<<lineBits - 1
	maxDevice = 1<<deviceBits - 1

	maxMain = 1<<mainBits - 1
	maxMid  = 1<<midBits - 1
	maxSub  = 1<<subBits - 1

	maxMain2 = 1<<main2Bits - 1
	maxSub2  = 1<<sub2Bits - 1
)

// PhysicalAddress builds a physical address from its area.line.device
// components. It returns ErrAddressRange if any component overflows its
// bit width (4/4/8).
func PhysicalAddress(area, line, device uint8) (Address, error) {
	if area > maxArea {
		return 0, fmt.Errorf("%w: area %d exceeds %d", ErrAddressRange, area, maxArea)
	}
	if line > maxLine {
		return 0, fmt.Errorf("%w: line %d exceeds %d", ErrAddressRange, line, maxLine)
	}
	return Address(uint16(area)<<12 | uint16(line)<<8 | uint16(device)), nil
}

// Physical decomposes the address into its area.line.device components,
// assuming the caller knows this value is a physical address.
func (a Address) Physical() (area, line, device uint8) {
	v := uint16(a)
	return uint8(v >> 12 & 0x0F), uint8(v >> 8 & 0x0F), uint8(v & 0xFF)
}

// GroupAddress builds a 3-level group address from its main/mid/sub
// components (5/3/8 bits). It returns ErrAddressRange if a component
// overflows.
func GroupAddress(main, mid, sub uint8) (Address, error) {
	if main > maxMain {
		return 0, fmt.Errorf("%w: main %d exceeds %d", ErrAddressRange, main, maxMain)
	}
	if mid > maxMid {
		return 0, fmt.Errorf("%w: mid %d exceeds %d", ErrAddressRange, mid, maxMid)
	}
	return Address(uint16(main)<<11 | uint16(mid)<<8 | uint16(sub)), nil
}

// Group decomposes the address into its main/mid/sub components (5/3/8
// bits), assuming the caller knows this value is a 3-level group address.
func (a Address) Group() (main, mid, sub uint8) {
	v := uint16(a)
	return uint8(v >> 11 & 0x1F), uint8(v >> 8 & 0x07), uint8(v & 0xFF)
}

// GroupAddress2 builds a flat (2-level) group address from its main/sub
// components (5/11 bits).
func GroupAddress2(main uint16, sub uint16) (Address, error) {
	if main > maxMain2 {
		return 0, fmt.Errorf("%w: main %d exceeds %d", ErrAddressRange, main, maxMain2)
	}
	if sub > maxSub2 {
		return 0, fmt.Errorf("%w: sub %d exceeds %d", ErrAddressRange, sub, maxSub2)
	}
	return Address(main<<11 | sub), nil
}

// Group2 decomposes the address into its flat main/sub components (5/11
// bits).
func (a Address) Group2() (main uint16, sub uint16) {
	v := uint16(a)
	return v >> 11 & 0x1F, v & 0x7FF
}

// FormatPhysical renders the address in "area.line.device" form.
func (a Address) FormatPhysical() string {
	area, line, device := a.Physical()
	return fmt.Sprintf("%d.%d.%d", area, line, device)
}

// FormatGroup renders the address in 3-level "main/mid/sub" form.
func (a Address) FormatGroup() string {
	main, mid, sub := a.Group()
	return fmt.Sprintf("%d/%d/%d", main, mid, sub)
}

// FormatGroup2 renders the address in flat "main/sub" form.
func (a Address) FormatGroup2() string {
	main, sub := a.Group2()
	return fmt.Sprintf("%d/%d", main, sub)
}

// ParsePhysical parses an "area.line.device" string into an Address.
// Returns ErrAddressFormat if the string does not have three dot-separated
// components, ErrAddressRange if a component overflows.
func ParsePhysical(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 { //nolint:mnd // area.line.device
		return 0, fmt.Errorf("%w: expected area.line.device, got %q", ErrAddressFormat, s)
	}
	area, err := parseComponent(parts[0])
	if err != nil {
		return 0, err
	}
	line, err := parseComponent(parts[1])
	if err != nil {
		return 0, err
	}
	device, err := parseComponent(parts[2])
	if err != nil {
		return 0, err
	}
	return PhysicalAddress(area, line, device)
}

// ParseGroup parses a "main/mid/sub" or "main/sub" string into an Address.
// The 3-level form is tried first; the 2-level flat form is used when the
// string has exactly two components.
func ParseGroup(s string) (Address, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 3: //nolint:mnd // main/mid/sub
		main, err := parseComponent(parts[0])
		if err != nil {
			return 0, err
		}
		mid, err := parseComponent(parts[1])
		if err != nil {
			return 0, err
		}
		sub, err := parseComponent(parts[2])
		if err != nil {
			return 0, err
		}
		return GroupAddress(main, mid, sub)
	case 2: //nolint:mnd // main/sub
		main, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrAddressFormat, parts[0])
		}
		sub, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrAddressFormat, parts[1])
		}
		return GroupAddress2(uint16(main), uint16(sub))
	default:
		return 0, fmt.Errorf("%w: expected main/mid/sub or main/sub, got %q", ErrAddressFormat, s)
	}
}

func parseComponent(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrAddressFormat, s)
	}
	return uint8(v), nil
}

// Compare returns the signed numeric difference between two addresses
// treated as network-order 16-bit values: negative if a < b, zero if
// equal, positive if a > b.
func (a Address) Compare(b Address) int {
	return int(a) - int(b)
}

// Equal reports whether two addresses hold the same 16-bit value.
func (a Address) Equal(b Address) bool {
	return a == b
}
