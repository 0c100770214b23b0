package knx

// APCI is the 4-bit application-layer service identifier carried across
// the TPCI byte's low 2 bits and the following byte's top 2 bits. Escape
// (0x0F) promotes the service to the 10-bit ExtendedAPCI space.
type APCI int

const (
	GroupValueRead APCI = iota
	GroupValueResponse
	GroupValueWrite
	IndividualAddressWrite
	IndividualAddressRead
	IndividualAddressResponse
	ADCRead
	ADCResponse
	MemoryRead
	MemoryResponse
	MemoryWrite
	UserMessage
	MaskVersionRead
	MaskVersionResponse
	Restart
	Escape
)

// ExtendedAPCI is the 10-bit service code used once APCI == Escape: the
// low 2 bits of the TPCI byte become its top 2 bits, and the full
// following byte becomes its low 8 bits. Only the services actually
// dispatched by this stack's application layer are named; the registry
// has further codepoints this implementation never emits or parses.
type ExtendedAPCI int

const (
	ExtDeviceDescriptorRead            ExtendedAPCI = 0x0300
	ExtDeviceDescriptorResponse        ExtendedAPCI = 0x0340
	ExtAuthorizeRequest                ExtendedAPCI = 0x03d1
	ExtAuthorizeResponse               ExtendedAPCI = 0x03d2
	ExtPropertyValueRead               ExtendedAPCI = 0x03d5
	ExtPropertyValueResponse           ExtendedAPCI = 0x03d6
	ExtPropertyValueWrite              ExtendedAPCI = 0x03d7
	ExtPropertyDescriptionRead         ExtendedAPCI = 0x03d8
	ExtPropertyDescriptionResponse     ExtendedAPCI = 0x03d9
	ExtIndividualAddressSerialRead     ExtendedAPCI = 0x03dc
	ExtIndividualAddressSerialResponse ExtendedAPCI = 0x03dd
	ExtIndividualAddressSerialWrite    ExtendedAPCI = 0x03de
)

// apciByteOffset returns the offset of the byte following the TPCI byte —
// the one whose top 2 bits hold APCI-low (or, after escape, the low 8
// bits of the extended code). -1 when the telegram has no payload byte at
// all (a pure TPCI control frame, or poll).
func (t Telegram) apciByteOffset() int {
	off, n := t.payloadOffset()
	if off < 0 || n == 0 {
		return -1
	}
	return off
}

// APCI returns the 4-bit application service code. Zero value
// (GroupValueRead) on a telegram with no payload byte (pure TPCI control
// frame) or on poll telegrams.
func (t Telegram) APCI() APCI {
	tOff := t.tpciOffset()
	aOff := t.apciByteOffset()
	if tOff < 0 || aOff < 0 || tOff >= len(t) || aOff >= len(t) {
		return GroupValueRead
	}
	hi := t[tOff] & 0x03
	lo := t[aOff] >> 6 & 0x03
	return APCI(hi<<2 | lo)
}

// SetAPCI writes the 4-bit application service code, splitting it across
// the TPCI byte's low 2 bits and the following byte's top 2 bits. No-op if
// the telegram has no payload byte to carry it.
func (t Telegram) SetAPCI(a APCI) {
	tOff := t.tpciOffset()
	aOff := t.apciByteOffset()
	if tOff < 0 || aOff < 0 || tOff >= len(t) || aOff >= len(t) {
		return
	}
	t[tOff] = t[tOff]&^0x03 | byte(a>>2)&0x03
	t[aOff] = t[aOff]&^0xC0 | byte(a&0x03)<<6
}

// ExtendedAPCI returns the 10-bit extended service code, valid only once
// APCI()==Escape: bits 9..8 are the TPCI byte's low 2 bits, bits 7..0 are
// the full following byte.
func (t Telegram) ExtendedAPCI() ExtendedAPCI {
	tOff := t.tpciOffset()
	aOff := t.apciByteOffset()
	if tOff < 0 || aOff < 0 || tOff >= len(t) || aOff >= len(t) {
		return 0
	}
	hi := int(t[tOff] & 0x03)
	lo := int(t[aOff])
	return ExtendedAPCI(hi<<8 | lo)
}

// SetExtendedAPCI sets APCI to Escape and writes the 10-bit extended code,
// consuming the entire following byte — any sub-byte data that byte might
// otherwise have carried is overwritten.
func (t Telegram) SetExtendedAPCI(code ExtendedAPCI) {
	tOff := t.tpciOffset()
	aOff := t.apciByteOffset()
	if tOff < 0 || aOff < 0 || tOff >= len(t) || aOff >= len(t) {
		return
	}
	t[tOff] = t[tOff]&^0x03 | byte(code>>8)&0x03
	t[aOff] = byte(code)
}

// SubByteData returns the low 6 bits of the APCI byte — where sub-byte
// communication object values (BIT1..BIT6) ride alongside the APCI-low
// bits for Group-Value services.
func (t Telegram) SubByteData() byte {
	aOff := t.apciByteOffset()
	if aOff < 0 || aOff >= len(t) {
		return 0
	}
	return t[aOff] & 0x3F
}

// SetSubByteData writes the low 6 bits of the APCI byte without disturbing
// the APCI-low bits already stored in the top 2 bits.
func (t Telegram) SetSubByteData(v byte) {
	aOff := t.apciByteOffset()
	if aOff < 0 || aOff >= len(t) {
		return
	}
	t[aOff] = t[aOff]&^0x3F | v&0x3F
}

// ExtendedData returns the payload bytes following the APCI byte, for
// extended-APCI services whose parameters ride in subsequent bytes
// (Property-Value-Read/Write, Memory-Read/Write, Authorize, and similar).
func (t Telegram) ExtendedData() []byte {
	off, n := t.payloadOffset()
	if off < 0 || n <= 1 {
		return nil
	}
	return t[off+1 : off+n]
}
