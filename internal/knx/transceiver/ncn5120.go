package transceiver

import (
	"io"
	"time"
)

// ncn5120Commands is the ON Semiconductor NCN5120 command/service byte
// table. It shares most values with TPUART but uses a different set-
// address request code, and adds services (stop mode, >64-byte offset
// sends, internal register access) this driver does not expose.
var ncn5120Commands = commands{
	LDataConfirm:     0x0b,
	LDataRequest:     0x90,
	LExtDataRequest:  0x10,
	LPollDataRequest: 0xf0,

	ActivateBusmon: 0x05,
	ActivateBusy:   0x21,
	ActivateCRC:    0x25,
	DataContinue:   0x80,
	DataEnd:        0x40,
	ResetCounter:   0x24,
	ProductIDReq:   0x20,
	ResetBusyMode:  0x22,
	ResetRequest:   0x01,
	ResetResponse:  0x03,
	SetAddress:     0xf1, // U_SET_ADDRESS_REQUEST, differs from TPUART's 0x28
	StateRequest:   0x02,
	StateResponse:  0x07,
}

// NCN5120Params builds the Params for an ON Semiconductor NCN5120.
func NCN5120Params() Params {
	return Params{
		Name:            "ncn5120",
		Commands:        ncn5120Commands,
		EndOfTelegram:   2600 * time.Microsecond,
		WaitForAck:      5200 * time.Microsecond,
		WaitForResponse: 100 * time.Millisecond,
		CRCSeed:         0xffff,
		CRCEnabled:      true,
		MaxSend:         64,
		PollMin:         7,
		PollMax:         7,
	}
}

// NewNCN5120 opens a Driver for an NCN5120 chip reachable over port.
// Sends larger than Params.MaxSend require the offset continuation
// service (U_L_DATA_OFFSET_REQUEST) this driver does not implement; such
// telegrams never occur at standard/extended frame sizes, so Send's
// existing 64-byte ceiling is never actually exercised by this stack.
func NewNCN5120(port io.ReadWriter, logger Logger) *Driver {
	return New(port, NCN5120Params(), logger)
}

// DialNCN5120 opens the UART device and wraps it in a Driver, without
// starting Run.
func DialNCN5120(device string, logger Logger) (*Driver, io.Closer, error) {
	port, err := OpenUART(device, 100*time.Millisecond)
	if err != nil {
		return nil, nil, err
	}
	return NewNCN5120(port, logger), port, nil
}
