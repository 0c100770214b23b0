package transceiver

import (
	"io"
	"time"
)

// tpuartCommands is the Siemens TPUART command/service byte table.
var tpuartCommands = commands{
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
	SetAddress:     0x28,
	StateRequest:   0x02,
	StateResponse:  0x07,
}

// TPUARTParams builds the Params for a Siemens TPUART(2).
func TPUARTParams() Params {
	return Params{
		Name:            "tpuart",
		Commands:        tpuartCommands,
		EndOfTelegram:   2500 * time.Microsecond,
		WaitForAck:      5 * time.Millisecond,
		WaitForResponse: 100 * time.Millisecond,
		CRCSeed:         0x1d0f,
		CRCEnabled:      true,
		MaxSend:         64,
		PollMin:         7,
		PollMax:         7,
	}
}

// NewTPUART opens a Driver for a TPUART chip reachable over port.
func NewTPUART(port io.ReadWriter, logger Logger) *Driver {
	return New(port, TPUARTParams(), logger)
}

// DialTPUART opens the UART device and wraps it in a Driver, without
// starting Run.
func DialTPUART(device string, logger Logger) (*Driver, io.Closer, error) {
	port, err := OpenUART(device, 100*time.Millisecond)
	if err != nil {
		return nil, nil, err
	}
	return NewTPUART(port, logger), port, nil
}
