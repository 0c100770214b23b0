package transceiver

import "errors"

// Sentinel errors mirroring the C driver's negative return codes
// (TPUART_INIT_ERROR, TPUART_REQ_ERROR, TPUART_RESP_ERROR, TPUART_ARGS_ERROR).
var (
	// ErrInit is returned when the driver fails to bring the chip into a
	// known state during Reset.
	ErrInit = errors.New("transceiver: initialisation failed")

	// ErrReq is returned when a host request could not be written, or the
	// expected echo/confirm bytes did not arrive before the response
	// timeout.
	ErrReq = errors.New("transceiver: request failed or timed out")

	// ErrResp is returned when the chip responded but signalled failure,
	// e.g. a NACK confirm byte after Send.
	ErrResp = errors.New("transceiver: negative response from device")

	// ErrArgs is returned when a call is given arguments the chip cannot
	// accept, e.g. a telegram longer than the variant's max send size.
	ErrArgs = errors.New("transceiver: invalid arguments")

	// ErrClosed is declared alongside the other sentinels; no Driver
	// method returns it.
	ErrClosed = errors.New("transceiver: driver closed")
)
