// Package transceiver implements the link-layer byte-stream drivers that
// sit between a UART and the rest of the KNX stack: TPUART and NCN5120.
// Both chips speak a near-identical host protocol (control-byte framed
// requests/responses, an end-of-telegram gap timer, an optional rolling
// CRC, and a continue/end byte-pair send protocol), so this package
// implements the shared state machine once in Driver and supplies each
// chip's differences — command byte values, timeouts, CRC seed — through
// a Variant value.
//
// A Driver owns the UART exclusively. Its Run goroutine is the only
// reader of the underlying io.Reader; host-initiated requests
// (Reset, SetAddress, Send, ...) serialise through an internal mutex and
// hand responses back to the caller via a small buffered channel.
package transceiver
