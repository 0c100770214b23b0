// Package knx implements the wire-level building blocks of a KNX TP1 bus
// node: telegram framing for the three frame shapes (standard, extended,
// poll), the 16-bit address value type shared by physical and group
// addresses, and the TPCI/APCI bit accessors layered on top of a telegram
// buffer.
//
// Everything in this package is a pure function over a byte buffer; it
// owns no goroutines, no I/O, and no device state. The link-layer
// transceiver drivers (package transceiver) produce telegrams that this
// package parses; the higher protocol layers (l3, l4, l7) consume and
// mutate them through these accessors.
package knx
