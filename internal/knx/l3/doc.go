// Package l3 implements the KNX network layer: destination filtering on
// the inbound path, and interface selection by source address on the
// outbound path. It is a thin pass-through — no state of its own beyond
// the configured interface set — grounded on
// gnrc_knx_l3.c's _receive/_send.
package l3
