// Package l4 implements the KNX transport layer: the single-connection
// UCD/NCD control state machine, sequence-numbered NDP delivery with
// automatic acknowledgement, and connectionless UDP pass-through.
// Grounded on gnrc_knx_l4.c, which this stack mirrors down to its
// single-active-connection restriction (System-7 devices being
// resource-constrained enough that one peer at a time is the norm).
package l4
