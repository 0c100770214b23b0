// Package netdev presents a link-layer transceiver driver as a generic
// frame device: Recv returns a validated telegram (or an error for a
// malformed/incomplete one), and Send fills in the checksum before
// handing the telegram to the driver's own send protocol. It is the
// seam between the TPUART/NCN5120 byte-stream drivers and the network
// layer above them.
package netdev
