// Package l7 implements the KNX application layer: dispatch of the
// standard and extended APCI service set against a device's object
// model (communication objects, memory segments, properties, the
// info table), and the outward update_com_object fan-out used to push
// a host-initiated value change out as one Group-Value-Write telegram
// per associated group address. Grounded on gnrc_knx_l7.c's
// _handle_apci / _handle_apci_extended and the per-service handlers it
// dispatches to.
package l7
