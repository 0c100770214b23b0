// Package knxdevice implements the KNX device object model: communication
// objects, properties (grouped into property objects), memory segments,
// and the group-address-to-communication-object association table that the
// application layer (package l7) manipulates.
//
// The model is built once at configuration time from static tables
// (AddressTableRow / AssocTableRow) and lives for the process. It has a
// single logical writer — the application layer — and is safe for
// concurrent reads from any goroutine; callers that mutate it (property
// writes, association rebuilds) are responsible for serialising those
// writes themselves, matching the single-writer discipline the rest of the
// stack already assumes for this model.
package knxdevice
