// Package tsdb records communication-object writes as time-series points
// in InfluxDB, tagged by group address and object type, for historical
// trending of bus activity. Writes are batched and asynchronous; a lost
// or slow InfluxDB endpoint never stalls the protocol stack.
package tsdb
