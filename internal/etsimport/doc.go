// Package etsimport parses an ETS group-address export (CSV) into the
// address-table and association-table rows a device loads at boot — the
// same rows a bus downloader would otherwise write into the device's
// configuration tables. Parsing is streaming and row-independent: a
// malformed row is recorded as a parse error and skipped whole, never
// half-applied.
package etsimport
