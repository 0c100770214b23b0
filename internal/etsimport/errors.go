package etsimport

import "errors"

// Sentinel errors for import failures. Check with errors.Is.
var (
	// ErrInvalidFile is returned when the input has no recognisable
	// address column header.
	ErrInvalidFile = errors.New("etsimport: no address column found")

	// ErrNoRows is returned when the input parses but yields no valid
	// group-address rows.
	ErrNoRows = errors.New("etsimport: no group addresses found")
)
