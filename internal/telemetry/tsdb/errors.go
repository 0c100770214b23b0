package tsdb

import "errors"

// Domain-specific errors for time-series operations. Check with
// errors.Is.
var (
	// ErrDisabled is returned by Connect when the influxdb section of the
	// configuration is not enabled.
	ErrDisabled = errors.New("tsdb: sink disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection attempt
	// fails.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrNotConnected is returned when attempting operations on a closed
	// client.
	ErrNotConnected = errors.New("tsdb: client not connected")
)
