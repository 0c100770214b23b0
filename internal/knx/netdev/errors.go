package netdev

import "errors"

var (
	// ErrIncomplete is delivered through Recv when the link driver's
	// end-of-telegram gap fired before enough bytes arrived for a
	// complete telegram.
	ErrIncomplete = errors.New("netdev: incomplete telegram")

	// ErrClosed is returned once the underlying driver's Events channel
	// has been closed (Run returned).
	ErrClosed = errors.New("netdev: device closed")
)
