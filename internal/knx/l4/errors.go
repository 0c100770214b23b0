package l4

import "errors"

// ErrNotConnected is returned by Send for an NDP telegram whose
// destination does not match the current connection, or when there is
// no active connection at all.
var ErrNotConnected = errors.New("l4: not connected to destination")
