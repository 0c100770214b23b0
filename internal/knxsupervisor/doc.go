// Package knxsupervisor runs the protocol stack's worker goroutines —
// the link receive loop and one task per layer, each with a bounded
// mailbox — under restart-on-panic supervision. Layers themselves stay
// synchronous; this package owns all the goroutines and channels so the
// concurrency model lives in one place.
package knxsupervisor
