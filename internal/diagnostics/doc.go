// Package diagnostics exposes a small HTTP/WebSocket surface over the
// running device stack: list communication objects and their current
// values, force a group-value write, read the persisted event log, and
// stream every telegram crossing the link driver live (a bus monitor).
// All routes except login are gated by a bearer JWT issued against a
// single configured shared secret.
package diagnostics
