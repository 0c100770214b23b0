// Package logging provides structured logging for the KNX device stack.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across every component of the stack.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	l7Logger := logger.With("component", "l7")
//	l7Logger.Info("group value write", "group_address", "0/0/1")
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys.
package logging
