package mqtt

import "errors"

// Domain-specific errors for MQTT operations. Check with errors.Is.
var (
	// ErrDisabled is returned by Connect when the mqtt section of the
	// configuration is not enabled.
	ErrDisabled = errors.New("mqtt: sink disabled in configuration")

	// ErrNotConnected is declared alongside the other sentinels; nothing
	// in this package returns it.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt
	// fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty topic, or a command topic
	// whose group address cannot be parsed, is encountered.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidCommand is returned when an inbound set command carries a
	// payload no encoder recognises.
	ErrInvalidCommand = errors.New("mqtt: invalid command payload")
)
