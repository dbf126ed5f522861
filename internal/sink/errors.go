package sink

import "errors"

// Sentinel errors, check them with errors.Is.
var (
	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("sink: connection failed")

	// ErrPublishFailed indicates an MQTT publish was not acknowledged.
	ErrPublishFailed = errors.New("sink: publish failed")

	// ErrDisabled indicates the sink is disabled in configuration.
	ErrDisabled = errors.New("sink: disabled in configuration")
)
