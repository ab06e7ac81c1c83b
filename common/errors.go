package common

import "errors"

// Error kinds shared by every tracer subsystem. Callers wrap them with fmt.Errorf("...: %w", ...)
// and test with errors.Is.
var (
	// ErrConfiguration reports an invalid parameter such as a zero width or height.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceExhausted reports that buffers for the requested resolution could not be allocated.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrEncoding reports a scene serialization failure, e.g. too many materials.
	ErrEncoding = errors.New("scene encoding error")

	// ErrDevice reports a failure while executing or reading back a device dispatch.
	ErrDevice = errors.New("device error")

	// ErrSceneSealed is returned when a sphere is added after the scene was handed to a tracer.
	ErrSceneSealed = errors.New("scene is sealed")
)
