package device

import (
	"runtime"
)

// deviceConfig collects the options for both backends before one is constructed.
type deviceConfig struct {
	backend BackendType

	// CPU backend
	workers   int
	chunkSize int

	// WGPU backend
	forceFallbackAdapter bool

	maxBufferSize uint64
}

func defaultDeviceConfig() *deviceConfig {
	return &deviceConfig{
		backend:       BackendTypeCPU,
		workers:       max(runtime.NumCPU()-1, 1),
		chunkSize:     4096,
		maxBufferSize: 256 << 20,
	}
}

// DeviceBuilderOption is a functional option for configuring a Device.
type DeviceBuilderOption func(*deviceConfig)

// WithBackend selects the compute backend.
//
// Parameters:
//   - backend: BackendTypeCPU (default) or BackendTypeWGPU
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithBackend(backend BackendType) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.backend = backend
	}
}

// WithWorkers sets the number of worker goroutines the CPU backend dispatches on.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the worker count (minimum 1)
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithWorkers(n int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.workers = max(n, 1)
	}
}

// WithChunkSize sets how many rays one CPU worker task processes.
//
// Parameters:
//   - n: rays per task (minimum 1)
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithChunkSize(n int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.chunkSize = max(n, 1)
	}
}

// WithMaxBufferSize caps the size of any single ray or image buffer.
// The WGPU backend additionally clamps this to the adapter's limits.
//
// Parameters:
//   - bytes: the limit in bytes
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithMaxBufferSize(bytes uint64) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if bytes > 0 {
			c.maxBufferSize = bytes
		}
	}
}

// WithForceFallbackAdapter requests the software fallback adapter on the WGPU backend.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}
