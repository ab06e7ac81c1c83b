package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

// BackendType identifies the compute implementation behind a Device.
type BackendType int

const (
	// BackendTypeCPU runs the ray kernels in Go on a worker pool.
	BackendTypeCPU BackendType = iota
	// BackendTypeWGPU runs the ray kernels as WGSL compute shaders through WebGPU.
	BackendTypeWGPU
)

// String returns the backend name accepted by ParseBackendType.
func (b BackendType) String() string {
	switch b {
	case BackendTypeCPU:
		return "cpu"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackendType converts a backend name ("cpu" or "wgpu") to a BackendType.
//
// Parameters:
//   - name: the backend name, case-insensitive
//
// Returns:
//   - BackendType: the parsed backend
//   - error: common.ErrConfiguration for an unknown name
func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return BackendTypeCPU, nil
	case "wgpu", "gpu", "webgpu":
		return BackendTypeWGPU, nil
	}
	return 0, fmt.Errorf("unknown backend %q: %w", name, common.ErrConfiguration)
}

// RayBuffer is a device-owned array of ray records.
type RayBuffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Len returns the number of ray records the buffer holds.
	Len() int

	// Read copies the buffer contents back to the host.
	//
	// Returns:
	//   - []common.Ray: a host copy of every ray
	//   - error: wraps common.ErrDevice if the readback fails
	Read() ([]common.Ray, error)

	// Release frees the device memory. The buffer must not be used afterwards.
	Release()
}

// ImageBuffer is a device-owned RGBA float radiance image, one texel per pixel.
type ImageBuffer interface {
	// Width returns the image width in texels.
	Width() uint32

	// Height returns the image height in texels.
	Height() uint32

	// Read copies the texels back to the host as interleaved RGBA floats.
	//
	// Parameters:
	//   - dst: destination slice of length 4*Width*Height
	//
	// Returns:
	//   - error: common.ErrConfiguration for a wrongly sized dst, common.ErrDevice on readback failure
	Read(dst []float32) error

	// Release frees the device memory. The buffer must not be used afterwards.
	Release()
}

// DispatchParams carries the per-dispatch inputs shared by both kernels.
type DispatchParams struct {
	// Seed is drawn fresh for every dispatch.
	Seed [3]uint32
	// Bounce is the index of the bounce being dispatched (unused by generation).
	Bounce uint32
	// Jitter offsets each primary ray randomly inside its pixel.
	Jitter bool
	// Background is the radiance returned by rays that escape the scene.
	Background Background
}

// Device is the compute capability every tracer operation runs on.
// All dispatch methods are synchronous: they return only after the device has finished the
// dispatch, which gives the barrier the ping-pong ray buffers rely on.
type Device interface {
	// BackendType returns the implementation kind.
	//
	// Returns:
	//   - BackendType: the backend
	BackendType() BackendType

	// MaxBufferSize returns the largest single buffer the device will allocate.
	//
	// Returns:
	//   - uint64: the limit in bytes
	MaxBufferSize() uint64

	// NewRayBuffer allocates a ray buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - count: number of ray records (must be positive)
	//
	// Returns:
	//   - RayBuffer: the new buffer
	//   - error: common.ErrResourceExhausted if the buffer exceeds the device limit
	NewRayBuffer(label string, count int) (RayBuffer, error)

	// NewImageBuffer allocates a zeroed radiance image.
	//
	// Parameters:
	//   - label: debug label
	//   - width, height: image size in texels (both must be positive)
	//
	// Returns:
	//   - ImageBuffer: the new image
	//   - error: common.ErrResourceExhausted if the image exceeds the device limit
	NewImageBuffer(label string, width, height uint32) (ImageBuffer, error)

	// UploadScene replaces the scene the bounce kernel intersects against.
	//
	// Parameters:
	//   - enc: the encoded scene
	//
	// Returns:
	//   - error: error if the upload fails
	UploadScene(enc scene.EncodedScene) error

	// ClearImage zeroes every texel of img.
	//
	// Parameters:
	//   - img: the image to clear
	//
	// Returns:
	//   - error: error if the clear fails
	ClearImage(img ImageBuffer) error

	// Generate writes one primary ray per pixel into dst.
	//
	// Parameters:
	//   - ctx: cancels the dispatch before it is issued
	//   - cam: camera snapshot; Width*Height must equal dst.Len()
	//   - dst: destination ray buffer
	//   - params: per-dispatch inputs
	//
	// Returns:
	//   - error: error if the dispatch fails or ctx is done
	Generate(ctx context.Context, cam camera.GPUCameraUniform, dst RayBuffer, params DispatchParams) error

	// Bounce advances every ray in src by one segment, writing the result to dst and
	// adding radiance from terminated paths into img. Finished rays are copied unchanged.
	//
	// Parameters:
	//   - ctx: cancels the dispatch before it is issued
	//   - src: source ray buffer
	//   - dst: destination ray buffer, distinct from src and of equal length
	//   - img: radiance accumulation image
	//   - params: per-dispatch inputs
	//
	// Returns:
	//   - error: error if the dispatch fails or ctx is done
	Bounce(ctx context.Context, src, dst RayBuffer, img ImageBuffer, params DispatchParams) error

	// Release frees every device resource. The device must not be used afterwards.
	Release()
}

// NewDevice creates a Device for the configured backend. The CPU backend is the default.
//
// Parameters:
//   - options: functional options selecting and tuning the backend
//
// Returns:
//   - Device: the new device
//   - error: error if the backend cannot be initialized
func NewDevice(options ...DeviceBuilderOption) (Device, error) {
	cfg := defaultDeviceConfig()
	for _, opt := range options {
		opt(cfg)
	}

	switch cfg.backend {
	case BackendTypeCPU:
		return newCPUDevice(cfg), nil
	case BackendTypeWGPU:
		d, err := newWGPUDevice(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported backend %v: %w", cfg.backend, common.ErrConfiguration)
	}
}

// checkPair validates a source/destination pair for a bounce dispatch.
func checkPair(src, dst RayBuffer) error {
	if src == nil || dst == nil {
		return fmt.Errorf("nil ray buffer: %w", common.ErrConfiguration)
	}
	if src == dst {
		return fmt.Errorf("source and destination are the same buffer %q: %w", src.Label(), common.ErrConfiguration)
	}
	if src.Len() != dst.Len() {
		return fmt.Errorf("ray buffer sizes differ (%d vs %d): %w", src.Len(), dst.Len(), common.ErrConfiguration)
	}
	return nil
}

// checkSize rejects buffers larger than limit.
func checkSize(label string, size, limit uint64) error {
	if size > limit {
		return fmt.Errorf("%s needs %d bytes, device limit is %d: %w", label, size, limit, common.ErrResourceExhausted)
	}
	return nil
}
