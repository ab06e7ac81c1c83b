package tracer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

// DefaultBackground is the uniform sky radiance used when no background option is given.
var DefaultBackground = [3]float32{0.5, 0.7, 1.0}

type tracerImpl struct {
	// runMu serializes every operation that dispatches or replaces device state.
	runMu *sync.Mutex
	// mu guards the camera resolution, ray state and accumulator as one unit for readers.
	mu *sync.RWMutex

	dev         device.Device
	cam         camera.Camera
	scene       scene.Scene
	rays        RayState
	accumulator SampleAccumulator
	dispatcher  *bounceDispatcherImpl

	maxBounces uint32
	jitter     bool
	background device.Background
	seeds      SeedSource

	needsClear bool
	samples    atomic.Uint64
}

// Tracer ties a camera, a scene and a device together and runs the progressive sample loop.
// Dispatching methods (Compute, Perform, Resize, Move, SetScene, Clear) are serialized
// internally; readers (Frame, Dimensions, RayState) may be called from any goroutine.
type Tracer interface {
	// Compute traces one sample into the accumulator and publishes the updated frame.
	// The accumulator is cleared first if the previous samples were invalidated.
	//
	// Parameters:
	//   - ctx: cancels the sample between dispatches
	//
	// Returns:
	//   - *Frame: the frame published for this sample
	//   - error: error if the sample failed or was cancelled; nothing is published then
	Compute(ctx context.Context) (*Frame, error)

	// Perform invalidates the accumulated image and traces the camera's samples-per-pixel
	// count of samples, publishing after each one.
	//
	// Parameters:
	//   - ctx: cancels the remaining samples
	//
	// Returns:
	//   - error: the first sample error, or ctx.Err() when cancelled
	Perform(ctx context.Context) error

	// Clear invalidates the accumulated samples. The image is zeroed before the next sample.
	Clear()

	// Resize rebuilds the camera, the ray buffers and the accumulation image for a new resolution.
	// The new buffers are allocated before anything is swapped, so a failed allocation
	// leaves the tracer at its previous size.
	//
	// Parameters:
	//   - width, height: the new resolution
	//
	// Returns:
	//   - bool: true if the resolution changed
	//   - error: common.ErrConfiguration for a zero size, common.ErrResourceExhausted if allocation fails
	Resize(width, height uint32) (bool, error)

	// Move translates the camera one step and invalidates the accumulated samples.
	//
	// Parameters:
	//   - direction: the move command
	Move(direction camera.MoveDirection)

	// SetScene seals, encodes and uploads s, then invalidates the accumulated samples.
	// On error the previous scene stays in use.
	//
	// Parameters:
	//   - s: the new scene
	//
	// Returns:
	//   - error: common.ErrEncoding if s cannot be encoded, or the upload error
	SetScene(s scene.Scene) error

	// Camera returns the tracer's camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Dimensions returns the current resolution. It is read under the same lock as the
	// ray buffers, so it always matches RayState().Len().
	//
	// Returns:
	//   - width, height: the resolution in pixels
	Dimensions() (width, height uint32)

	// RayState returns the current ping-pong buffers.
	//
	// Returns:
	//   - RayState: the ray state
	RayState() RayState

	// Dispatcher returns the bounce dispatcher.
	//
	// Returns:
	//   - BounceDispatcher: the dispatcher
	Dispatcher() BounceDispatcher

	// Frame returns the latest published frame, or nil before the first sample completes.
	//
	// Returns:
	//   - *Frame: the frame
	Frame() *Frame

	// SamplesTraced returns the number of samples completed since the tracer was created.
	//
	// Returns:
	//   - uint64: the sample counter
	SamplesTraced() uint64

	// Release frees every device resource the tracer owns. The device itself is not released.
	Release()
}

var _ Tracer = &tracerImpl{}

// NewTracer builds a tracer for cam and s on dev. The scene is sealed and uploaded, and ray
// buffers and the accumulation image are allocated for the camera resolution.
//
// Parameters:
//   - dev: the compute device
//   - cam: the camera
//   - s: the scene
//   - options: functional options such as WithMaxBounces and WithSeedSource
//
// Returns:
//   - Tracer: the new tracer
//   - error: error if the scene cannot be encoded or the buffers cannot be allocated
func NewTracer(dev device.Device, cam camera.Camera, s scene.Scene, options ...TracerBuilderOption) (Tracer, error) {
	if dev == nil || cam == nil || s == nil {
		return nil, fmt.Errorf("tracer needs a device, a camera and a scene: %w", common.ErrConfiguration)
	}

	t := &tracerImpl{
		runMu:      &sync.Mutex{},
		mu:         &sync.RWMutex{},
		dev:        dev,
		cam:        cam,
		maxBounces: DefaultMaxBounces,
		jitter:     true,
		background: device.UniformBackground(DefaultBackground),
		needsClear: true,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.seeds == nil {
		t.seeds = NewRandomSeedSource()
	}
	t.dispatcher = newBounceDispatcher(t.maxBounces, t.jitter, t.background, t.seeds)

	if err := t.uploadScene(s); err != nil {
		return nil, err
	}

	width, height := cam.Resolution()
	rays, img, err := t.allocate(width, height)
	if err != nil {
		return nil, err
	}
	t.rays = rays
	t.accumulator = newSampleAccumulator(dev, img)
	return t, nil
}

func (t *tracerImpl) uploadScene(s scene.Scene) error {
	s.Seal()
	enc, err := s.Encode()
	if err != nil {
		return err
	}
	if err := t.dev.UploadScene(enc); err != nil {
		return fmt.Errorf("failed to upload scene: %w", err)
	}
	t.scene = s
	return nil
}

// allocate builds a ray state and radiance image for width x height without touching the tracer.
func (t *tracerImpl) allocate(width, height uint32) (RayState, device.ImageBuffer, error) {
	rays, err := NewRayState(t.dev, int(width)*int(height))
	if err != nil {
		return nil, nil, err
	}
	img, err := t.dev.NewImageBuffer("Radiance Image", width, height)
	if err != nil {
		rays.Release()
		return nil, nil, err
	}
	return rays, img, nil
}

func (t *tracerImpl) Compute(ctx context.Context) (*Frame, error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.compute(ctx)
}

// compute runs one sample. Caller must hold runMu.
func (t *tracerImpl) compute(ctx context.Context) (*Frame, error) {
	t.mu.RLock()
	rays, acc := t.rays, t.accumulator
	cam := t.cam.Uniform()
	t.mu.RUnlock()

	if t.needsClear {
		if err := acc.Clear(); err != nil {
			return nil, err
		}
		t.needsClear = false
	}

	if err := t.dispatcher.Run(ctx, t.dev, cam, rays, acc.Image()); err != nil {
		// The image may hold part of the cancelled sample.
		t.needsClear = true
		return nil, err
	}
	acc.AddSample()
	t.samples.Add(1)
	return acc.Publish()
}

func (t *tracerImpl) Perform(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.needsClear = true
	for range t.cam.SamplesPerPixel() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.compute(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *tracerImpl) Clear() {
	t.runMu.Lock()
	t.needsClear = true
	t.runMu.Unlock()
}

func (t *tracerImpl) Move(direction camera.MoveDirection) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	t.cam.Move(direction)
	t.needsClear = true
}

func (t *tracerImpl) SetScene(s scene.Scene) error {
	if s == nil {
		return fmt.Errorf("nil scene: %w", common.ErrConfiguration)
	}
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if err := t.uploadScene(s); err != nil {
		return err
	}
	t.needsClear = true
	return nil
}

func (t *tracerImpl) Camera() camera.Camera {
	return t.cam
}

func (t *tracerImpl) Dimensions() (uint32, uint32) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cam.Resolution()
}

func (t *tracerImpl) RayState() RayState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rays
}

func (t *tracerImpl) Dispatcher() BounceDispatcher {
	return t.dispatcher
}

func (t *tracerImpl) Frame() *Frame {
	t.mu.RLock()
	acc := t.accumulator
	t.mu.RUnlock()
	return acc.Frame()
}

func (t *tracerImpl) SamplesTraced() uint64 {
	return t.samples.Load()
}

func (t *tracerImpl) Release() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rays.Release()
	t.accumulator.Release()
}
