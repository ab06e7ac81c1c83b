package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	lookFrom [3]float32
	lookAt   [3]float32
	up       [3]float32

	width           uint32
	height          uint32
	samplesPerPixel uint32
	moveStep        float32

	// derived state, rebuilt by updateBasis on every mutation
	u, v, w        [3]float32
	focalLength    float32
	viewportWidth  float32
	viewportHeight float32
	topLeftPixel   [3]float32
	deltaU         [3]float32
	deltaV         [3]float32
}

// Camera defines the pinhole camera used to generate primary rays.
// The camera owns the view parameters and keeps its orthonormal basis, viewport
// and per-pixel deltas consistent with them after every mutation.
type Camera interface {
	// LookFrom returns the camera position.
	//
	// Returns:
	//   - [3]float32: the world-space eye position
	LookFrom() [3]float32

	// LookAt returns the point the camera faces.
	//
	// Returns:
	//   - [3]float32: the world-space target point
	LookAt() [3]float32

	// Up returns the camera's up vector as configured (not orthonormalized).
	//
	// Returns:
	//   - [3]float32: the up vector
	Up() [3]float32

	// Basis returns the orthonormal camera basis. The camera looks along -w.
	//
	// Returns:
	//   - u: the right axis
	//   - v: the up axis
	//   - w: the backward axis, normalize(lookfrom - lookat)
	Basis() (u, v, w [3]float32)

	// TopLeftPixel returns the world-space centre of pixel (0, 0).
	//
	// Returns:
	//   - [3]float32: the pixel centre position
	TopLeftPixel() [3]float32

	// PixelDeltas returns the world-space offsets between horizontally and vertically adjacent pixels.
	//
	// Returns:
	//   - du: offset to the next pixel to the right
	//   - dv: offset to the next pixel below
	PixelDeltas() (du, dv [3]float32)

	// Resolution returns the image size the camera is configured for.
	//
	// Returns:
	//   - width, height: the resolution in pixels
	Resolution() (width, height uint32)

	// SamplesPerPixel returns how many stochastic samples a full recompute takes.
	//
	// Returns:
	//   - uint32: the sample count
	SamplesPerPixel() uint32

	// SetSamplesPerPixel changes the sample count used by subsequent recomputes.
	// Zero is rejected with common.ErrConfiguration.
	//
	// Parameters:
	//   - samples: the new sample count
	//
	// Returns:
	//   - error: error if samples is zero
	SetSamplesPerPixel(samples uint32) error

	// MoveStep returns the distance a single Move command translates the camera.
	//
	// Returns:
	//   - float32: the step length in world units
	MoveStep() float32

	// RayForPixel returns the primary ray passing through the continuous pixel coordinate (px, py).
	// Integer coordinates address pixel centres.
	//
	// Parameters:
	//   - px: horizontal pixel coordinate
	//   - py: vertical pixel coordinate, growing downwards
	//
	// Returns:
	//   - common.Ray: a ray from lookfrom through the pixel with unit throughput
	RayForPixel(px, py float32) common.Ray

	// OnResize updates the resolution and rebuilds the viewport and pixel deltas.
	// Calling it with the current resolution leaves the camera untouched.
	//
	// Parameters:
	//   - width, height: the new resolution in pixels
	//
	// Returns:
	//   - bool: true if the resolution changed
	//   - error: common.ErrConfiguration if either dimension is zero
	OnResize(width, height uint32) (bool, error)

	// Move translates lookfrom one step along the current basis and re-derives lookat
	// so the camera keeps facing the same direction.
	//
	// Parameters:
	//   - direction: the move command
	Move(direction MoveDirection)

	// Uniform returns a consistent snapshot of the camera in its GPU layout.
	//
	// Returns:
	//   - GPUCameraUniform: the snapshot
	Uniform() GPUCameraUniform
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera. Without options the camera sits at the origin facing -Z
// with a 1200x675 resolution and 10 samples per pixel.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
//   - error: common.ErrConfiguration if the resulting parameters are degenerate
func NewCamera(options ...CameraBuilderOption) (Camera, error) {
	c := &cameraImpl{
		mu:              &sync.Mutex{},
		lookFrom:        [3]float32{0, 0, 0},
		lookAt:          [3]float32{0, 0, -1},
		up:              [3]float32{0, 1, 0},
		width:           1200,
		height:          675,
		samplesPerPixel: 10,
		moveStep:        0.1,
	}
	for _, option := range options {
		option(c)
	}
	if c.samplesPerPixel == 0 {
		return nil, fmt.Errorf("samples per pixel must be positive: %w", common.ErrConfiguration)
	}
	if c.moveStep <= 0 {
		return nil, fmt.Errorf("move step must be positive, got %v: %w", c.moveStep, common.ErrConfiguration)
	}
	if err := c.updateBasis(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cameraImpl) LookFrom() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookFrom
}

func (c *cameraImpl) LookAt() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookAt
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Basis() (u, v, w [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.u, c.v, c.w
}

func (c *cameraImpl) TopLeftPixel() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topLeftPixel
}

func (c *cameraImpl) PixelDeltas() (du, dv [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deltaU, c.deltaV
}

func (c *cameraImpl) Resolution() (width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) SamplesPerPixel() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samplesPerPixel
}

func (c *cameraImpl) SetSamplesPerPixel(samples uint32) error {
	if samples == 0 {
		return fmt.Errorf("samples per pixel must be positive: %w", common.ErrConfiguration)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samplesPerPixel = samples
	return nil
}

func (c *cameraImpl) MoveStep() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveStep
}

func (c *cameraImpl) RayForPixel(px, py float32) common.Ray {
	c.mu.Lock()
	u := c.uniform()
	c.mu.Unlock()
	return u.RayForPixel(px, py)
}

func (c *cameraImpl) OnResize(width, height uint32) (bool, error) {
	if width == 0 || height == 0 {
		return false, fmt.Errorf("invalid resolution %dx%d: %w", width, height, common.ErrConfiguration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if width == c.width && height == c.height {
		return false, nil
	}

	prevWidth, prevHeight := c.width, c.height
	c.width, c.height = width, height
	if err := c.updateBasis(); err != nil {
		c.width, c.height = prevWidth, prevHeight
		_ = c.updateBasis()
		return false, err
	}
	return true, nil
}

func (c *cameraImpl) Move(direction MoveDirection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var axis [3]float32
	switch direction {
	case MoveForward:
		axis = common.Scale(c.w, -1)
	case MoveBackward:
		axis = c.w
	case MoveLeft:
		axis = common.Scale(c.u, -1)
	case MoveRight:
		axis = c.u
	case MoveUp:
		axis = c.v
	case MoveDown:
		axis = common.Scale(c.v, -1)
	default:
		return
	}

	c.lookFrom = common.Add(c.lookFrom, common.Scale(axis, c.moveStep))
	c.lookAt = common.Sub(c.lookFrom, c.w)
	// w is unchanged by a translation so the basis stays valid.
	_ = c.updateBasis()
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniform()
}

// uniform builds the GPU snapshot. Caller must hold the mutex.
func (c *cameraImpl) uniform() GPUCameraUniform {
	return GPUCameraUniform{
		LookFrom:     c.lookFrom,
		Width:        c.width,
		TopLeftPixel: c.topLeftPixel,
		Height:       c.height,
		DeltaU:       c.deltaU,
		DeltaV:       c.deltaV,
	}
}

// updateBasis recomputes the basis, viewport and pixel deltas from lookfrom, lookat, up and the resolution.
// On error the derived state is left untouched. Caller must hold the mutex.
func (c *cameraImpl) updateBasis() error {
	if c.width == 0 || c.height == 0 {
		return fmt.Errorf("invalid resolution %dx%d: %w", c.width, c.height, common.ErrConfiguration)
	}

	back := common.Sub(c.lookFrom, c.lookAt)
	focal := common.Length(back)
	if focal == 0 {
		return fmt.Errorf("lookfrom and lookat coincide at %v: %w", c.lookFrom, common.ErrConfiguration)
	}
	w := common.Scale(back, 1/focal)

	right := common.Cross(c.up, w)
	if common.NearZero(right) {
		return fmt.Errorf("up vector %v is parallel to the view axis: %w", c.up, common.ErrConfiguration)
	}
	u := common.Normalize(right)
	v := common.Cross(w, u)

	viewportHeight := 2 * focal
	viewportWidth := viewportHeight * float32(c.width) / float32(c.height)

	viewportU := common.Scale(u, viewportWidth)
	viewportV := common.Scale(v, -viewportHeight)
	deltaU := common.Scale(viewportU, 1/float32(c.width))
	deltaV := common.Scale(viewportV, 1/float32(c.height))

	topLeft := common.Sub(c.lookFrom, common.Scale(w, focal))
	topLeft = common.Sub(topLeft, common.Scale(viewportU, 0.5))
	topLeft = common.Sub(topLeft, common.Scale(viewportV, 0.5))

	c.u, c.v, c.w = u, v, w
	c.focalLength = focal
	c.viewportWidth = viewportWidth
	c.viewportHeight = viewportHeight
	c.deltaU = deltaU
	c.deltaV = deltaV
	c.topLeftPixel = common.Add(topLeft, common.Scale(common.Add(deltaU, deltaV), 0.5))
	return nil
}
