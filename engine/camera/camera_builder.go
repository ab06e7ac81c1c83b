package camera

type CameraBuilderOption func(*cameraImpl)

// WithLookFrom sets the camera position.
//
// Parameters:
//   - x, y, z: world-space eye position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera position
func WithLookFrom(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lookFrom = [3]float32{x, y, z}
	}
}

// WithLookAt sets the point the camera faces. Its distance from lookfrom is the focal length.
//
// Parameters:
//   - x, y, z: world-space target point
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera target
func WithLookAt(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lookAt = [3]float32{x, y, z}
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = [3]float32{x, y, z}
	}
}

// WithResolution sets the image resolution the camera generates rays for.
//
// Parameters:
//   - width, height: resolution in pixels (both must be positive)
//
// Returns:
//   - CameraBuilderOption: a function that sets the resolution
func WithResolution(width, height uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.width = width
		c.height = height
	}
}

// WithSamplesPerPixel sets how many samples a full recompute accumulates.
//
// Parameters:
//   - samples: the sample count (must be positive)
//
// Returns:
//   - CameraBuilderOption: a function that sets the sample count
func WithSamplesPerPixel(samples uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.samplesPerPixel = samples
	}
}

// WithMoveStep sets the translation distance of a single Move command.
//
// Parameters:
//   - step: distance in world units (must be positive)
//
// Returns:
//   - CameraBuilderOption: a function that sets the move step
func WithMoveStep(step float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.moveStep = step
	}
}
