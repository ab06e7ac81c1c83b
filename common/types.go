// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// The display stages each published frame through this struct before writing it to the blit texture.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero-valued fields fall back to linear filtering with clamp-to-edge addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
}

// Ray is a single light path segment as stored in the device ray buffers.
// Besides the origin, direction and finished flag, each ray carries the pixel it contributes to,
// its accumulated throughput and the number of bounces it has taken.
type Ray struct {
	Origin     [3]float32
	Finished   uint32
	Direction  [3]float32
	Pixel      uint32
	Throughput [3]float32
	Depth      uint32
}

// At returns the point along the ray at parameter t.
func (r Ray) At(t float32) [3]float32 {
	return Add(r.Origin, Scale(r.Direction, t))
}

// IsFinished reports whether the ray has terminated.
func (r Ray) IsFinished() bool {
	return r.Finished != 0
}
