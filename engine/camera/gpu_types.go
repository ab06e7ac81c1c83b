package camera

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (64 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned snapshot of the camera used by ray generation.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
// Size: 64 bytes.
type GPUCameraUniform struct {
	LookFrom     [3]float32 // offset  0: eye position (vec3<f32>)
	Width        uint32     // offset 12: image width in pixels
	TopLeftPixel [3]float32 // offset 16: centre of pixel (0, 0)
	Height       uint32     // offset 28: image height in pixels
	DeltaU       [3]float32 // offset 32: horizontal pixel delta
	_pad0        float32    // offset 44
	DeltaV       [3]float32 // offset 48: vertical pixel delta
	_pad1        float32    // offset 60
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutVec3(buf[0:], g.LookFrom)
	binary.LittleEndian.PutUint32(buf[12:], g.Width)
	common.PutVec3(buf[16:], g.TopLeftPixel)
	binary.LittleEndian.PutUint32(buf[28:], g.Height)
	common.PutVec3(buf[32:], g.DeltaU)
	common.PutVec3(buf[48:], g.DeltaV)
	return buf
}

// RayForPixel evaluates the primary ray through the continuous pixel coordinate (px, py).
// Both the camera and the CPU kernels call this so there is a single ray generation formula.
//
// Parameters:
//   - px, py: pixel coordinates, integers addressing pixel centres
//
// Returns:
//   - common.Ray: the primary ray with unit throughput
func (g *GPUCameraUniform) RayForPixel(px, py float32) common.Ray {
	sample := common.Add(g.TopLeftPixel, common.Add(common.Scale(g.DeltaU, px), common.Scale(g.DeltaV, py)))
	return common.Ray{
		Origin:     g.LookFrom,
		Direction:  common.Sub(sample, g.LookFrom),
		Throughput: [3]float32{1, 1, 1},
	}
}
