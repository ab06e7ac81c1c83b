package device

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

// raytraceSource holds the ray record, dispatch parameters and both compute kernels.
// The shared struct definitions from the camera, material and scene packages are prepended at pipeline creation.
//
//go:embed assets/raytrace.wgsl
var raytraceSource string

// WorkgroupSize is the 1D workgroup size of both compute kernels.
const WorkgroupSize = 64

// Background is the radiance seen by rays that leave the scene, blended
// vertically from Horizon (looking down) to Zenith (looking up).
// Equal colours give a uniform background.
type Background struct {
	Horizon [3]float32
	Zenith  [3]float32
}

// UniformBackground returns a direction-independent background.
func UniformBackground(c [3]float32) Background {
	return Background{Horizon: c, Zenith: c}
}

// Sample returns the background radiance for a ray direction.
//
// Parameters:
//   - direction: the ray direction (need not be normalized)
//
// Returns:
//   - [3]float32: the radiance
func (b Background) Sample(direction [3]float32) [3]float32 {
	if b.Horizon == b.Zenith {
		return b.Horizon
	}
	a := 0.5 * (common.Normalize(direction)[1] + 1)
	return common.Lerp(b.Horizon, b.Zenith, a)
}

// GPUDispatchParams is the GPU-aligned uniform written before every dispatch.
// Size: 48 bytes.
type GPUDispatchParams struct {
	Seed     [3]uint32  // offset  0: per-dispatch seed (vec3<u32>)
	Bounce   uint32     // offset 12: bounce index
	Horizon  [3]float32 // offset 16: background at the horizon
	RayCount uint32     // offset 28: number of rays in the dispatch
	Zenith   [3]float32 // offset 32: background straight up
	Jitter   uint32     // offset 44: non-zero enables sub-pixel jitter
}

func newGPUDispatchParams(p DispatchParams, rayCount int) GPUDispatchParams {
	g := GPUDispatchParams{
		Seed:     p.Seed,
		Bounce:   p.Bounce,
		Horizon:  p.Background.Horizon,
		RayCount: uint32(rayCount),
		Zenith:   p.Background.Zenith,
	}
	if p.Jitter {
		g.Jitter = 1
	}
	return g
}

// Size returns the size of the GPUDispatchParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUDispatchParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDispatchParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUDispatchParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], g.Seed[i])
	}
	binary.LittleEndian.PutUint32(buf[12:], g.Bounce)
	common.PutVec3(buf[16:], g.Horizon)
	binary.LittleEndian.PutUint32(buf[28:], g.RayCount)
	common.PutVec3(buf[32:], g.Zenith)
	binary.LittleEndian.PutUint32(buf[44:], g.Jitter)
	return buf
}
