package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

// GPUMaterialSource is the canonical WGSL definition of the Material struct.
// Matches GPUMaterial layout exactly (32 bytes).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterial is the GPU-aligned material record.
// Matches the WGSL Material struct layout exactly (see GPUMaterialSource).
// Size: 32 bytes.
type GPUMaterial struct {
	Albedo     [3]float32 // offset  0: albedo (vec3<f32>)
	Type       uint32     // offset 12: MaterialType tag
	Fuzz       float32    // offset 16: metal roughness
	RefractIdx float32    // offset 20: dielectric refractive index
	_pad       [2]float32 // offset 24: padding to 32 bytes
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutVec3(buf[0:], g.Albedo)
	binary.LittleEndian.PutUint32(buf[12:], g.Type)
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.Fuzz))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(g.RefractIdx))
	return buf
}
