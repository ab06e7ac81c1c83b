package scene

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
)

// GPUSphereSource is the canonical WGSL definition of the Sphere record and the
// count-prefixed scene buffers. Matches GPUSphere and the EncodedScene byte layout.
//
//go:embed assets/sphere.wgsl
var GPUSphereSource string

// BufferHeaderSize is the size of the count header in front of every encoded scene buffer.
// The record array starts at the next 16-byte boundary.
const BufferHeaderSize = 16

// GPUSphere is the GPU-aligned sphere record.
// Size: 32 bytes.
type GPUSphere struct {
	Center     [3]float32 // offset  0: centre (vec3<f32>)
	Radius     float32    // offset 12: radius
	MaterialID uint32     // offset 16: index into the material table
	_pad       [3]uint32  // offset 20: padding to 32 bytes
}

// Size returns the size of the GPUSphere struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUSphere) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSphere struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSphere) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutVec3(buf[0:], g.Center)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Radius))
	binary.LittleEndian.PutUint32(buf[16:], g.MaterialID)
	return buf
}

// EncodedScene is the flat, device-ready form of a Scene.
// The typed slices feed the CPU backend; the byte buffers are uploaded verbatim by the WGPU backend.
// Each byte buffer is a 16-byte header holding the element count followed by the records.
// Empty arrays are padded with one zeroed record so the device binding is never empty.
type EncodedScene struct {
	Spheres       []GPUSphere
	Materials     []material.GPUMaterial
	SphereBytes   []byte
	MaterialBytes []byte
}

// SphereCount returns the number of encoded spheres.
func (e EncodedScene) SphereCount() int {
	return len(e.Spheres)
}

// MaterialCount returns the number of encoded materials.
func (e EncodedScene) MaterialCount() int {
	return len(e.Materials)
}

// DecodeCount reads the element count from the header of an encoded scene buffer.
//
// Parameters:
//   - buf: a SphereBytes or MaterialBytes buffer
//
// Returns:
//   - uint32: the element count
func DecodeCount(buf []byte) uint32 {
	if len(buf) < BufferHeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(buf)
}

func encodeSpheres(spheres []GPUSphere) []byte {
	var rec GPUSphere
	n := max(len(spheres), 1)
	buf := make([]byte, BufferHeaderSize+n*rec.Size())
	binary.LittleEndian.PutUint32(buf, uint32(len(spheres)))
	for i := range spheres {
		copy(buf[BufferHeaderSize+i*rec.Size():], spheres[i].Marshal())
	}
	return buf
}

func encodeMaterials(materials []material.GPUMaterial) []byte {
	var rec material.GPUMaterial
	n := max(len(materials), 1)
	buf := make([]byte, BufferHeaderSize+n*rec.Size())
	binary.LittleEndian.PutUint32(buf, uint32(len(materials)))
	for i := range materials {
		copy(buf[BufferHeaderSize+i*rec.Size():], materials[i].Marshal())
	}
	return buf
}
