package common

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// RaySize is the size of one GPU ray record in bytes (three 16-byte rows).
const RaySize = 48

// Size returns the size of the Ray struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (r *Ray) Size() int {
	return int(unsafe.Sizeof(*r))
}

// Marshal serializes the Ray into the WGSL Ray layout:
// origin vec3<f32> + finished u32, direction vec3<f32> + pixel u32, throughput vec3<f32> + depth u32.
//
// Returns:
//   - []byte: the serialized 48-byte record
func (r *Ray) Marshal() []byte {
	buf := make([]byte, RaySize)
	r.MarshalTo(buf)
	return buf
}

// MarshalTo writes the Ray record into buf, which must hold at least RaySize bytes.
func (r *Ray) MarshalTo(buf []byte) {
	PutVec3(buf[0:], r.Origin)
	binary.LittleEndian.PutUint32(buf[12:], r.Finished)
	PutVec3(buf[16:], r.Direction)
	binary.LittleEndian.PutUint32(buf[28:], r.Pixel)
	PutVec3(buf[32:], r.Throughput)
	binary.LittleEndian.PutUint32(buf[44:], r.Depth)
}

// UnmarshalRay decodes a Ray record previously written by Marshal or by the device.
//
// Parameters:
//   - buf: at least RaySize bytes
//
// Returns:
//   - Ray: the decoded ray
func UnmarshalRay(buf []byte) Ray {
	return Ray{
		Origin:     GetVec3(buf[0:]),
		Finished:   binary.LittleEndian.Uint32(buf[12:]),
		Direction:  GetVec3(buf[16:]),
		Pixel:      binary.LittleEndian.Uint32(buf[28:]),
		Throughput: GetVec3(buf[32:]),
		Depth:      binary.LittleEndian.Uint32(buf[44:]),
	}
}

// PutVec3 writes v as three little-endian f32 values at the start of buf.
func PutVec3(buf []byte, v [3]float32) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

// GetVec3 reads three little-endian f32 values from the start of buf.
func GetVec3(buf []byte) [3]float32 {
	var v [3]float32
	for i := range 3 {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// GetFloat32 reads one little-endian f32 value from the start of buf.
func GetFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
