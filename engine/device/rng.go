package device

import "math"

// pcgHash is the PCG-RXS-M-XS 32-bit hash. The WGSL kernels use the same function so
// both backends draw identical random streams for a given seed and ray index.
func pcgHash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// Rng is a per-ray random stream derived from a dispatch seed and the ray index.
type Rng struct {
	state uint32
}

// NewRng seeds a stream for one ray of one dispatch.
//
// Parameters:
//   - seed: the dispatch seed
//   - index: the ray index
//
// Returns:
//   - Rng: the seeded stream
func NewRng(seed [3]uint32, index uint32) Rng {
	return Rng{state: pcgHash(index ^ pcgHash(seed[0]^pcgHash(seed[1]^pcgHash(seed[2]))))}
}

// Uint32 advances the stream and returns the next 32 random bits.
func (r *Rng) Uint32() uint32 {
	r.state = pcgHash(r.state)
	return r.state
}

// Float32 returns a uniform value in [0, 1) with 24 bits of precision.
func (r *Rng) Float32() float32 {
	return float32(r.Uint32()>>8) * (1.0 / 16777216.0)
}

// UnitVector returns a uniformly distributed point on the unit sphere.
func (r *Rng) UnitVector() [3]float32 {
	z := r.Float32()*2 - 1
	phi := float64(r.Float32() * 2 * math.Pi)
	radius := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	return [3]float32{radius * float32(math.Cos(phi)), radius * float32(math.Sin(phi)), z}
}
