package common

import (
	"math"
)

// Add returns the component-wise sum a + b.
func Add(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub returns the component-wise difference a - b.
func Sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Scale multiplies every component of v by s.
func Scale(v [3]float32, s float32) [3]float32 {
	return [3]float32{v[0] * s, v[1] * s, v[2] * s}
}

// Mul returns the component-wise (Hadamard) product of a and b.
// Used to tint a path throughput by a surface albedo.
func Mul(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Dot returns the dot product of a and b.
func Dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Cross returns the cross product a × b.
func Cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Length returns the Euclidean length of v.
func Length(v [3]float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Normalize returns v scaled to unit length.
// A zero vector is returned unchanged rather than producing NaNs.
//
// Parameters:
//   - v: the vector to normalize
//
// Returns:
//   - [3]float32: the unit vector, or v itself when its length is zero
func Normalize(v [3]float32) [3]float32 {
	l := Length(v)
	if l == 0 {
		return v
	}
	return Scale(v, 1/l)
}

// NearZero reports whether every component of v is within 1e-8 of zero.
func NearZero(v [3]float32) bool {
	const eps = 1e-8
	return abs32(v[0]) < eps && abs32(v[1]) < eps && abs32(v[2]) < eps
}

// Reflect mirrors v about the surface normal n.
//
// Parameters:
//   - v: the incoming direction
//   - n: the unit surface normal
//
// Returns:
//   - [3]float32: the reflected direction
func Reflect(v, n [3]float32) [3]float32 {
	return Sub(v, Scale(n, 2*Dot(v, n)))
}

// Refract bends the unit direction uv through a surface with unit normal n using Snell's law.
//
// Parameters:
//   - uv: the unit incoming direction
//   - n: the unit surface normal facing against uv
//   - etaRatio: the ratio of refractive indices (incident over transmitted)
//
// Returns:
//   - [3]float32: the refracted direction
func Refract(uv, n [3]float32, etaRatio float32) [3]float32 {
	cosTheta := min(Dot(Scale(uv, -1), n), 1)
	perp := Scale(Add(uv, Scale(n, cosTheta)), etaRatio)
	parallel := Scale(n, -float32(math.Sqrt(math.Abs(float64(1-Dot(perp, perp))))))
	return Add(perp, parallel)
}

// Lerp linearly interpolates between a and b by t.
func Lerp(a, b [3]float32, t float32) [3]float32 {
	return Add(Scale(a, 1-t), Scale(b, t))
}

// ApproxEqual reports whether a and b differ by no more than eps in every component.
func ApproxEqual(a, b [3]float32, eps float32) bool {
	return abs32(a[0]-b[0]) <= eps && abs32(a[1]-b[1]) <= eps && abs32(a[2]-b[2]) <= eps
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
