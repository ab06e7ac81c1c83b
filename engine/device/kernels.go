package device

import (
	"math"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

// These functions are the host versions of the kernels in assets/raytrace.wgsl.
// The CPU backend runs them per ray; keep the two in step.

const (
	tMin = 0.001
	tMax = math.MaxFloat32
)

// GenerateRay builds the primary ray for ray index i.
//
// Parameters:
//   - cam: the camera snapshot
//   - params: the dispatch parameters
//   - index: the ray (and pixel) index, row-major
//
// Returns:
//   - common.Ray: the primary ray
func GenerateRay(cam *camera.GPUCameraUniform, params *GPUDispatchParams, index uint32) common.Ray {
	rng := NewRng(params.Seed, index)
	px := float32(index % cam.Width)
	py := float32(index / cam.Width)
	if params.Jitter != 0 {
		px += rng.Float32() - 0.5
		py += rng.Float32() - 0.5
	}
	ray := cam.RayForPixel(px, py)
	ray.Pixel = index
	return ray
}

// BounceRay advances one ray by a single segment.
// A finished ray is returned unchanged with no radiance.
//
// Parameters:
//   - in: the source ray
//   - spheres: the scene spheres in insertion order
//   - materials: the material table
//   - params: the dispatch parameters
//   - index: the ray index within the dispatch
//
// Returns:
//   - common.Ray: the ray to store in the destination buffer
//   - [3]float32: radiance to add to the ray's pixel
func BounceRay(in common.Ray, spheres []scene.GPUSphere, materials []material.GPUMaterial, params *GPUDispatchParams, index uint32) (common.Ray, [3]float32) {
	if in.IsFinished() {
		return in, [3]float32{}
	}

	rng := NewRng(params.Seed, index)
	out := in

	closest := float32(tMax)
	hitIndex := -1
	for i := range spheres {
		if t, ok := hitSphere(&in, &spheres[i], closest); ok {
			closest = t
			hitIndex = i
		}
	}

	if hitIndex < 0 {
		bg := Background{Horizon: params.Horizon, Zenith: params.Zenith}
		out.Finished = 1
		return out, common.Mul(in.Throughput, bg.Sample(in.Direction))
	}

	s := &spheres[hitIndex]
	point := in.At(closest)
	outward := common.Scale(common.Sub(point, s.Center), 1/s.Radius)
	frontFace := common.Dot(in.Direction, outward) < 0
	normal := outward
	if !frontFace {
		normal = common.Scale(outward, -1)
	}

	out.Origin = point
	out.Depth++
	if s.MaterialID >= uint32(len(materials)) {
		out.Finished = 1
		return out, [3]float32{}
	}

	m := &materials[s.MaterialID]
	switch material.MaterialType(m.Type) {
	case material.MaterialTypeLambertian:
		dir := common.Add(normal, rng.UnitVector())
		if common.NearZero(dir) {
			dir = normal
		}
		out.Direction = dir
		out.Throughput = common.Mul(in.Throughput, m.Albedo)

	case material.MaterialTypeMetal:
		reflected := common.Normalize(common.Reflect(common.Normalize(in.Direction), normal))
		scattered := common.Add(reflected, common.Scale(rng.UnitVector(), m.Fuzz))
		if common.Dot(scattered, normal) <= 0 {
			out.Finished = 1
			return out, [3]float32{}
		}
		out.Direction = scattered
		out.Throughput = common.Mul(in.Throughput, m.Albedo)

	case material.MaterialTypeDielectric:
		ri := m.RefractIdx
		if frontFace {
			ri = 1 / m.RefractIdx
		}
		unit := common.Normalize(in.Direction)
		cosTheta := min(common.Dot(common.Scale(unit, -1), normal), 1)
		sinTheta := float32(math.Sqrt(float64(1 - cosTheta*cosTheta)))
		if ri*sinTheta > 1 || reflectance(cosTheta, ri) > rng.Float32() {
			out.Direction = common.Reflect(unit, normal)
		} else {
			out.Direction = common.Refract(unit, normal, ri)
		}

	case material.MaterialTypeDebugNormal:
		out.Finished = 1
		shade := common.Scale(common.Add(outward, [3]float32{1, 1, 1}), 0.5)
		return out, common.Mul(in.Throughput, shade)

	default:
		out.Finished = 1
	}
	return out, [3]float32{}
}

// hitSphere returns the nearest intersection parameter in (tMin, limit).
// Spheres with a non-positive radius are never hit.
func hitSphere(r *common.Ray, s *scene.GPUSphere, limit float32) (float32, bool) {
	if s.Radius <= 0 {
		return 0, false
	}
	oc := common.Sub(s.Center, r.Origin)
	a := common.Dot(r.Direction, r.Direction)
	if a == 0 {
		return 0, false
	}
	h := common.Dot(r.Direction, oc)
	c := common.Dot(oc, oc) - s.Radius*s.Radius
	disc := h*h - a*c
	if disc < 0 {
		return 0, false
	}
	sqrtd := float32(math.Sqrt(float64(disc)))

	root := (h - sqrtd) / a
	if root <= tMin || root >= limit {
		root = (h + sqrtd) / a
		if root <= tMin || root >= limit {
			return 0, false
		}
	}
	return root, true
}

// reflectance is Schlick's approximation of the Fresnel reflectance.
func reflectance(cosine, ri float32) float32 {
	r0 := (1 - ri) / (1 + ri)
	r0 *= r0
	return r0 + (1-r0)*float32(math.Pow(float64(1-cosine), 5))
}
