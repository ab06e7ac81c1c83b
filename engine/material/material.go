package material

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

// MaterialType tags a Material variant. The numeric values are part of the GPU record.
type MaterialType uint32

const (
	// MaterialTypeLambertian scatters diffusely, tinted by the albedo.
	MaterialTypeLambertian MaterialType = iota
	// MaterialTypeMetal reflects about the surface normal, perturbed by the fuzz radius.
	MaterialTypeMetal
	// MaterialTypeDielectric reflects or refracts using Schlick's approximation.
	MaterialTypeDielectric
	// MaterialTypeDebugNormal shades the surface with its normal and terminates the path.
	MaterialTypeDebugNormal

	materialTypeCount
)

// String returns the variant name.
func (t MaterialType) String() string {
	switch t {
	case MaterialTypeLambertian:
		return "lambertian"
	case MaterialTypeMetal:
		return "metal"
	case MaterialTypeDielectric:
		return "dielectric"
	case MaterialTypeDebugNormal:
		return "debug_normal"
	default:
		return fmt.Sprintf("material_type(%d)", uint32(t))
	}
}

// Material is a closed tagged union over the supported surface models.
// Only the fields relevant to Type are meaningful; the others are zeroed when encoded.
type Material struct {
	Type       MaterialType
	Albedo     [3]float32
	Fuzz       float32
	RefractIdx float32
}

// NewLambertian creates a diffuse material.
//
// Parameters:
//   - albedo: the diffuse reflectance colour
//
// Returns:
//   - Material: the Lambertian material
func NewLambertian(albedo [3]float32) Material {
	return Material{Type: MaterialTypeLambertian, Albedo: albedo}
}

// NewMetal creates a reflective material. The fuzz radius is clamped to [0, 1].
//
// Parameters:
//   - albedo: the reflectance colour
//   - fuzz: the roughness radius
//
// Returns:
//   - Material: the metal material
func NewMetal(albedo [3]float32, fuzz float32) Material {
	return Material{Type: MaterialTypeMetal, Albedo: albedo, Fuzz: max(0, min(fuzz, 1))}
}

// NewDielectric creates a transparent material such as glass (1.5) or water (1.33).
//
// Parameters:
//   - refractIdx: the refractive index relative to the surrounding medium
//
// Returns:
//   - Material: the dielectric material
func NewDielectric(refractIdx float32) Material {
	return Material{Type: MaterialTypeDielectric, RefractIdx: refractIdx}
}

// NewDebugNormal creates a material that visualizes surface normals.
func NewDebugNormal() Material {
	return Material{Type: MaterialTypeDebugNormal}
}

// Validate checks that the tag names a known variant and the parameters are usable.
//
// Returns:
//   - error: wraps common.ErrEncoding when the material cannot be encoded
func (m Material) Validate() error {
	if m.Type >= materialTypeCount {
		return fmt.Errorf("unknown material tag %d: %w", uint32(m.Type), common.ErrEncoding)
	}
	if m.Type == MaterialTypeDielectric && (m.RefractIdx <= 0 || math.IsNaN(float64(m.RefractIdx))) {
		return fmt.Errorf("dielectric refractive index must be positive, got %v: %w", m.RefractIdx, common.ErrEncoding)
	}
	return nil
}

// GPU returns the fixed GPU record for the material with unused fields zeroed.
// Metal fuzz is clamped to [0, 1] here as well, so literal materials match NewMetal.
//
// Returns:
//   - GPUMaterial: the encoded record
func (m Material) GPU() GPUMaterial {
	g := GPUMaterial{Type: uint32(m.Type)}
	switch m.Type {
	case MaterialTypeLambertian:
		g.Albedo = m.Albedo
	case MaterialTypeMetal:
		g.Albedo = m.Albedo
		g.Fuzz = max(0, min(m.Fuzz, 1))
	case MaterialTypeDielectric:
		g.RefractIdx = m.RefractIdx
	case MaterialTypeDebugNormal:
	}
	return g
}

// Key returns the bit pattern of the encoded record. Two materials with equal keys
// are bit-identical on the device and share a slot in the scene's material table.
//
// Returns:
//   - [6]uint32: tag, albedo, fuzz and refractive index bits
func (m Material) Key() [6]uint32 {
	g := m.GPU()
	return [6]uint32{
		g.Type,
		math.Float32bits(g.Albedo[0]),
		math.Float32bits(g.Albedo[1]),
		math.Float32bits(g.Albedo[2]),
		math.Float32bits(g.Fuzz),
		math.Float32bits(g.RefractIdx),
	}
}
