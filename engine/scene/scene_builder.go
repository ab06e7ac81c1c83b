package scene

import (
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
)

const (
	// DefaultMaxSpheres is the sphere limit used when WithMaxSpheres is not given.
	DefaultMaxSpheres = 4096
	// DefaultMaxMaterials is the material table limit used when WithMaxMaterials is not given.
	DefaultMaxMaterials = 1024
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithSphere adds a sphere during construction. Options are applied in order, so
// spheres keep the order their options were passed in.
//
// Parameters:
//   - center: world-space sphere centre
//   - radius: sphere radius
//   - m: the sphere's material
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSphere(center [3]float32, radius float32, m material.Material) SceneBuilderOption {
	return func(s *scene) {
		if s.optionErr != nil {
			return
		}
		if _, err := s.addSphere(center, radius, m); err != nil {
			s.optionErr = err
		}
	}
}

// WithMaxSpheres sets the number of spheres Encode accepts before failing.
//
// Parameters:
//   - n: the sphere limit (values < 1 are ignored)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaxSpheres(n int) SceneBuilderOption {
	return func(s *scene) {
		if n >= 1 {
			s.maxSpheres = n
		}
	}
}

// WithMaxMaterials sets the size of the material table Encode accepts before failing.
//
// Parameters:
//   - n: the material limit (values < 1 are ignored)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaxMaterials(n int) SceneBuilderOption {
	return func(s *scene) {
		if n >= 1 {
			s.maxMaterials = n
		}
	}
}
