package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
)

// Sphere is a scene sphere referencing a slot in the scene's material table.
type Sphere struct {
	Center     [3]float32
	Radius     float32
	MaterialID uint32
}

// Scene is an ordered collection of spheres and their deduplicated materials.
// Insertion order is preserved for both lists: it decides intersection ties on the device
// and keeps material ids stable.
type Scene interface {
	// AddSphere appends a sphere and resolves its material to a table slot.
	// A material bit-identical to one already in the table reuses that slot.
	//
	// Parameters:
	//   - center: world-space sphere centre
	//   - radius: sphere radius; spheres with radius <= 0 are kept but never intersected
	//   - m: the sphere's material
	//
	// Returns:
	//   - uint32: the material id assigned to the sphere
	//   - error: common.ErrSceneSealed after Seal, or common.ErrEncoding for an invalid material
	AddSphere(center [3]float32, radius float32, m material.Material) (uint32, error)

	// Spheres returns a copy of the spheres in insertion order.
	//
	// Returns:
	//   - []Sphere: the spheres
	Spheres() []Sphere

	// Materials returns a copy of the material table indexed by material id.
	//
	// Returns:
	//   - []material.Material: the deduplicated materials
	Materials() []material.Material

	// Encode serializes the scene into flat GPU buffers.
	//
	// Returns:
	//   - EncodedScene: typed records and their byte buffers
	//   - error: common.ErrEncoding if a sphere or material limit is exceeded
	Encode() (EncodedScene, error)

	// Seal freezes the scene. Subsequent AddSphere calls fail with common.ErrSceneSealed.
	Seal()

	// Sealed reports whether Seal has been called.
	//
	// Returns:
	//   - bool: true once sealed
	Sealed() bool
}

type scene struct {
	mu *sync.Mutex

	spheres     []Sphere
	materials   []material.Material
	materialIDs map[[6]uint32]uint32

	maxSpheres   int
	maxMaterials int
	sealed       bool

	// optionErr holds the first AddSphere failure raised while applying WithSphere options.
	optionErr error
}

var _ Scene = &scene{}

// NewScene creates an empty scene and applies the provided options.
//
// Parameters:
//   - options: functional options such as WithSphere and WithMaxMaterials
//
// Returns:
//   - Scene: the new scene
//   - error: the first error raised by a WithSphere option
func NewScene(options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		mu:           &sync.Mutex{},
		materialIDs:  make(map[[6]uint32]uint32),
		maxSpheres:   DefaultMaxSpheres,
		maxMaterials: DefaultMaxMaterials,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.optionErr != nil {
		return nil, s.optionErr
	}
	return s, nil
}

// DefaultScene builds the two-sphere scene: a blue diffuse sphere resting on a large yellow ground sphere.
//
// Returns:
//   - Scene: the default scene
func DefaultScene() Scene {
	s, _ := NewScene(
		WithSphere([3]float32{0, 0, -1}, 0.5, material.NewLambertian([3]float32{0.1, 0.2, 0.5})),
		WithSphere([3]float32{0, -100.5, -1}, 100, material.NewLambertian([3]float32{0.8, 0.8, 0.0})),
	)
	return s
}

func (s *scene) AddSphere(center [3]float32, radius float32, m material.Material) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSphere(center, radius, m)
}

// addSphere appends the sphere. Caller must hold the mutex.
func (s *scene) addSphere(center [3]float32, radius float32, m material.Material) (uint32, error) {
	if s.sealed {
		return 0, common.ErrSceneSealed
	}
	if err := m.Validate(); err != nil {
		return 0, err
	}

	key := m.Key()
	id, ok := s.materialIDs[key]
	if !ok {
		id = uint32(len(s.materials))
		s.materials = append(s.materials, m)
		s.materialIDs[key] = id
	}
	s.spheres = append(s.spheres, Sphere{Center: center, Radius: radius, MaterialID: id})
	return id, nil
}

func (s *scene) Spheres() []Sphere {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sphere, len(s.spheres))
	copy(out, s.spheres)
	return out
}

func (s *scene) Materials() []material.Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]material.Material, len(s.materials))
	copy(out, s.materials)
	return out
}

func (s *scene) Encode() (EncodedScene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.spheres) > s.maxSpheres {
		return EncodedScene{}, fmt.Errorf("%d spheres exceed the limit of %d: %w", len(s.spheres), s.maxSpheres, common.ErrEncoding)
	}
	if len(s.materials) > s.maxMaterials {
		return EncodedScene{}, fmt.Errorf("%d materials exceed the limit of %d: %w", len(s.materials), s.maxMaterials, common.ErrEncoding)
	}

	enc := EncodedScene{
		Spheres:   make([]GPUSphere, len(s.spheres)),
		Materials: make([]material.GPUMaterial, len(s.materials)),
	}
	for i, sp := range s.spheres {
		if sp.MaterialID >= uint32(len(s.materials)) {
			return EncodedScene{}, fmt.Errorf("sphere %d references material %d of %d: %w", i, sp.MaterialID, len(s.materials), common.ErrEncoding)
		}
		enc.Spheres[i] = GPUSphere{Center: sp.Center, Radius: sp.Radius, MaterialID: sp.MaterialID}
	}
	for i, m := range s.materials {
		enc.Materials[i] = m.GPU()
	}
	enc.SphereBytes = encodeSpheres(enc.Spheres)
	enc.MaterialBytes = encodeMaterials(enc.Materials)
	return enc, nil
}

func (s *scene) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

func (s *scene) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}
