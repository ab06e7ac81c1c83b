package scene

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
)

func TestAddSphere_DeduplicatesBitIdenticalMaterials(t *testing.T) {
	s, err := NewScene()
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}

	red := material.NewLambertian([3]float32{0.7, 0.1, 0.1})
	steel := material.NewMetal([3]float32{0.8, 0.8, 0.8}, 0.2)

	ids := make([]uint32, 0, 4)
	for _, m := range []material.Material{red, steel, material.NewLambertian([3]float32{0.7, 0.1, 0.1}), steel} {
		id, err := s.AddSphere([3]float32{0, 0, -1}, 0.5, m)
		if err != nil {
			t.Fatalf("AddSphere: %v", err)
		}
		ids = append(ids, id)
	}

	want := []uint32{0, 1, 0, 1}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("sphere %d material id = %d, want %d", i, ids[i], want[i])
		}
	}
	if got := len(s.Materials()); got != 2 {
		t.Errorf("material count = %d, want 2", got)
	}
}

func TestAddSphere_UnusedFieldsDoNotSplitSlots(t *testing.T) {
	s, _ := NewScene()
	a := material.Material{Type: material.MaterialTypeLambertian, Albedo: [3]float32{0.5, 0.5, 0.5}}
	b := material.Material{Type: material.MaterialTypeLambertian, Albedo: [3]float32{0.5, 0.5, 0.5}, Fuzz: 0.9}

	idA, _ := s.AddSphere([3]float32{}, 1, a)
	idB, _ := s.AddSphere([3]float32{}, 1, b)
	if idA != idB {
		t.Errorf("ids = %d and %d, want a shared slot since fuzz is unused by lambertian", idA, idB)
	}
}

func TestAddSphere_PreservesInsertionOrder(t *testing.T) {
	s, _ := NewScene(
		WithSphere([3]float32{1, 0, 0}, 1, material.NewDebugNormal()),
		WithSphere([3]float32{2, 0, 0}, 2, material.NewDielectric(1.5)),
		WithSphere([3]float32{3, 0, 0}, 3, material.NewDebugNormal()),
	)
	spheres := s.Spheres()
	if len(spheres) != 3 {
		t.Fatalf("len = %d, want 3", len(spheres))
	}
	for i, sp := range spheres {
		if sp.Center[0] != float32(i+1) || sp.Radius != float32(i+1) {
			t.Errorf("sphere %d = %+v, out of insertion order", i, sp)
		}
	}
	if spheres[2].MaterialID != 0 || spheres[1].MaterialID != 1 {
		t.Errorf("material ids = %d,%d,%d; want 0,1,0", spheres[0].MaterialID, spheres[1].MaterialID, spheres[2].MaterialID)
	}
}

func TestAddSphere_Errors(t *testing.T) {
	s, _ := NewScene()
	if _, err := s.AddSphere([3]float32{}, 1, material.Material{Type: 9}); !errors.Is(err, common.ErrEncoding) {
		t.Errorf("invalid tag error = %v, want ErrEncoding", err)
	}

	s.Seal()
	if !s.Sealed() {
		t.Fatal("Sealed() = false after Seal")
	}
	if _, err := s.AddSphere([3]float32{}, 1, material.NewDebugNormal()); !errors.Is(err, common.ErrSceneSealed) {
		t.Errorf("sealed error = %v, want ErrSceneSealed", err)
	}

	if _, err := NewScene(WithSphere([3]float32{}, 1, material.NewDielectric(-1))); !errors.Is(err, common.ErrEncoding) {
		t.Errorf("option error = %v, want ErrEncoding", err)
	}
}

func TestEncode_Layout(t *testing.T) {
	s := DefaultScene()
	enc, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if enc.SphereCount() != 2 || enc.MaterialCount() != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", enc.SphereCount(), enc.MaterialCount())
	}
	if len(enc.SphereBytes) != BufferHeaderSize+2*32 {
		t.Errorf("sphere bytes = %d, want %d", len(enc.SphereBytes), BufferHeaderSize+64)
	}
	if got := DecodeCount(enc.SphereBytes); got != 2 {
		t.Errorf("sphere header count = %d, want 2", got)
	}

	// Second sphere: ground, radius 100 at offset header + 32 + 12.
	radius := math.Float32frombits(binary.LittleEndian.Uint32(enc.SphereBytes[BufferHeaderSize+32+12:]))
	if radius != 100 {
		t.Errorf("ground radius = %v, want 100", radius)
	}
	matID := binary.LittleEndian.Uint32(enc.SphereBytes[BufferHeaderSize+32+16:])
	if matID != 1 {
		t.Errorf("ground material id = %d, want 1", matID)
	}
	for i, sp := range enc.Spheres {
		if sp.MaterialID >= uint32(enc.MaterialCount()) {
			t.Errorf("sphere %d material id %d out of range", i, sp.MaterialID)
		}
	}
}

func TestEncode_EmptyScenePadsBuffers(t *testing.T) {
	s, _ := NewScene()
	enc, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if DecodeCount(enc.SphereBytes) != 0 || DecodeCount(enc.MaterialBytes) != 0 {
		t.Error("empty scene header counts must be zero")
	}
	if len(enc.SphereBytes) != BufferHeaderSize+32 || len(enc.MaterialBytes) != BufferHeaderSize+32 {
		t.Errorf("padded sizes = %d/%d, want %d", len(enc.SphereBytes), len(enc.MaterialBytes), BufferHeaderSize+32)
	}
}

func TestEncode_MaterialOverflow(t *testing.T) {
	s, _ := NewScene(WithMaxMaterials(2))
	for i := range 3 {
		if _, err := s.AddSphere([3]float32{}, 1, material.NewLambertian([3]float32{float32(i), 0, 0})); err != nil {
			t.Fatalf("AddSphere: %v", err)
		}
	}
	if _, err := s.Encode(); !errors.Is(err, common.ErrEncoding) {
		t.Fatalf("Encode error = %v, want ErrEncoding", err)
	}
}

func TestEncode_SphereOverflow(t *testing.T) {
	s, _ := NewScene(WithMaxSpheres(1))
	s.AddSphere([3]float32{}, 1, material.NewDebugNormal())
	s.AddSphere([3]float32{}, 1, material.NewDebugNormal())
	if _, err := s.Encode(); !errors.Is(err, common.ErrEncoding) {
		t.Fatalf("Encode error = %v, want ErrEncoding", err)
	}
}
