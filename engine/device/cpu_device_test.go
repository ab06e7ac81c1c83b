package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

func newTestDevice(t *testing.T, options ...DeviceBuilderOption) Device {
	t.Helper()
	d, err := NewDevice(append([]DeviceBuilderOption{WithBackend(BackendTypeCPU), WithWorkers(4)}, options...)...)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

func newTestCamera(t *testing.T, w, h uint32) camera.Camera {
	t.Helper()
	c, err := camera.NewCamera(camera.WithResolution(w, h))
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	return c
}

func TestParseBackendType(t *testing.T) {
	tests := []struct {
		in      string
		want    BackendType
		wantErr bool
	}{
		{"cpu", BackendTypeCPU, false},
		{" WGPU ", BackendTypeWGPU, false},
		{"webgpu", BackendTypeWGPU, false},
		{"vulkan", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBackendType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, common.ErrConfiguration) {
				t.Errorf("ParseBackendType(%q) err = %v, want ErrConfiguration", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseBackendType(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestCPUDevice_GenerateWritesEveryPixel(t *testing.T) {
	// A chunk size that does not divide the ray count exercises the tail chunk.
	d := newTestDevice(t, WithChunkSize(7))
	cam := newTestCamera(t, 10, 5)
	rays, err := d.NewRayBuffer("rays", 50)
	if err != nil {
		t.Fatalf("NewRayBuffer: %v", err)
	}

	if err := d.Generate(context.Background(), cam.Uniform(), rays, DispatchParams{Seed: [3]uint32{1, 2, 3}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := rays.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, r := range got {
		if r.Pixel != uint32(i) {
			t.Fatalf("ray %d has pixel %d", i, r.Pixel)
		}
		if r.Throughput != [3]float32{1, 1, 1} {
			t.Fatalf("ray %d was not generated: %+v", i, r)
		}
	}
}

func TestCPUDevice_EmptySceneIsUniformBackground(t *testing.T) {
	d := newTestDevice(t)
	cam := newTestCamera(t, 8, 6)
	src, _ := d.NewRayBuffer("a", 48)
	dst, _ := d.NewRayBuffer("b", 48)
	img, err := d.NewImageBuffer("img", 8, 6)
	if err != nil {
		t.Fatalf("NewImageBuffer: %v", err)
	}
	empty, _ := scene.NewScene()
	enc, err := empty.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := d.UploadScene(enc); err != nil {
		t.Fatalf("UploadScene: %v", err)
	}

	bg := [3]float32{0.3, 0.6, 0.9}
	params := DispatchParams{Seed: [3]uint32{4, 5, 6}, Jitter: true, Background: UniformBackground(bg)}
	ctx := context.Background()
	if err := d.Generate(ctx, cam.Uniform(), src, params); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := d.Bounce(ctx, src, dst, img, params); err != nil {
		t.Fatalf("Bounce: %v", err)
	}

	texels := make([]float32, 8*6*4)
	if err := img.Read(texels); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < len(texels); i += 4 {
		if got := [3]float32{texels[i], texels[i+1], texels[i+2]}; got != bg {
			t.Fatalf("texel %d = %v, want %v", i/4, got, bg)
		}
	}

	out, _ := dst.Read()
	for i, r := range out {
		if !r.IsFinished() {
			t.Fatalf("ray %d not finished after missing an empty scene", i)
		}
	}

	if err := d.ClearImage(img); err != nil {
		t.Fatalf("ClearImage: %v", err)
	}
	_ = img.Read(texels)
	for i, v := range texels {
		if v != 0 {
			t.Fatalf("texel float %d = %v after clear", i, v)
		}
	}
}

func TestCPUDevice_BounceCopiesFinishedRays(t *testing.T) {
	d := newTestDevice(t)
	cam := newTestCamera(t, 4, 4)
	s := scene.DefaultScene()
	enc, _ := s.Encode()
	_ = d.UploadScene(enc)

	a, _ := d.NewRayBuffer("a", 16)
	b, _ := d.NewRayBuffer("b", 16)
	c, _ := d.NewRayBuffer("c", 16)
	img, _ := d.NewImageBuffer("img", 4, 4)
	ctx := context.Background()
	params := DispatchParams{Seed: [3]uint32{1, 1, 1}, Background: UniformBackground([3]float32{1, 1, 1})}

	_ = d.Generate(ctx, cam.Uniform(), a, params)
	if err := d.Bounce(ctx, a, b, img, params); err != nil {
		t.Fatalf("Bounce: %v", err)
	}
	params.Seed = [3]uint32{2, 2, 2}
	params.Bounce = 1
	if err := d.Bounce(ctx, b, c, img, params); err != nil {
		t.Fatalf("Bounce: %v", err)
	}

	first, _ := b.Read()
	second, _ := c.Read()
	for i := range first {
		if first[i].IsFinished() && first[i] != second[i] {
			t.Errorf("finished ray %d changed on the next bounce: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestCPUDevice_ValidationErrors(t *testing.T) {
	d := newTestDevice(t, WithMaxBufferSize(1024))
	cam := newTestCamera(t, 4, 4)
	ctx := context.Background()

	if _, err := d.NewRayBuffer("huge", 1000); !errors.Is(err, common.ErrResourceExhausted) {
		t.Errorf("oversized ray buffer err = %v, want ErrResourceExhausted", err)
	}
	if _, err := d.NewImageBuffer("huge", 100, 100); !errors.Is(err, common.ErrResourceExhausted) {
		t.Errorf("oversized image err = %v, want ErrResourceExhausted", err)
	}
	if _, err := d.NewRayBuffer("empty", 0); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("empty ray buffer err = %v, want ErrConfiguration", err)
	}
	if _, err := d.NewImageBuffer("empty", 0, 4); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("empty image err = %v, want ErrConfiguration", err)
	}

	a, _ := d.NewRayBuffer("a", 16)
	b, _ := d.NewRayBuffer("b", 16)
	small, _ := d.NewRayBuffer("small", 8)
	img, _ := d.NewImageBuffer("img", 4, 4)

	if err := d.Generate(ctx, cam.Uniform(), small, DispatchParams{}); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("mismatched generate err = %v, want ErrConfiguration", err)
	}
	if err := d.Bounce(ctx, a, a, img, DispatchParams{}); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("aliased bounce err = %v, want ErrConfiguration", err)
	}
	if err := d.Bounce(ctx, a, small, img, DispatchParams{}); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("size mismatch err = %v, want ErrConfiguration", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := d.Bounce(cancelled, a, b, img, DispatchParams{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled bounce err = %v, want context.Canceled", err)
	}

	b.Release()
	if err := d.Bounce(ctx, a, b, img, DispatchParams{}); !errors.Is(err, common.ErrDevice) {
		t.Errorf("released buffer err = %v, want ErrDevice", err)
	}
}

func TestCPUDevice_ReleasedDeviceRejectsDispatch(t *testing.T) {
	d, err := NewDevice()
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	cam := newTestCamera(t, 2, 2)
	rays, _ := d.NewRayBuffer("rays", 4)
	d.Release()
	d.Release()

	if err := d.Generate(context.Background(), cam.Uniform(), rays, DispatchParams{}); !errors.Is(err, common.ErrDevice) {
		t.Errorf("err = %v, want ErrDevice", err)
	}
}

func TestShaderSource_ContainsKernels(t *testing.T) {
	src := ShaderSource()
	for _, want := range []string{"struct CameraUniform", "struct Material", "struct SphereBuffer", "fn generate(", "fn bounce(", "@workgroup_size(64)"} {
		if !strings.Contains(src, want) {
			t.Errorf("shader source missing %q", want)
		}
	}
}

func TestWorkgroupGrid(t *testing.T) {
	tests := []struct {
		rays  uint32
		wantX uint32
		wantY uint32
	}{
		{1, 1, 1},
		{64, 1, 1},
		{65, 2, 1},
		{64 * 65535, 65535, 1},
		{64*65535 + 1, 65535, 2},
	}
	for _, tt := range tests {
		x, y := workgroupGrid(tt.rays)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("workgroupGrid(%d) = (%d, %d), want (%d, %d)", tt.rays, x, y, tt.wantX, tt.wantY)
		}
		if uint64(x)*uint64(y)*WorkgroupSize < uint64(tt.rays) {
			t.Errorf("workgroupGrid(%d) covers too few rays", tt.rays)
		}
	}
}

func TestMaterialTable_DebugNormalShadesImage(t *testing.T) {
	d := newTestDevice(t)
	cam := newTestCamera(t, 3, 3)
	s, err := scene.NewScene(scene.WithSphere([3]float32{0, 0, -1}, 100, material.NewDebugNormal()))
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	enc, _ := s.Encode()
	_ = d.UploadScene(enc)

	a, _ := d.NewRayBuffer("a", 9)
	b, _ := d.NewRayBuffer("b", 9)
	img, _ := d.NewImageBuffer("img", 3, 3)
	ctx := context.Background()
	_ = d.Generate(ctx, cam.Uniform(), a, DispatchParams{})
	if err := d.Bounce(ctx, a, b, img, DispatchParams{}); err != nil {
		t.Fatalf("Bounce: %v", err)
	}

	texels := make([]float32, 36)
	_ = img.Read(texels)
	for i := 0; i < len(texels); i += 4 {
		for c := range 3 {
			if v := texels[i+c]; v < 0 || v > 1 {
				t.Fatalf("texel %d channel %d = %v, want [0,1]", i/4, c, v)
			}
		}
		if texels[i]+texels[i+1]+texels[i+2] == 0 {
			t.Fatalf("texel %d is black, want a normal shade", i/4)
		}
	}
}
