package tracer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

func newTestDevice(t *testing.T, options ...device.DeviceBuilderOption) device.Device {
	t.Helper()
	d, err := device.NewDevice(append([]device.DeviceBuilderOption{device.WithBackend(device.BackendTypeCPU)}, options...)...)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

func newTestCamera(t *testing.T, options ...camera.CameraBuilderOption) camera.Camera {
	t.Helper()
	c, err := camera.NewCamera(options...)
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	return c
}

func newTestTracer(t *testing.T, dev device.Device, cam camera.Camera, s scene.Scene, options ...TracerBuilderOption) Tracer {
	t.Helper()
	options = append([]TracerBuilderOption{WithSeedSource(NewFixedSeedSource(1))}, options...)
	tr, err := NewTracer(dev, cam, s, options...)
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	t.Cleanup(tr.Release)
	return tr
}

func emptyScene(t *testing.T) scene.Scene {
	t.Helper()
	s, err := scene.NewScene()
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	return s
}

func deviceLimit(bytes uint64) device.DeviceBuilderOption {
	return device.WithMaxBufferSize(bytes)
}

func cameraResolution(w, h uint32) camera.CameraBuilderOption {
	return camera.WithResolution(w, h)
}
