package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/Carmen-Shannon/oxy-trace/engine/display"
	"github.com/Carmen-Shannon/oxy-trace/engine/profiler"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/Carmen-Shannon/oxy-trace/engine/window"
)

type fakeCoordinator struct {
	tracer.Coordinator
	recomputes int
	moves      []camera.MoveDirection
	resizes    [][2]uint32
}

func (f *fakeCoordinator) Recompute() { f.recomputes++ }

func (f *fakeCoordinator) Move(direction camera.MoveDirection) { f.moves = append(f.moves, direction) }

func (f *fakeCoordinator) Resize(width, height uint32) {
	f.resizes = append(f.resizes, [2]uint32{width, height})
}

type fakeDisplay struct {
	presented []*tracer.Frame
	resizes   [][2]int
	err       error
}

var _ display.Display = &fakeDisplay{}

func (f *fakeDisplay) Present(frame *tracer.Frame) error {
	f.presented = append(f.presented, frame)
	return f.err
}

func (f *fakeDisplay) Resize(width, height int) { f.resizes = append(f.resizes, [2]int{width, height}) }

func (f *fakeDisplay) PresentedVersion() uint64 {
	if len(f.presented) == 0 || f.presented[len(f.presented)-1] == nil {
		return 0
	}
	return f.presented[len(f.presented)-1].Version()
}

func (f *fakeDisplay) Release() {}

type fakeWindow struct {
	window.Window
	titles []string
	closes int
}

func (f *fakeWindow) SetTitle(title string) { f.titles = append(f.titles, title) }

func (f *fakeWindow) Close() error {
	f.closes++
	return nil
}

func newTestEngine(t *testing.T, tr tracer.Tracer) (*engine, *fakeCoordinator, *fakeDisplay, *fakeWindow) {
	t.Helper()
	c := &fakeCoordinator{}
	d := &fakeDisplay{}
	w := &fakeWindow{}
	e := &engine{
		quitChannel: make(chan struct{}),
		title:       "test",
		window:      w,
		display:     d,
		tracer:      tr,
		coordinator: c,
		profiler:    profiler.NewProfiler(),
	}
	return e, c, d, w
}

func newTestTracer(t *testing.T) tracer.Tracer {
	t.Helper()
	dev, err := device.NewDevice(device.WithBackend(device.BackendTypeCPU))
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(dev.Release)

	cam, err := camera.NewCamera(camera.WithResolution(8, 4), camera.WithSamplesPerPixel(1))
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	tr, err := tracer.NewTracer(dev, cam, scene.DefaultScene(),
		tracer.WithMaxBounces(2),
		tracer.WithSeedSource(tracer.NewFixedSeedSource(3)),
	)
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	t.Cleanup(tr.Release)
	return tr
}

func TestHandleKey(t *testing.T) {
	e, c, _, _ := newTestEngine(t, nil)

	e.handleKey(common.KeyR)
	if c.recomputes != 1 {
		t.Errorf("R: recomputes = %d, want 1", c.recomputes)
	}

	for _, key := range []uint32{common.KeyW, common.KeyA, common.KeyQ} {
		e.handleKey(key)
	}
	want := []camera.MoveDirection{camera.MoveForward, camera.MoveLeft, camera.MoveDown}
	if len(c.moves) != len(want) {
		t.Fatalf("moves = %v, want %v", c.moves, want)
	}
	for i := range want {
		if c.moves[i] != want[i] {
			t.Errorf("move %d = %v, want %v", i, c.moves[i], want[i])
		}
	}

	e.handleKey(common.KeyP)
	if !e.profilingEnabled {
		t.Error("P should enable the profiler")
	}
	e.handleKey(common.KeyP)
	if e.profilingEnabled {
		t.Error("second P should disable the profiler")
	}

	e.handleKey(common.KeySpace)
	if c.recomputes != 1 || len(c.moves) != 3 {
		t.Error("unbound key should not submit requests")
	}
}

func TestHandleResize(t *testing.T) {
	e, c, d, _ := newTestEngine(t, nil)

	e.handleResize(0, 0)
	e.handleResize(800, 450)

	if len(d.resizes) != 2 {
		t.Fatalf("display resizes = %v, want 2 calls", d.resizes)
	}
	if len(c.resizes) != 1 || c.resizes[0] != [2]uint32{800, 450} {
		t.Errorf("coordinator resizes = %v, want [[800 450]]", c.resizes)
	}
}

func TestHandleFramePresentsNewVersions(t *testing.T) {
	tr := newTestTracer(t)
	e, _, d, w := newTestEngine(t, tr)

	var callbacks int
	e.SetFrameCallback(func(frame *tracer.Frame) { callbacks++ })

	// Nothing published yet: the display is still presented (cleared), no callback.
	e.handleFrame()
	if len(d.presented) != 1 || d.presented[0] != nil {
		t.Fatalf("presented = %v, want one nil frame", d.presented)
	}
	if callbacks != 0 {
		t.Errorf("callbacks = %d before any frame, want 0", callbacks)
	}

	if err := tr.Perform(context.Background()); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	e.handleFrame()
	e.handleFrame()

	if callbacks != 1 {
		t.Errorf("callbacks = %d, want 1 for a single new version", callbacks)
	}
	if len(w.titles) != 1 || !strings.Contains(w.titles[0], "8x4") || !strings.Contains(w.titles[0], "1 spp") {
		t.Errorf("titles = %v, want one title with resolution and sample count", w.titles)
	}
	if got := d.PresentedVersion(); got != tr.Frame().Version() {
		t.Errorf("presented version = %d, want %d", got, tr.Frame().Version())
	}
}

func TestHandleFrameKeepsRunningOnPresentError(t *testing.T) {
	tr := newTestTracer(t)
	e, _, d, w := newTestEngine(t, tr)
	d.err = errors.New("surface lost")

	e.handleFrame()
	if w.closes != 0 {
		t.Error("a present error should not close the window")
	}
}

func TestHandleFrameAfterQuit(t *testing.T) {
	tr := newTestTracer(t)
	e, _, d, w := newTestEngine(t, tr)

	e.Quit()
	e.Quit()
	e.handleFrame()
	e.handleFrame()

	if len(d.presented) != 0 {
		t.Errorf("presented %d frames after quit, want 0", len(d.presented))
	}
	if w.closes != 1 {
		t.Errorf("window closed %d times, want 1", w.closes)
	}
}

func TestNewEngineRequiresTracer(t *testing.T) {
	if _, err := NewEngine(nil); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("NewEngine(nil) error = %v, want ErrConfiguration", err)
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{0, 0},
		{-5, 0},
		{60, time.Second / 60},
		{2.5, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := frameInterval(tt.fps); got != tt.want {
			t.Errorf("frameInterval(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}
