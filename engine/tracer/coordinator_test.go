package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

func startCoordinator(t *testing.T, tr Tracer) Coordinator {
	t.Helper()
	c := NewCoordinator(tr)
	runCoordinator(t, c)
	return c
}

// runCoordinator starts c, so requests submitted beforehand are coalesced into one batch.
func runCoordinator(t *testing.T, c Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitIdle(t *testing.T, c Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func TestCoalesce(t *testing.T) {
	s1, _ := scene.NewScene()
	s2, _ := scene.NewScene()
	b := coalesce([]Request{
		{Kind: RequestResize, Width: 10, Height: 10},
		{Kind: RequestMove, Direction: camera.MoveLeft},
		{Kind: RequestSetScene, Scene: s1},
		{Kind: RequestResize, Width: 30, Height: 20},
		{Kind: RequestMove, Direction: camera.MoveUp},
		{Kind: RequestSetScene, Scene: s2},
	})

	if !b.resize || b.width != 30 || b.height != 20 {
		t.Errorf("resize = %v %dx%d, want the latest 30x20", b.resize, b.width, b.height)
	}
	if len(b.moves) != 2 || b.moves[0] != camera.MoveLeft || b.moves[1] != camera.MoveUp {
		t.Errorf("moves = %v, want [left up]", b.moves)
	}
	if b.scene != s2 {
		t.Error("scene is not the latest")
	}
	if b.recompute {
		t.Error("recompute set without a recompute request")
	}
}

func TestCoordinator_RecomputePublishesFullSampleSet(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(8, 8), camera.WithSamplesPerPixel(4))
	tr := newTestTracer(t, dev, cam, scene.DefaultScene(), WithMaxBounces(4))
	c := startCoordinator(t, tr)

	c.Recompute()
	waitIdle(t, c)

	f := tr.Frame()
	if f == nil || f.Samples() != 4 {
		t.Fatal("recompute did not publish a 4-sample frame")
	}
	if c.Busy() {
		t.Error("coordinator busy after WaitIdle")
	}
}

func TestCoordinator_LatestResizeWins(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(16, 16), camera.WithSamplesPerPixel(2))
	tr := newTestTracer(t, dev, cam, scene.DefaultScene(), WithMaxBounces(3))
	c := startCoordinator(t, tr)

	for _, size := range [][2]uint32{{20, 10}, {12, 30}, {9, 7}} {
		c.Resize(size[0], size[1])
	}
	waitIdle(t, c)

	if w, h := tr.Dimensions(); w != 9 || h != 7 {
		t.Fatalf("Dimensions = %dx%d, want 9x7", w, h)
	}
	f := tr.Frame()
	if f == nil {
		t.Fatal("no frame published")
	}
	if f.Width() != 9 || f.Height() != 7 || f.Samples() != 2 {
		t.Fatalf("frame = %dx%d with %d samples, want 9x7 with 2", f.Width(), f.Height(), f.Samples())
	}
}

func TestCoordinator_SameSizeResizeDoesNotRecompute(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(6, 6), camera.WithSamplesPerPixel(1))
	tr := newTestTracer(t, dev, cam, emptyScene(t))
	c := startCoordinator(t, tr)

	c.Recompute()
	waitIdle(t, c)
	version := tr.Frame().Version()

	c.Resize(6, 6)
	waitIdle(t, c)
	if got := tr.Frame().Version(); got != version {
		t.Errorf("version = %d, want %d: a same-size resize recomputed", got, version)
	}
}

func TestCoordinator_MovesApplyInOrder(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(4, 4), camera.WithSamplesPerPixel(1), camera.WithMoveStep(1))
	tr := newTestTracer(t, dev, cam, emptyScene(t))
	c := startCoordinator(t, tr)

	c.Move(camera.MoveRight)
	c.Move(camera.MoveRight)
	c.Move(camera.MoveUp)
	waitIdle(t, c)

	if got := cam.LookFrom(); !common.ApproxEqual(got, [3]float32{2, 1, 0}, 1e-5) {
		t.Errorf("LookFrom = %v, want (2,1,0)", got)
	}
}

func TestCoordinator_ReportsErrors(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(4, 4), camera.WithSamplesPerPixel(1))
	tr := newTestTracer(t, dev, cam, emptyScene(t))
	c := startCoordinator(t, tr)

	c.Recompute()
	waitIdle(t, c)
	before := tr.Frame()

	bad, _ := scene.NewScene(scene.WithMaxSpheres(1))
	_, _ = bad.AddSphere([3]float32{0, 0, -1}, 0.5, material.NewDebugNormal())
	_, _ = bad.AddSphere([3]float32{0, 0, -2}, 0.5, material.NewDebugNormal())
	c.SetScene(bad)

	select {
	case err := <-c.Errors():
		if !errors.Is(err, common.ErrEncoding) {
			t.Errorf("reported err = %v, want ErrEncoding", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("no error reported")
	}
	waitIdle(t, c)
	if tr.Frame() != before {
		t.Error("a failed recompute replaced the published frame")
	}

	c.Resize(0, 4)
	select {
	case err := <-c.Errors():
		if !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("reported err = %v, want ErrConfiguration", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("no error reported for a zero resize")
	}
}

func TestCoordinator_NewRequestCancelsInFlight(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(64, 64), camera.WithSamplesPerPixel(1000))
	tr := newTestTracer(t, dev, cam, scene.DefaultScene(), WithMaxBounces(8))
	c := startCoordinator(t, tr)

	c.Recompute()
	// Wait for the long recompute to publish at least one sample.
	deadline := time.Now().Add(30 * time.Second)
	for tr.Frame() == nil {
		if time.Now().After(deadline) {
			t.Fatal("long recompute never published")
		}
		time.Sleep(time.Millisecond)
	}

	if err := cam.SetSamplesPerPixel(1); err != nil {
		t.Fatalf("SetSamplesPerPixel: %v", err)
	}
	c.Resize(8, 8)
	waitIdle(t, c)

	f := tr.Frame()
	if f.Width() != 8 || f.Height() != 8 || f.Samples() != 1 {
		t.Errorf("frame = %dx%d with %d samples, want 8x8 with 1", f.Width(), f.Height(), f.Samples())
	}
}

func TestCoordinator_FailedSceneKeepsQueuedResize(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(4, 4), camera.WithSamplesPerPixel(1))
	tr := newTestTracer(t, dev, cam, emptyScene(t))
	c := NewCoordinator(tr)

	bad, _ := scene.NewScene(scene.WithMaxSpheres(1))
	_, _ = bad.AddSphere([3]float32{0, 0, -1}, 0.5, material.NewDebugNormal())
	_, _ = bad.AddSphere([3]float32{0, 0, -2}, 0.5, material.NewDebugNormal())
	c.SetScene(bad)
	c.Resize(8, 8)
	runCoordinator(t, c)

	select {
	case err := <-c.Errors():
		if !errors.Is(err, common.ErrEncoding) {
			t.Errorf("reported err = %v, want ErrEncoding", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("no error reported")
	}
	waitIdle(t, c)

	if w, h := tr.Dimensions(); w != 8 || h != 8 {
		t.Errorf("tracer is %dx%d, want 8x8", w, h)
	}
	if f := tr.Frame(); f == nil || f.Width() != 8 || f.Height() != 8 {
		t.Errorf("frame = %v, want an 8x8 frame", f)
	}
}

func TestCoordinator_FailedResizeKeepsQueuedMoves(t *testing.T) {
	dev := newTestDevice(t)
	cam := newTestCamera(t, cameraResolution(4, 4), camera.WithSamplesPerPixel(1))
	tr := newTestTracer(t, dev, cam, emptyScene(t))
	c := NewCoordinator(tr)
	before := cam.LookFrom()

	c.Resize(0, 4)
	c.Move(camera.MoveForward)
	runCoordinator(t, c)

	select {
	case err := <-c.Errors():
		if !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("reported err = %v, want ErrConfiguration", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("no error reported for a zero resize")
	}
	waitIdle(t, c)

	if after := cam.LookFrom(); after == before {
		t.Errorf("lookfrom = %v after a move, want it changed", after)
	}
	if w, h := tr.Dimensions(); w != 4 || h != 4 {
		t.Errorf("tracer is %dx%d, want 4x4", w, h)
	}
	if tr.Frame() == nil {
		t.Error("the move should still trigger a recompute")
	}
}
