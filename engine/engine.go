package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/display"
	"github.com/Carmen-Shannon/oxy-trace/engine/profiler"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/Carmen-Shannon/oxy-trace/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tracer goroutine with the window message loop that presents frames.
type engine struct {
	wg sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	closeOnce   sync.Once

	title          string
	window         window.Window
	display        display.Display
	displayOptions []display.DisplayBuilderOption
	tracer         tracer.Tracer
	coordinator    tracer.Coordinator

	profiler         *profiler.Profiler
	profilingEnabled bool

	frameCallback    func(frame *tracer.Frame)
	renderFrameLimit time.Duration // minimum time between presents; 0 = uncapped
	lastPresent      time.Time
	lastVersion      uint64
}

// Engine is the interactive front end of the tracer.
// It owns the window and display, runs the request coordinator on its own goroutine and presents every new frame.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Display returns the surface the frames are presented on.
	//
	// Returns:
	//   - display.Display: the display instance
	Display() display.Display

	// Coordinator returns the request coordinator driving the tracer.
	//
	// Returns:
	//   - tracer.Coordinator: the coordinator instance
	Coordinator() tracer.Coordinator

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional present rate cap in frames per second.
	// Pass 0 to uncap presentation.
	//
	// Parameters:
	//   - fps: maximum presents per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SetFrameCallback registers a function called on the window thread each time a frame with a new version is presented.
	//
	// Parameters:
	//   - callback: function receiving the presented frame
	SetFrameCallback(callback func(frame *tracer.Frame))

	// Run submits the initial recompute, starts the tracer goroutine and runs the window loop.
	// Blocks until the window closes or Quit is called, then releases the display and the tracer.
	Run()

	// Quit signals all engine goroutines to stop and closes the window.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates an Engine around t. Unless WithWindow is given, a window sized to the tracer resolution is created.
// Must be called on the main thread, which then has to call Run.
//
// Parameters:
//   - t: the tracer to drive
//   - options: functional options for engine configuration (profiling, frame limit, window, display)
//
// Returns:
//   - Engine: the newly created engine
//   - error: ErrConfiguration for a nil tracer, or the display creation error
func NewEngine(t tracer.Tracer, options ...EngineBuilderOption) (Engine, error) {
	if t == nil {
		return nil, fmt.Errorf("engine needs a tracer: %w", common.ErrConfiguration)
	}

	e := &engine{
		quitChannel:      make(chan struct{}),
		wg:               sync.WaitGroup{},
		title:            "oxy-trace",
		tracer:           t,
		coordinator:      tracer.NewCoordinator(t),
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		w, h := t.Dimensions()
		e.window = window.NewWindow(window.WithTitle(e.title), window.WithSize(int(w), int(h)))
	}

	d, err := display.NewDisplay(e.window.SurfaceDescriptor(), e.window.Width(), e.window.Height(), e.displayOptions...)
	if err != nil {
		e.closeWindow()
		return nil, err
	}
	e.display = d

	e.window.SetKeyDownCallback(e.handleKey)
	e.window.SetResizeCallback(e.handleResize)
	e.window.SetUpdateCallback(e.handleFrame)

	// The framebuffer can differ from the requested size on high-DPI displays.
	e.handleResize(e.window.Width(), e.window.Height())

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Display() display.Display {
	return e.display
}

func (e *engine) Coordinator() tracer.Coordinator {
	return e.coordinator
}

func (e *engine) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.coordinator.Recompute()
	e.handle(ctx, cancel)
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	e.display.Release()
	e.tracer.Release()
	e.closeWindow()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) closeWindow() {
	e.closeOnce.Do(func() {
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] failed to close window: %v", err)
		}
	})
}

// handle launches the tracer, error and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ctx context.Context, cancel context.CancelFunc) {
	e.wg.Add(3)
	go e.handleTracer(ctx)
	go e.handleErrors()
	go e.handleQuit(cancel)
}

// handleTracer runs the coordinator loop until the context is cancelled.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleTracer(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] tracer goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	if err := e.coordinator.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[Engine] coordinator stopped: %v", err)
		e.signalQuit()
	}
}

// handleErrors drains the coordinator error channel so failures reach the log even when nothing else listens.
func (e *engine) handleErrors() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quitChannel:
			return
		case err := <-e.coordinator.Errors():
			log.Printf("[Engine] %v", err)
		}
	}
}

// handleQuit blocks until the quit channel is closed, then cancels the in-flight recompute.
func (e *engine) handleQuit(cancel context.CancelFunc) {
	defer e.wg.Done()
	<-e.quitChannel
	cancel()
}

// handleKey maps key presses to tracer requests. R recomputes, P toggles the profiler and the
// movement keys move the camera. Escape is handled by the window itself.
func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeyR:
		e.coordinator.Recompute()
	case common.KeyP:
		e.profilingEnabled = !e.profilingEnabled
	default:
		if dir, ok := camera.DirectionForKey(keyCode); ok {
			e.coordinator.Move(dir)
		}
	}
}

// handleResize reconfigures the surface and asks for a new resolution. A minimized window
// only suspends presentation; the tracer keeps its current size.
func (e *engine) handleResize(width, height int) {
	e.display.Resize(width, height)
	if width > 0 && height > 0 {
		e.coordinator.Resize(uint32(width), uint32(height))
	}
}

// handleFrame runs on the window thread once per message loop iteration. It presents the latest
// published frame, honouring the frame limit, and ends the loop once quit has been signalled.
func (e *engine) handleFrame() {
	select {
	case <-e.quitChannel:
		e.closeWindow()
		return
	default:
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(e.lastPresent); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	e.lastPresent = time.Now()

	frame := e.tracer.Frame()
	if err := e.display.Present(frame); err != nil {
		log.Printf("[Engine] present failed: %v", err)
	}

	if frame != nil && frame.Version() != e.lastVersion {
		e.lastVersion = frame.Version()
		e.window.SetTitle(fmt.Sprintf("%s | %dx%d | %d spp", e.title, frame.Width(), frame.Height(), frame.Samples()))
		if e.frameCallback != nil {
			e.frameCallback(frame)
		}
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(profiler.Counters{
			Samples:    e.tracer.SamplesTraced(),
			Dispatches: e.tracer.Dispatcher().Dispatches(),
		})
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetRenderFrameLimit sets an optional present rate cap.
// Pass 0 to uncap presentation.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameInterval(fps)
}

func (e *engine) SetFrameCallback(callback func(frame *tracer.Frame)) {
	e.frameCallback = callback
}

func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
