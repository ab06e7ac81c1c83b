package engine

import (
	"github.com/Carmen-Shannon/oxy-trace/engine/display"
	"github.com/Carmen-Shannon/oxy-trace/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTitle sets the base window title. The sample count and resolution are appended as frames arrive.
//
// Parameters:
//   - title: the base title text
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTitle(title string) EngineBuilderOption {
	return func(e *engine) {
		e.title = title
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithDisplayOptions forwards options to the display created for the window.
//
// Parameters:
//   - options: display options such as display.WithToneMap or display.WithPresentMode
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDisplayOptions(options ...display.DisplayBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.displayOptions = append(e.displayOptions, options...)
	}
}

// WithRenderFrameLimit sets an optional present rate cap in frames per second.
// Pass 0 to uncap presentation (default).
//
// Parameters:
//   - fps: maximum presents per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameInterval(fps)
	}
}
