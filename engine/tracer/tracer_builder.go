package tracer

import "github.com/Carmen-Shannon/oxy-trace/engine/device"

// DefaultMaxBounces is the bounce budget of every path unless WithMaxBounces overrides it.
const DefaultMaxBounces = 50

// TracerBuilderOption is a functional option for configuring a Tracer.
type TracerBuilderOption func(*tracerImpl)

// WithMaxBounces sets the number of bounce dispatches per sample. Zero skips the bounce
// loop entirely, so samples contribute no radiance.
//
// Parameters:
//   - n: the bounce count
//
// Returns:
//   - TracerBuilderOption: option function to apply
func WithMaxBounces(n uint32) TracerBuilderOption {
	return func(t *tracerImpl) {
		t.maxBounces = n
	}
}

// WithJitter enables or disables sub-pixel jitter of primary rays. It is enabled by default.
//
// Parameters:
//   - enabled: whether to jitter
//
// Returns:
//   - TracerBuilderOption: option function to apply
func WithJitter(enabled bool) TracerBuilderOption {
	return func(t *tracerImpl) {
		t.jitter = enabled
	}
}

// WithBackground sets a vertical sky gradient from horizon (looking down) to zenith (looking up).
//
// Parameters:
//   - horizon: radiance at the bottom of the gradient
//   - zenith: radiance at the top of the gradient
//
// Returns:
//   - TracerBuilderOption: option function to apply
func WithBackground(horizon, zenith [3]float32) TracerBuilderOption {
	return func(t *tracerImpl) {
		t.background = device.Background{Horizon: horizon, Zenith: zenith}
	}
}

// WithUniformBackground sets a direction-independent background radiance.
//
// Parameters:
//   - c: the background radiance
//
// Returns:
//   - TracerBuilderOption: option function to apply
func WithUniformBackground(c [3]float32) TracerBuilderOption {
	return func(t *tracerImpl) {
		t.background = device.UniformBackground(c)
	}
}

// WithSeedSource replaces the random seed source, for example with NewFixedSeedSource in tests.
//
// Parameters:
//   - s: the seed source
//
// Returns:
//   - TracerBuilderOption: option function to apply
func WithSeedSource(s SeedSource) TracerBuilderOption {
	return func(t *tracerImpl) {
		if s != nil {
			t.seeds = s
		}
	}
}
