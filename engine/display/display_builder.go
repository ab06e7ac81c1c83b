package display

import (
	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/cogentcore/webgpu/wgpu"
)

// DisplayBuilderOption is a functional option for configuring a displayImpl.
type DisplayBuilderOption func(d *displayImpl)

// WithPresentMode sets how frames are paced against the display refresh.
//
// Parameters:
//   - mode: PresentModeVSync (default) or PresentModeUncapped
//
// Returns:
//   - DisplayBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) DisplayBuilderOption {
	return func(d *displayImpl) {
		d.presentMode = mode
	}
}

// WithForceFallbackAdapter requests the software fallback adapter for presentation.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DisplayBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DisplayBuilderOption {
	return func(d *displayImpl) {
		d.forceFallbackAdapter = force
	}
}

// WithToneMap sets the mapping from linear radiance to display colour. A nil mapper keeps the gamma default.
//
// Parameters:
//   - tm: the tone mapper, e.g. tracer.ToneMapACES
//
// Returns:
//   - DisplayBuilderOption: option function to apply
func WithToneMap(tm tracer.ToneMapper) DisplayBuilderOption {
	return func(d *displayImpl) {
		if tm != nil {
			d.toneMap = tm
		}
	}
}

// WithSampler overrides the blit sampler. Zero fields keep linear filtering and clamp-to-edge addressing.
//
// Parameters:
//   - data: the sampler configuration
//
// Returns:
//   - DisplayBuilderOption: option function to apply
func WithSampler(data common.SamplerStagingData) DisplayBuilderOption {
	return func(d *displayImpl) {
		d.samplerData = data
	}
}

// WithClearColor sets the colour drawn before the first frame arrives.
//
// Parameters:
//   - r, g, b: the clear colour components in [0, 1]
//
// Returns:
//   - DisplayBuilderOption: option function to apply
func WithClearColor(r, g, b float64) DisplayBuilderOption {
	return func(d *displayImpl) {
		d.clearColor = wgpu.Color{R: r, G: g, B: b, A: 1.0}
	}
}
