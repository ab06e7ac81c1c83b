package tracer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
)

type sampleAccumulatorImpl struct {
	mu      *sync.Mutex
	frameMu *sync.RWMutex

	dev     device.Device
	image   device.ImageBuffer
	samples uint32
	texels  []float32

	frame   *Frame
	version uint64
}

// SampleAccumulator owns the device radiance image. Each completed sample adds its radiance
// to the running sum; Publish turns the sum into an averaged, immutable Frame.
type SampleAccumulator interface {
	// Image returns the device image the bounce kernel accumulates into.
	//
	// Returns:
	//   - device.ImageBuffer: the current image
	Image() device.ImageBuffer

	// Dimensions returns the size of the current image.
	//
	// Returns:
	//   - width, height: the image size in pixels
	Dimensions() (width, height uint32)

	// Samples returns how many samples the running sum holds.
	//
	// Returns:
	//   - uint32: the sample count
	Samples() uint32

	// Clear zeroes the device image and the sample count. It returns once the device
	// has finished clearing, so the next generation never sees stale radiance.
	//
	// Returns:
	//   - error: error if the device clear fails
	Clear() error

	// AddSample records one completed sample.
	AddSample()

	// Publish reads the image back, divides by the sample count and makes the result
	// available through Frame.
	//
	// Returns:
	//   - *Frame: the published frame
	//   - error: error if the readback fails or no sample has completed
	Publish() (*Frame, error)

	// Frame returns the most recently published frame, or nil before the first publish.
	// It never blocks on a running dispatch.
	//
	// Returns:
	//   - *Frame: the latest frame
	Frame() *Frame

	// ReplaceImage installs img as the accumulation target and resets the sample count.
	// The previously published frame stays visible until the next publish.
	//
	// Parameters:
	//   - img: the new image
	//
	// Returns:
	//   - device.ImageBuffer: the previous image, which the caller must release
	ReplaceImage(img device.ImageBuffer) device.ImageBuffer

	// Release frees the device image.
	Release()
}

var _ SampleAccumulator = &sampleAccumulatorImpl{}

// NewSampleAccumulator allocates a zeroed width x height radiance image on dev.
//
// Parameters:
//   - dev: the device that owns the image
//   - width, height: the image size in pixels
//
// Returns:
//   - SampleAccumulator: the new accumulator
//   - error: common.ErrConfiguration for a zero size, common.ErrResourceExhausted if the image does not fit
func NewSampleAccumulator(dev device.Device, width, height uint32) (SampleAccumulator, error) {
	img, err := dev.NewImageBuffer("Radiance Image", width, height)
	if err != nil {
		return nil, err
	}
	return newSampleAccumulator(dev, img), nil
}

func newSampleAccumulator(dev device.Device, img device.ImageBuffer) *sampleAccumulatorImpl {
	return &sampleAccumulatorImpl{
		mu:      &sync.Mutex{},
		frameMu: &sync.RWMutex{},
		dev:     dev,
		image:   img,
	}
}

func (a *sampleAccumulatorImpl) Image() device.ImageBuffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.image
}

func (a *sampleAccumulatorImpl) Dimensions() (uint32, uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.image.Width(), a.image.Height()
}

func (a *sampleAccumulatorImpl) Samples() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.samples
}

func (a *sampleAccumulatorImpl) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.dev.ClearImage(a.image); err != nil {
		return fmt.Errorf("failed to clear radiance image: %w", err)
	}
	a.samples = 0
	return nil
}

func (a *sampleAccumulatorImpl) AddSample() {
	a.mu.Lock()
	a.samples++
	a.mu.Unlock()
}

func (a *sampleAccumulatorImpl) Publish() (*Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.samples == 0 {
		return nil, fmt.Errorf("nothing to publish before the first sample: %w", common.ErrConfiguration)
	}

	w, h := a.image.Width(), a.image.Height()
	n := int(w) * int(h)
	if len(a.texels) != n*4 {
		a.texels = make([]float32, n*4)
	}
	if err := a.image.Read(a.texels); err != nil {
		return nil, fmt.Errorf("failed to read radiance image: %w", err)
	}

	inv := 1 / float32(a.samples)
	radiance := make([]float32, n*3)
	for p := range n {
		radiance[p*3] = a.texels[p*4] * inv
		radiance[p*3+1] = a.texels[p*4+1] * inv
		radiance[p*3+2] = a.texels[p*4+2] * inv
	}

	a.frameMu.Lock()
	a.version++
	f := newFrame(int(w), int(h), radiance, a.samples, a.version)
	a.frame = f
	a.frameMu.Unlock()
	return f, nil
}

func (a *sampleAccumulatorImpl) Frame() *Frame {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.frame
}

func (a *sampleAccumulatorImpl) ReplaceImage(img device.ImageBuffer) device.ImageBuffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.image
	a.image = img
	a.samples = 0
	a.texels = nil
	return prev
}

func (a *sampleAccumulatorImpl) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.image != nil {
		a.image.Release()
	}
}
