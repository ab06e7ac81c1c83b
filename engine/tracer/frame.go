package tracer

import (
	"image"
	"image/color"
	"math"
)

// ToneMapper maps a linear HDR radiance value to display range [0, 1] per channel.
type ToneMapper func(c [3]float32) [3]float32

// ToneMapGamma clamps to [0, 1] and applies a gamma 2 transfer. It is the default display mapping.
func ToneMapGamma(c [3]float32) [3]float32 {
	var out [3]float32
	for i, v := range c {
		out[i] = float32(math.Sqrt(float64(clamp01(v))))
	}
	return out
}

// ToneMapACES applies the Narkowicz ACES filmic fit followed by the gamma 2 transfer.
func ToneMapACES(c [3]float32) [3]float32 {
	const (
		a  = 2.51
		b  = 0.03
		cc = 2.43
		d  = 0.59
		e  = 0.14
	)
	var out [3]float32
	for i, v := range c {
		if v <= 0 {
			continue
		}
		x := float64(v)
		mapped := (x * (a*x + b)) / (x*(cc*x+d) + e)
		out[i] = float32(math.Sqrt(float64(clamp01(float32(mapped)))))
	}
	return out
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Frame is an immutable snapshot of the accumulated image: the per-pixel average radiance
// over Samples() completed samples. Frames are safe to share between goroutines.
//
// Frame implements image.Image; At returns the tone-mapped colour using the frame's ToneMapper.
type Frame struct {
	width, height int
	// radiance holds RGB triples in row-major order, top row first.
	radiance []float32
	samples  uint32
	version  uint64
	toneMap  ToneMapper
}

var _ image.Image = &Frame{}

func newFrame(width, height int, radiance []float32, samples uint32, version uint64) *Frame {
	return &Frame{
		width:    width,
		height:   height,
		radiance: radiance,
		samples:  samples,
		version:  version,
		toneMap:  ToneMapGamma,
	}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.height
}

// Samples returns the number of samples averaged into the frame.
func (f *Frame) Samples() uint32 {
	return f.samples
}

// Version returns the publication counter. Later frames have strictly larger versions.
func (f *Frame) Version() uint64 {
	return f.version
}

// Radiance returns the average linear radiance of pixel (x, y).
//
// Parameters:
//   - x, y: pixel coordinates, (0, 0) is the top-left pixel
//
// Returns:
//   - [3]float32: the radiance, or zero outside the frame
func (f *Frame) Radiance(x, y int) [3]float32 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return [3]float32{}
	}
	i := (y*f.width + x) * 3
	return [3]float32{f.radiance[i], f.radiance[i+1], f.radiance[i+2]}
}

// WithToneMap returns a view of the frame that converts colours with tm. The radiance data is shared.
//
// Parameters:
//   - tm: the tone mapper used by At and RGBA
//
// Returns:
//   - *Frame: the re-mapped frame
func (f *Frame) WithToneMap(tm ToneMapper) *Frame {
	cp := *f
	if tm == nil {
		tm = ToneMapGamma
	}
	cp.toneMap = tm
	return &cp
}

func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

func (f *Frame) At(x, y int) color.Color {
	c := f.toneMap(f.Radiance(x, y))
	return color.RGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: 0xff}
}

// RGBA converts the whole frame to 8-bit RGBA in one pass.
//
// Returns:
//   - *image.RGBA: the tone-mapped image
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for p := 0; p < f.width*f.height; p++ {
		c := f.toneMap([3]float32{f.radiance[p*3], f.radiance[p*3+1], f.radiance[p*3+2]})
		img.Pix[p*4] = to8(c[0])
		img.Pix[p*4+1] = to8(c[1])
		img.Pix[p*4+2] = to8(c[2])
		img.Pix[p*4+3] = 0xff
	}
	return img
}

func to8(v float32) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
