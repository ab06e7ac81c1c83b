package tracer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestToneMapGamma(t *testing.T) {
	tests := []struct {
		in   [3]float32
		want [3]float32
	}{
		{[3]float32{0, 0.25, 1}, [3]float32{0, 0.5, 1}},
		{[3]float32{-1, 4, float32(math.NaN())}, [3]float32{0, 1, 0}},
	}
	for _, tt := range tests {
		if got := ToneMapGamma(tt.in); got != tt.want {
			t.Errorf("ToneMapGamma(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToneMapACES_Monotonic(t *testing.T) {
	prev := float32(-1)
	for _, v := range []float32{0, 0.01, 0.1, 0.5, 1, 2, 10, 100} {
		got := ToneMapACES([3]float32{v, v, v})[0]
		if got < prev || got < 0 || got > 1 {
			t.Fatalf("ToneMapACES(%v) = %v after %v", v, got, prev)
		}
		prev = got
	}
}

func TestFrame_ImageInterface(t *testing.T) {
	radiance := []float32{
		0, 0, 0, 1, 1, 1,
		0.25, 0.25, 0.25, 4, 0, 0,
	}
	f := newFrame(2, 2, radiance, 3, 7)

	if f.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("Bounds = %v", f.Bounds())
	}
	if f.Samples() != 3 || f.Version() != 7 {
		t.Errorf("Samples/Version = %d/%d, want 3/7", f.Samples(), f.Version())
	}
	if got := f.Radiance(1, 1); got != [3]float32{4, 0, 0} {
		t.Errorf("Radiance(1,1) = %v", got)
	}
	if got := f.Radiance(2, 0); got != [3]float32{} {
		t.Errorf("Radiance outside = %v, want zero", got)
	}
	if got := f.At(0, 1); got != (color.RGBA{R: 128, G: 128, B: 128, A: 255}) {
		t.Errorf("At(0,1) = %v", got)
	}

	rgba := f.RGBA()
	for y := range 2 {
		for x := range 2 {
			if rgba.RGBAAt(x, y) != f.At(x, y) {
				t.Errorf("RGBA()(%d,%d) = %v, At = %v", x, y, rgba.RGBAAt(x, y), f.At(x, y))
			}
		}
	}

	aces := f.WithToneMap(ToneMapACES)
	if aces.At(1, 0) == f.At(1, 0) {
		t.Error("WithToneMap did not change the mapping")
	}
	if f.At(1, 0) != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Error("WithToneMap modified the original frame")
	}
}
