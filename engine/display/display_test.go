package display

import (
	"bytes"
	"image"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestBlitTextureFormat(t *testing.T) {
	tests := []struct {
		surface wgpu.TextureFormat
		want    wgpu.TextureFormat
	}{
		{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatRGBA8UnormSrgb},
		{wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatRGBA8UnormSrgb},
		{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatRGBA8Unorm},
		{wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8Unorm},
	}
	for _, tt := range tests {
		if got := blitTextureFormat(tt.surface); got != tt.want {
			t.Errorf("blitTextureFormat(%v) = %v, want %v", tt.surface, got, tt.want)
		}
	}
}

func TestStagePixelsTight(t *testing.T) {
	img := testImage()
	staged := stagePixels(img)
	if staged.Width != 4 || staged.Height != 3 {
		t.Fatalf("staged size = %dx%d, want 4x3", staged.Width, staged.Height)
	}
	if !bytes.Equal(staged.Pixels, img.Pix) {
		t.Error("tightly packed image should be staged as-is")
	}
}

func TestStagePixelsCompactsSubImage(t *testing.T) {
	img := testImage()
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	staged := stagePixels(sub)
	if staged.Width != 2 || staged.Height != 2 {
		t.Fatalf("staged size = %dx%d, want 2x2", staged.Width, staged.Height)
	}
	if len(staged.Pixels) != 2*2*4 {
		t.Fatalf("staged %d bytes, want %d", len(staged.Pixels), 2*2*4)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			want := img.RGBAAt(x+1, y+1)
			i := (y*2 + x) * 4
			got := staged.Pixels[i : i+4]
			if got[0] != want.R || got[1] != want.G || got[2] != want.B || got[3] != want.A {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestBlitShaderEntryPoints(t *testing.T) {
	for _, want := range []string{"fn vs_main", "fn fs_main", "texture_2d<f32>", "@binding(1) var frame_sampler: sampler"} {
		if !bytes.Contains([]byte(blitSource), []byte(want)) {
			t.Errorf("blit shader missing %q", want)
		}
	}
}
