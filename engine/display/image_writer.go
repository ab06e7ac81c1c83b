package display

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFormat is an output file encoding for rendered frames.
type ImageFormat int

const (
	ImageFormatPNG ImageFormat = iota
	ImageFormatJPEG
	ImageFormatBMP
	ImageFormatTIFF
)

func (f ImageFormat) String() string {
	switch f {
	case ImageFormatPNG:
		return "png"
	case ImageFormatJPEG:
		return "jpeg"
	case ImageFormatBMP:
		return "bmp"
	case ImageFormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ImageFormatForPath picks the encoding from a file extension.
//
// Parameters:
//   - path: the output path, e.g. "out.png"
//
// Returns:
//   - ImageFormat: the matching format
//   - error: ErrConfiguration for an unknown or missing extension
func ImageFormatForPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return ImageFormatPNG, nil
	case ".jpg", ".jpeg":
		return ImageFormatJPEG, nil
	case ".bmp":
		return ImageFormatBMP, nil
	case ".tif", ".tiff":
		return ImageFormatTIFF, nil
	default:
		return 0, fmt.Errorf("unsupported image extension %q: %w", filepath.Ext(path), common.ErrConfiguration)
	}
}

// EncodeImage writes img to w in the given format. TIFF output is deflate compressed.
//
// Parameters:
//   - w: the destination writer
//   - format: the encoding to use
//   - img: the image, typically a *tracer.Frame
//
// Returns:
//   - error: ErrConfiguration for an unknown format, or the encoder error
func EncodeImage(w io.Writer, format ImageFormat, img image.Image) error {
	switch format {
	case ImageFormatPNG:
		return png.Encode(w, img)
	case ImageFormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ImageFormatBMP:
		return bmp.Encode(w, img)
	case ImageFormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %v: %w", format, common.ErrConfiguration)
	}
}

// WriteImage encodes img to the file at path, choosing the format from its extension.
//
// Parameters:
//   - path: the output file path
//   - img: the image to write
//
// Returns:
//   - error: ErrConfiguration for an unknown extension, or the file/encoder error
func WriteImage(path string, img image.Image) (err error) {
	format, err := ImageFormatForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := EncodeImage(f, format, img); err != nil {
		return fmt.Errorf("failed to encode %s as %v: %w", path, format, err)
	}
	return nil
}
