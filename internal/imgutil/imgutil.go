// Package imgutil provides image loading, saving and pixel-format helpers
// shared across the pipeline stages.
package imgutil

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// SupportedExtensions lists supported page image file extensions.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupported reports whether the path has a supported image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Metadata captures lightweight file and pixel information.
type Metadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// Load opens and decodes an image file, returning the image and metadata.
func Load(path string) (image.Image, Metadata, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided page path is expected
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("stat image: %w", err)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	meta := Metadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// Save encodes img to path, choosing the encoder from the file extension.
// Parent directories are created as needed.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // output path is derived from run config
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		// PNG for .png and anything unrecognized; lossless is the safe default.
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	return nil
}

// CopyFile copies src to dst byte-for-byte, creating parent directories.
// Used when a page is skipped and its original bytes become the output.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // user-provided page path
	if err != nil {
		return fmt.Errorf("read source image: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write copy: %w", err)
	}
	return nil
}

// ClampRGBA converts img to an 8-bit NRGBA image, clamping any extended
// pixel values into displayable range. Inpainting models can emit values
// outside [0,255]; this guarantees a valid image for rendering and export.
func ClampRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Gray converts img to grayscale.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	src := imaging.Grayscale(img)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x-b.Min.X, y-b.Min.Y)
			lum := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
			out.SetGray(x, y, color.Gray{Y: uint8(lum)}) //nolint:gosec // lum <= 255
		}
	}
	return out
}
