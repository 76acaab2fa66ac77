// Package inpaint provides the built-in text-removal implementations.
// They fill masked regions from surrounding pixels; heavyweight model
// inpainters plug into the same registry contract.
package inpaint

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/comictl/comictl/internal/stage"
)

// Register adds the built-in inpainters to the registry.
func Register(r *stage.Registry) {
	r.RegisterInpainter("solid", func(device string) (stage.Inpainter, error) {
		return &fillInpainter{}, nil
	})
	r.RegisterInpainter("blur", func(device string) (stage.Inpainter, error) {
		return &fillInpainter{smooth: true, sigma: 6.0}, nil
	})
}

// fillInpainter removes masked regions by interpolating across each scanline
// between the nearest unmasked neighbors, optionally smoothing the filled
// area with a Gaussian pass afterwards.
type fillInpainter struct {
	smooth bool
	sigma  float64
}

func (p *fillInpainter) Inpaint(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	if img == nil || mask == nil {
		return nil, errors.New("inpaint: nil image or mask")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	srcBounds := img.Bounds()
	if mask.Bounds().Dx() != srcBounds.Dx() || mask.Bounds().Dy() != srcBounds.Dy() {
		return nil, errors.New("inpaint: mask dimensions do not match image")
	}

	// Work in zero-origin coordinates; imaging.Clone normalizes the origin.
	out := imaging.Clone(img)
	m := normalizeMask(mask)

	fillScanlines(out, m)

	if p.smooth {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blurred := imaging.Blur(out, p.sigma)
		for y := 0; y < out.Bounds().Dy(); y++ {
			for x := 0; x < out.Bounds().Dx(); x++ {
				if m.GrayAt(x, y).Y >= 128 {
					out.SetNRGBA(x, y, blurred.NRGBAAt(x, y))
				}
			}
		}
	}
	return out, nil
}

// normalizeMask returns mask with a zero origin, copying only when needed.
func normalizeMask(mask *image.Gray) *image.Gray {
	b := mask.Bounds()
	if b.Min == (image.Point{}) {
		return mask
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(x, y, mask.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// fillScanlines replaces each horizontal run of masked pixels with a linear
// blend of the colors flanking the run. Runs touching the image edge take
// the single available flank color; a fully masked row stays untouched and
// is handled by the smoothing pass when enabled.
func fillScanlines(dst *image.NRGBA, mask *image.Gray) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		x := 0
		for x < w {
			if mask.GrayAt(x, y).Y < 128 {
				x++
				continue
			}
			start := x
			for x < w && mask.GrayAt(x, y).Y >= 128 {
				x++
			}
			end := x // masked run is [start, end)

			hasLeft := start > 0
			hasRight := end < w
			var left, right color.NRGBA
			if hasLeft {
				left = dst.NRGBAAt(start-1, y)
			}
			if hasRight {
				right = dst.NRGBAAt(end, y)
			}

			for i := start; i < end; i++ {
				switch {
				case hasLeft && hasRight:
					t := float64(i-start+1) / float64(end-start+1)
					dst.SetNRGBA(i, y, lerp(left, right, t))
				case hasLeft:
					dst.SetNRGBA(i, y, left)
				case hasRight:
					dst.SetNRGBA(i, y, right)
				}
			}
		}
	}
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x)*(1-t) + float64(y)*t + 0.5)
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
