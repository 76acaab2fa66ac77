// Package stage defines the contracts between the batch pipeline and the
// heavyweight collaborators it orchestrates (detection, OCR, inpainting,
// translation), plus the registry used to construct tool implementations.
package stage

import (
	"context"
	"image"

	"github.com/comictl/comictl/internal/textblock"
)

// Detector finds text regions in a page image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]textblock.TextBlock, error)
	Close() error
}

// OCR recognizes the source text of the given blocks. Implementations return
// a new slice of the same length and order with Text populated; the input is
// not mutated.
type OCR interface {
	Process(ctx context.Context, img image.Image, blocks []textblock.TextBlock) ([]textblock.TextBlock, error)
}

// Inpainter removes the masked text regions from an image. Deterministic for
// identical image, mask and construction options.
type Inpainter interface {
	Inpaint(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error)
}

// Translator translates the Text of every block. The returned slice has
// exactly the length and order of the input (required for range-based
// redistribution after batched calls); Translation is populated, everything
// else is carried through unchanged. contextImage may be nil.
type Translator interface {
	Translate(ctx context.Context, blocks []textblock.TextBlock, contextImage image.Image, extraContext string) ([]textblock.TextBlock, error)
}
