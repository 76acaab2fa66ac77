// Package textblock defines the detected text region entity shared by all
// pipeline stages and the geometry helpers operating on lists of regions.
package textblock

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"sort"
)

// TextBlock is one detected, translatable text region. Detection creates it,
// OCR fills Text, translation fills Translation, rendering reads it.
type TextBlock struct {
	// Box is the axis-aligned detection box in source image coordinates.
	Box image.Rectangle `json:"box"`
	// Bubble is a tighter speech-bubble box when the detector provides one.
	// A zero rectangle means no bubble was found.
	Bubble image.Rectangle `json:"bubble,omitempty"`
	// Angle is the rotation of the region in degrees, Origin its pivot.
	Angle  float64     `json:"angle,omitempty"`
	Origin image.Point `json:"origin,omitempty"`

	Text        string  `json:"text,omitempty"`
	Translation string  `json:"translation,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	SourceLang  string  `json:"source_lang,omitempty"`
}

// RenderArea returns the rectangle translated text should be laid out in:
// the bubble interior when present, the detection box otherwise.
func (b *TextBlock) RenderArea() image.Rectangle {
	if !b.Bubble.Empty() {
		return b.Bubble
	}
	return b.Box
}

// ClampTo shrinks the block geometry so it stays within bounds.
func (b *TextBlock) ClampTo(bounds image.Rectangle) {
	b.Box = b.Box.Intersect(bounds)
	if !b.Bubble.Empty() {
		b.Bubble = b.Bubble.Intersect(bounds)
	}
}

// rowOverlap reports whether two boxes share enough vertical extent to be
// treated as the same reading row.
func rowOverlap(a, c image.Rectangle) bool {
	top := maxInt(a.Min.Y, c.Min.Y)
	bottom := minInt(a.Max.Y, c.Max.Y)
	if bottom <= top {
		return false
	}
	overlap := bottom - top
	smaller := minInt(a.Dy(), c.Dy())
	if smaller == 0 {
		return false
	}
	return float64(overlap) >= 0.5*float64(smaller)
}

// Sort orders blocks in reading order: rows top-to-bottom, within a row
// right-to-left when rtl is set (Japanese sources), left-to-right otherwise.
// It returns a new slice and leaves the input untouched.
func Sort(blocks []TextBlock, rtl bool) []TextBlock {
	out := make([]TextBlock, len(blocks))
	copy(out, blocks)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Box.Min.Y < out[j].Box.Min.Y
	})

	// Band blocks into rows, then order within each row.
	var rows [][]TextBlock
	for _, blk := range out {
		placed := false
		for r := range rows {
			if rowOverlap(rows[r][0].Box, blk.Box) {
				rows[r] = append(rows[r], blk)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []TextBlock{blk})
		}
	}

	out = out[:0]
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			if rtl {
				return row[i].Box.Min.X > row[j].Box.Min.X
			}
			return row[i].Box.Min.X < row[j].Box.Min.X
		})
		out = append(out, row...)
	}
	return out
}

// Mask rasterizes the block geometry into a white-on-black inpainting mask.
// Bubble boxes are preferred since they hug the lettering; plain boxes are
// grown by a small margin so strokes at the edge are covered.
func Mask(bounds image.Rectangle, blocks []TextBlock) *image.Gray {
	mask := image.NewGray(bounds)
	for _, blk := range blocks {
		r := blk.Bubble
		if r.Empty() {
			r = expand(blk.Box, 5)
		}
		r = r.Intersect(bounds)
		if !r.Empty() {
			draw.Draw(mask, r, image.White, image.Point{}, draw.Src)
		}
	}
	return mask
}

func expand(r image.Rectangle, margin int) image.Rectangle {
	return image.Rect(r.Min.X-margin, r.Min.Y-margin, r.Max.X+margin, r.Max.Y+margin)
}

// RawText serializes the source text of every block into the keyed JSON
// object exported alongside translated pages ({"block_0": ..., ...}).
func RawText(blocks []TextBlock) (string, error) {
	return rawJSON(blocks, func(b TextBlock) string { return b.Text })
}

// RawTranslations serializes the translations the same way RawText does.
func RawTranslations(blocks []TextBlock) (string, error) {
	return rawJSON(blocks, func(b TextBlock) string { return b.Translation })
}

func rawJSON(blocks []TextBlock, field func(TextBlock) string) (string, error) {
	obj := make(map[string]string, len(blocks))
	for i, blk := range blocks {
		obj[fmt.Sprintf("block_%d", i)] = field(blk)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("serialize blocks: %w", err)
	}
	return string(data), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
