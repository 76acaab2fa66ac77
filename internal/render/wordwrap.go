// Package render lays translated text back onto cleaned pages: it picks the
// largest font size whose wrapped lines fit a block's render area, records
// one TextState per block, and composites the states over the cleaned image.
package render

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"

	"github.com/comictl/comictl/internal/config"
)

// Renderer wraps and draws text using one run's render configuration.
type Renderer struct {
	cfg    config.RenderConfig
	source *faceSource
}

// New builds a Renderer for the given style. The configured font file is
// parsed once; a bundled face is used when none is configured.
func New(cfg config.RenderConfig) (*Renderer, error) {
	src, err := newFaceSource(cfg.FontFile, cfg.Bold, cfg.Italic)
	if err != nil {
		return nil, err
	}

	return &Renderer{cfg: cfg, source: src}, nil
}

// Wrap breaks text into lines that fit within width pixels and returns the
// wrapped text together with the largest font size in the configured
// [min,max] range whose lines also fit within height pixels. When even the
// minimum size overflows, the minimum-size wrapping is returned so the block
// still renders.
func (r *Renderer) Wrap(text string, width, height int) (string, int, error) {
	text = strings.TrimSpace(text)
	if text == "" || width <= 0 || height <= 0 {
		return text, r.cfg.MinFontSize, nil
	}

	lo, hi := r.cfg.MinFontSize, r.cfg.MaxFontSize
	best := lo
	var bestLines []string

	// Binary search the largest size that fits.
	for lo <= hi {
		mid := (lo + hi) / 2

		lines, fits, err := r.wrapAt(text, mid, width, height)
		if err != nil {
			return "", 0, err
		}

		if fits {
			best, bestLines = mid, lines
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if bestLines == nil {
		lines, _, err := r.wrapAt(text, r.cfg.MinFontSize, width, height)
		if err != nil {
			return "", 0, err
		}
		bestLines = lines
	}

	return strings.Join(bestLines, "\n"), best, nil
}

// wrapAt wraps text at the given size and reports whether the result fits
// the width/height box.
func (r *Renderer) wrapAt(text string, size, width, height int) ([]string, bool, error) {
	face, err := r.source.face(size)
	if err != nil {
		return nil, false, err
	}

	var lines []string
	if strings.ContainsRune(text, ' ') {
		lines = wrapWords(text, face, width)
	} else {
		lines = wrapRunes(text, face, width)
	}

	lineHeight := scaledLineHeight(face, r.cfg.LineSpacing)
	fits := len(lines)*lineHeight <= height

	for _, line := range lines {
		if font.MeasureString(face, line).Ceil() > width {
			fits = false
			break
		}
	}

	return lines, fits, nil
}

// wrapWords greedily packs space-separated words into lines. A single word
// wider than the line falls back to rune wrapping.
func wrapWords(text string, face font.Face, width int) []string {
	var lines []string
	var current string

	for _, word := range strings.Fields(text) {
		if font.MeasureString(face, word).Ceil() > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			pieces := wrapRunes(word, face, width)
			lines = append(lines, pieces[:len(pieces)-1]...)
			current = pieces[len(pieces)-1]
			continue
		}

		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate).Ceil() <= width {
			current = candidate
		} else {
			lines = append(lines, current)
			current = word
		}
	}

	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	return lines
}

// wrapRunes wraps scripts without word spaces one rune at a time.
func wrapRunes(text string, face font.Face, width int) []string {
	var lines []string
	var current []rune

	for _, r := range text {
		if unicode.IsSpace(r) && r != ' ' {
			continue
		}

		candidate := append(current, r)
		if len(current) > 0 && font.MeasureString(face, string(candidate)).Ceil() > width {
			lines = append(lines, string(current))
			current = []rune{r}
		} else {
			current = candidate
		}
	}

	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	return lines
}

func scaledLineHeight(face font.Face, spacing float64) int {
	h := float64(face.Metrics().Height.Ceil())
	if spacing > 0 {
		h *= spacing
	}

	return int(h + 0.5)
}
