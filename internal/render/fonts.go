package render

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// faceSource parses a font once and hands out faces per point size.
type faceSource struct {
	fnt *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// newFaceSource loads the font at path, or a bundled Go font matching the
// requested weight and slant when no file is configured.
func newFaceSource(path string, bold, italic bool) (*faceSource, error) {
	data, err := fontBytes(path, bold, italic)
	if err != nil {
		return nil, err
	}

	fnt, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return &faceSource{fnt: fnt, faces: make(map[int]font.Face)}, nil
}

func fontBytes(path string, bold, italic bool) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: font path comes from run configuration
		if err != nil {
			return nil, fmt.Errorf("failed to read font file %s: %w", path, err)
		}
		return data, nil
	}

	switch {
	case bold && italic:
		return gobolditalic.TTF, nil
	case bold:
		return gobold.TTF, nil
	case italic:
		return goitalic.TTF, nil
	default:
		return goregular.TTF, nil
	}
}

// face returns a cached face for the given point size.
func (s *faceSource) face(size int) (font.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.faces[size]; ok {
		return f, nil
	}

	f, err := opentype.NewFace(s.fnt, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %dpt face: %w", size, err)
	}

	s.faces[size] = f

	return f, nil
}
