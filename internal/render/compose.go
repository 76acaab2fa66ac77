package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/comictl/comictl/internal/lang"
	"github.com/comictl/comictl/internal/textblock"
)

// TextState is one block's render state. A run persists the full list as a
// JSON session file so a host application can redisplay or re-edit the text
// items without reprocessing the page.
type TextState struct {
	Text         string  `json:"text"`
	FontFamily   string  `json:"font_family"`
	FontSize     int     `json:"font_size"`
	Color        string  `json:"text_color"`
	Alignment    string  `json:"alignment"`
	LineSpacing  float64 `json:"line_spacing"`
	Outline      bool    `json:"outline"`
	OutlineColor string  `json:"outline_color"`
	OutlineWidth float64 `json:"outline_width"`
	Bold         bool    `json:"bold"`
	Italic       bool    `json:"italic"`
	Underline    bool    `json:"underline"`
	Position     [2]int  `json:"position"`
	Rotation     float64 `json:"rotation"`
	Origin       [2]int  `json:"origin"`
	Width        int     `json:"width"`
	Direction    string  `json:"direction"`
}

// State builds the render state for a block whose Translation has already
// been wrapped to the block's render area. Wrapping-introduced spaces are
// collapsed for target scripts that do not delimit words.
func (r *Renderer) State(blk textblock.TextBlock, targetCode string) (TextState, error) {
	area := blk.RenderArea()

	wrapped, size, err := r.Wrap(blk.Translation, area.Dx(), area.Dy())
	if err != nil {
		return TextState{}, err
	}

	if lang.NoWordSpaces(targetCode) {
		wrapped = collapseSpaces(wrapped)
	}

	center := area.Min.Add(area.Size().Div(2))

	return TextState{
		Text:         wrapped,
		FontFamily:   r.cfg.FontFamily,
		FontSize:     size,
		Color:        r.cfg.Color,
		Alignment:    r.cfg.Alignment,
		LineSpacing:  r.cfg.LineSpacing,
		Outline:      r.cfg.Outline,
		OutlineColor: r.cfg.OutlineColor,
		OutlineWidth: r.cfg.OutlineWidth,
		Bold:         r.cfg.Bold,
		Italic:       r.cfg.Italic,
		Underline:    r.cfg.Underline,
		Position:     [2]int{area.Min.X, area.Min.Y},
		Rotation:     blk.Angle,
		Origin:       [2]int{center.X, center.Y},
		Width:        area.Dx(),
		Direction:    r.cfg.Direction,
	}, nil
}

// collapseSpaces removes spaces inside each wrapped line while keeping the
// line breaks themselves.
func collapseSpaces(wrapped string) string {
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.ReplaceAll(line, " ", "")
	}

	return strings.Join(lines, "\n")
}

// Compose draws every text state over the cleaned page and returns the
// translated page. The cleaned image is not modified.
func (r *Renderer) Compose(cleaned image.Image, states []TextState) (*image.NRGBA, error) {
	page := imaging.Clone(cleaned)

	for i := range states {
		if strings.TrimSpace(states[i].Text) == "" {
			continue
		}
		if err := r.drawState(page, states[i]); err != nil {
			return nil, fmt.Errorf("failed to render text item %d: %w", i, err)
		}
	}

	return page, nil
}

func (r *Renderer) drawState(page *image.NRGBA, st TextState) error {
	face, err := r.source.face(st.FontSize)
	if err != nil {
		return err
	}

	textColor, err := parseHexColor(st.Color)
	if err != nil {
		return err
	}

	layer := r.renderLayer(st, face, textColor)

	if st.Rotation != 0 && math.Mod(st.Rotation, 360) != 0 {
		rotated := imaging.Rotate(layer, -st.Rotation, color.NRGBA{})
		// Keep the layer centered on its pre-rotation midpoint.
		off := image.Pt((rotated.Bounds().Dx()-layer.Bounds().Dx())/2, (rotated.Bounds().Dy()-layer.Bounds().Dy())/2)
		draw.Draw(page, rotated.Bounds().Add(image.Pt(st.Position[0]-off.X, st.Position[1]-off.Y)), rotated, image.Point{}, draw.Over)
		return nil
	}

	draw.Draw(page, layer.Bounds().Add(image.Pt(st.Position[0], st.Position[1])), layer, image.Point{}, draw.Over)

	return nil
}

// renderLayer rasterizes the wrapped text onto a transparent layer the width
// of the render area, with the configured alignment and optional outline.
func (r *Renderer) renderLayer(st TextState, face font.Face, textColor color.NRGBA) *image.NRGBA {
	lines := strings.Split(st.Text, "\n")
	lineHeight := scaledLineHeight(face, st.LineSpacing)
	ascent := face.Metrics().Ascent.Ceil()

	margin := 0
	if st.Outline {
		margin = int(math.Ceil(st.OutlineWidth))
	}

	layer := image.NewNRGBA(image.Rect(0, 0, st.Width+2*margin, len(lines)*lineHeight+2*margin))

	var outlineColor color.NRGBA
	if st.Outline {
		if c, err := parseHexColor(st.OutlineColor); err == nil {
			outlineColor = c
		} else {
			outlineColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
	}

	for i, line := range lines {
		lw := font.MeasureString(face, line).Ceil()

		var x int
		switch st.Alignment {
		case "left":
			x = margin
		case "right":
			x = margin + st.Width - lw
		default:
			x = margin + (st.Width-lw)/2
		}
		y := margin + i*lineHeight + ascent

		if st.Outline && margin > 0 {
			drawOutline(layer, face, line, x, y, margin, outlineColor)
		}

		drawLine(layer, face, line, x, y, textColor)

		if st.Underline {
			underlineY := y + face.Metrics().Descent.Ceil()/2
			for px := x; px < x+lw; px++ {
				layer.SetNRGBA(px, underlineY, textColor)
			}
		}
	}

	return layer
}

// drawOutline draws the line offset in eight directions to fake a stroke.
func drawOutline(dst *image.NRGBA, face font.Face, line string, x, y, w int, c color.NRGBA) {
	for dy := -w; dy <= w; dy++ {
		for dx := -w; dx <= w; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawLine(dst, face, line, x+dx, y+dy, c)
		}
	}
}

func drawLine(dst *image.NRGBA, face font.Face, line string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(line)
}

// parseHexColor parses "#RGB" or "#RRGGBB".
func parseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}

	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i], expanded[2*i+1] = hex[i], hex[i]
		}
		hex = string(expanded)
	case 6:
	default:
		return c, fmt.Errorf("invalid color %q", s)
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := hexByte(hex[2*i], hex[2*i+1])
		if err != nil {
			return c, fmt.Errorf("invalid color %q", s)
		}
		rgb[i] = v
	}

	c.R, c.G, c.B = rgb[0], rgb[1], rgb[2]

	return c, nil
}

func hexByte(hi, lo byte) (uint8, error) {
	h, err := hexNibble(hi)
	if err != nil {
		return 0, err
	}
	l, err := hexNibble(lo)
	if err != nil {
		return 0, err
	}

	return h<<4 | l, nil
}

func hexNibble(b byte) (uint8, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	}

	return 0, fmt.Errorf("invalid hex digit %q", b)
}
