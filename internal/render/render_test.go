package render

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"

	"github.com/comictl/comictl/internal/config"
	"github.com/comictl/comictl/internal/textblock"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()

	r, err := New(config.Default().Render)
	require.NoError(t, err)

	return r
}

func TestWrap_FitsWidth(t *testing.T) {
	r := newTestRenderer(t)

	wrapped, size, err := r.Wrap("the quick brown fox jumps over the lazy dog", 120, 300)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, size, 9)
	assert.LessOrEqual(t, size, 40)

	lines := strings.Split(wrapped, "\n")
	assert.Greater(t, len(lines), 1)

	face, err := r.source.face(size)
	require.NoError(t, err)
	for _, line := range lines {
		assert.LessOrEqual(t, measure(face, line), 120, "line %q overflows", line)
	}
}

func TestWrap_LargerAreaGetsLargerFont(t *testing.T) {
	r := newTestRenderer(t)

	_, small, err := r.Wrap("hello there friend", 60, 60)
	require.NoError(t, err)
	_, large, err := r.Wrap("hello there friend", 400, 400)
	require.NoError(t, err)

	assert.Greater(t, large, small)
}

func TestWrap_TinyAreaFallsBackToMinSize(t *testing.T) {
	r := newTestRenderer(t)

	wrapped, size, err := r.Wrap("unfittable amount of text for such a small box", 20, 10)
	require.NoError(t, err)

	assert.Equal(t, 9, size)
	assert.NotEmpty(t, wrapped)
}

func TestWrap_EmptyText(t *testing.T) {
	r := newTestRenderer(t)

	wrapped, size, err := r.Wrap("   ", 100, 100)
	require.NoError(t, err)
	assert.Empty(t, wrapped)
	assert.Equal(t, 9, size)
}

func TestWrap_UnspacedScriptBreaksByRune(t *testing.T) {
	r := newTestRenderer(t)

	wrapped, _, err := r.Wrap("こんにちは世界こんにちは世界こんにちは世界", 50, 400)
	require.NoError(t, err)

	assert.Greater(t, len(strings.Split(wrapped, "\n")), 1)
}

func TestComputeLayout_BubblePreferred(t *testing.T) {
	bounds := image.Rect(0, 0, 500, 500)
	blocks := []textblock.TextBlock{
		{Box: image.Rect(100, 100, 150, 140), Bubble: image.Rect(80, 80, 200, 200)},
	}

	out := ComputeLayout(blocks, bounds)

	assert.Equal(t, image.Rect(80, 80, 200, 200), out[0].Bubble)
	// Input untouched.
	assert.Equal(t, image.Rect(80, 80, 200, 200), blocks[0].Bubble)
}

func TestComputeLayout_FreeTextExpands(t *testing.T) {
	bounds := image.Rect(0, 0, 500, 500)
	blocks := []textblock.TextBlock{
		{Box: image.Rect(100, 100, 200, 200)},
	}

	out := ComputeLayout(blocks, bounds)

	assert.True(t, image.Rect(100, 100, 200, 200).In(out[0].Bubble))
	assert.True(t, out[0].Bubble.In(bounds))
}

func TestComputeLayout_ExpansionClampedToImage(t *testing.T) {
	bounds := image.Rect(0, 0, 120, 120)
	blocks := []textblock.TextBlock{
		{Box: image.Rect(0, 0, 100, 100)},
	}

	out := ComputeLayout(blocks, bounds)

	assert.True(t, out[0].Bubble.In(bounds))
}

func TestComputeLayout_TrimsAgainstNeighbour(t *testing.T) {
	bounds := image.Rect(0, 0, 500, 500)
	blocks := []textblock.TextBlock{
		{Box: image.Rect(100, 100, 200, 200)},
		{Box: image.Rect(205, 100, 300, 200)},
	}

	out := ComputeLayout(blocks, bounds)

	assert.LessOrEqual(t, out[0].Bubble.Max.X, 205)
	assert.GreaterOrEqual(t, out[1].Bubble.Min.X, 200)
}

func TestState(t *testing.T) {
	r := newTestRenderer(t)

	blk := textblock.TextBlock{
		Box:         image.Rect(10, 20, 210, 120),
		Translation: "hello world",
		Angle:       3.5,
	}

	st, err := r.State(blk, "en")
	require.NoError(t, err)

	assert.Equal(t, [2]int{10, 20}, st.Position)
	assert.Equal(t, 200, st.Width)
	assert.Equal(t, [2]int{110, 70}, st.Origin)
	assert.Equal(t, 3.5, st.Rotation)
	assert.Equal(t, "Comic Sans MS", st.FontFamily)
	assert.Equal(t, "center", st.Alignment)
	assert.Equal(t, "#000000", st.Color)
	assert.True(t, st.Outline)
	assert.Contains(t, st.Text, "hello")
}

func TestState_CollapsesSpacesForUnspacedTarget(t *testing.T) {
	r := newTestRenderer(t)

	blk := textblock.TextBlock{
		Box:         image.Rect(0, 0, 300, 100),
		Translation: "你好 世界",
	}

	st, err := r.State(blk, "zh")
	require.NoError(t, err)

	for _, line := range strings.Split(st.Text, "\n") {
		assert.NotContains(t, line, " ")
	}
}

func TestCompose_DrawsText(t *testing.T) {
	r := newTestRenderer(t)

	cleaned := image.NewNRGBA(image.Rect(0, 0, 300, 200))
	for i := range cleaned.Pix {
		cleaned.Pix[i] = 0xFF // solid white
	}

	states := []TextState{{
		Text:        "HELLO",
		FontSize:    24,
		Color:       "#000000",
		Alignment:   "center",
		LineSpacing: 1.0,
		Position:    [2]int{50, 50},
		Width:       200,
	}}

	page, err := r.Compose(cleaned, states)
	require.NoError(t, err)
	require.Equal(t, cleaned.Bounds(), page.Bounds())

	dark := 0
	for y := 50; y < 100; y++ {
		for x := 50; x < 250; x++ {
			c := page.NRGBAAt(x, y)
			if c.R < 128 && c.G < 128 && c.B < 128 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 0, "expected text pixels in the render area")

	// Source image untouched.
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, cleaned.NRGBAAt(60, 60))
}

func TestCompose_SkipsEmptyStates(t *testing.T) {
	r := newTestRenderer(t)

	cleaned := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	page, err := r.Compose(cleaned, []TextState{{Text: "  "}})
	require.NoError(t, err)
	assert.Equal(t, cleaned.Pix, page.Pix)
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 128, 0, 255}, c)

	c, err = parseHexColor("#fff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, c)

	_, err = parseHexColor("red")
	assert.Error(t, err)

	_, err = parseHexColor("#12345")
	assert.Error(t, err)
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
