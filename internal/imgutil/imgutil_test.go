package imgutil

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("page.PNG"))
	assert.True(t, IsSupported("page.jpg"))
	assert.True(t, IsSupported("/a/b/page.jpeg"))
	assert.False(t, IsSupported("page.gif"))
	assert.False(t, IsSupported("page"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "page.png")

	require.NoError(t, Save(path, testImage(8, 6, color.NRGBA{R: 200, G: 10, B: 10, A: 255})))

	img, meta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, meta.Width)
	assert.Equal(t, 6, meta.Height)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	_, _, err := Load(path)
	assert.Error(t, err)

	_, _, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "out", "dst_translated.jpg")
	require.NoError(t, os.WriteFile(src, []byte{0x1, 0x2, 0x3}, 0o600))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1, 0x2, 0x3}, data)
}

func TestClampRGBA(t *testing.T) {
	src := image.NewRGBA64(image.Rect(0, 0, 2, 2))
	src.SetRGBA64(0, 0, color.RGBA64{R: 0xffff, A: 0xffff})
	out := ClampRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R)
}

func TestGray(t *testing.T) {
	g := Gray(testImage(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)
}
