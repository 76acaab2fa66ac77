package inpaint

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comictl/comictl/internal/stage"
)

// page builds a white page with a black "text" square in the middle.
func page() (image.Image, *image.Gray) {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 20, 40, 40), image.Black, image.Point{}, draw.Src)

	mask := image.NewGray(img.Bounds())
	draw.Draw(mask, image.Rect(18, 18, 42, 42), image.White, image.Point{}, draw.Src)
	return img, mask
}

func TestRegister(t *testing.T) {
	r := stage.NewRegistry()
	Register(r)
	assert.Equal(t, []string{"blur", "solid"}, r.InpainterIDs())

	for _, id := range r.InpainterIDs() {
		inp, err := r.NewInpainter(id, "cpu")
		require.NoError(t, err)
		assert.NotNil(t, inp)
	}
}

func TestInpaintRemovesMaskedText(t *testing.T) {
	for _, id := range []string{"solid", "blur"} {
		t.Run(id, func(t *testing.T) {
			r := stage.NewRegistry()
			Register(r)
			inp, err := r.NewInpainter(id, "cpu")
			require.NoError(t, err)

			img, mask := page()
			out, err := inp.Inpaint(context.Background(), img, mask)
			require.NoError(t, err)

			// The black square must be gone: surrounded by white, the
			// fill reconstructs (near-)white pixels.
			c := color.NRGBAModel.Convert(out.At(30, 30)).(color.NRGBA)
			assert.Greater(t, int(c.R), 200, "masked pixel should be filled from white surround")

			// Unmasked pixels are untouched.
			edge := color.NRGBAModel.Convert(out.At(5, 5)).(color.NRGBA)
			assert.Equal(t, uint8(255), edge.R)
		})
	}
}

func TestInpaintDeterministic(t *testing.T) {
	r := stage.NewRegistry()
	Register(r)
	inp, err := r.NewInpainter("blur", "cpu")
	require.NoError(t, err)

	img, mask := page()
	a, err := inp.Inpaint(context.Background(), img, mask)
	require.NoError(t, err)
	b, err := inp.Inpaint(context.Background(), img, mask)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInpaintRejectsMismatchedMask(t *testing.T) {
	inp := &fillInpainter{}
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	mask := image.NewGray(image.Rect(0, 0, 5, 5))
	_, err := inp.Inpaint(context.Background(), img, mask)
	assert.Error(t, err)
}

func TestInpaintHonorsCancellation(t *testing.T) {
	inp := &fillInpainter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img, mask := page()
	_, err := inp.Inpaint(ctx, img, mask)
	assert.ErrorIs(t, err, context.Canceled)
}
