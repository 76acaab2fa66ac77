package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comictl/comictl/internal/stage"
)

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Config{}, "cpu")
	assert.Error(t, err)

	_, err = New(Config{ModelPath: "/nonexistent/model.onnx"}, "cpu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegister(t *testing.T) {
	r := stage.NewRegistry()
	Register(r, DefaultConfig())
	assert.Equal(t, []string{"dbnet"}, r.DetectorIDs())

	// Factory construction fails without a model file, but the failure
	// comes from the factory, not from the registry lookup.
	_, err := r.NewDetector("dbnet", "cpu")
	assert.Error(t, err)
}

func TestRoundTo32(t *testing.T) {
	assert.Equal(t, 32, roundTo32(1))
	assert.Equal(t, 32, roundTo32(63))
	assert.Equal(t, 64, roundTo32(64))
	assert.Equal(t, 960, roundTo32(991))
}

func TestPreprocessShape(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	data, w, h := preprocess(img, 960)
	assert.Equal(t, 96, w)
	assert.Equal(t, 32, h)
	assert.Len(t, data, 3*96*32)
}

func TestPreprocessDownscalesLargeImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4000, 2000))
	_, w, h := preprocess(img, 960)
	assert.LessOrEqual(t, w, 960)
	assert.LessOrEqual(t, h, 960)
	assert.Zero(t, w%32)
	assert.Zero(t, h%32)
}

func TestRegionsFromMap(t *testing.T) {
	const w, h = 16, 8
	prob := make([]float32, w*h)
	set := func(x0, y0, x1, y1 int, v float32) {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				prob[y*w+x] = v
			}
		}
	}
	set(1, 1, 4, 4, 0.9)   // strong region
	set(10, 2, 13, 5, 0.4) // above thresh but below box thresh

	regions := regionsFromMap(prob, w, h, 0.3, 0.5)
	require.Len(t, regions, 1)
	assert.Equal(t, 1, regions[0].minX)
	assert.Equal(t, 4, regions[0].maxX)
	assert.Equal(t, 16, regions[0].area)
	assert.InDelta(t, 0.9, regions[0].meanProb, 1e-6)
}

func TestRegionsFromMap_Deterministic(t *testing.T) {
	const w, h = 32, 32
	prob := make([]float32, w*h)
	for i := 100; i < 160; i++ {
		prob[i] = 0.8
	}
	a := regionsFromMap(prob, w, h, 0.3, 0.5)
	b := regionsFromMap(prob, w, h, 0.3, 0.5)
	assert.Equal(t, a, b)
}

func TestRegionsFromMap_NoRowWrap(t *testing.T) {
	// Pixels at the end of one row and the start of the next must not
	// merge into one component.
	const w, h = 8, 4
	prob := make([]float32, w*h)
	prob[1*w+7] = 0.9 // (7,1)
	prob[2*w+0] = 0.9 // (0,2)
	// Pad each to clear the min-area filter.
	for x := 3; x <= 7; x++ {
		prob[0*w+x] = 0.9
		prob[1*w+x] = 0.9
	}
	for x := 0; x <= 4; x++ {
		prob[2*w+x] = 0.9
		prob[3*w+x] = 0.9
	}

	regions := regionsFromMap(prob, w, h, 0.3, 0.5)
	assert.Len(t, regions, 2)
}
