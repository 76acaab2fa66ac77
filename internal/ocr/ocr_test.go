package ocr

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDict(t *testing.T, lines string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dict.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	return path
}

func TestLoadDictionary(t *testing.T) {
	dict, err := loadDictionary(writeDict(t, "a\nb\nc\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, dict)
}

func TestLoadDictionary_Errors(t *testing.T) {
	_, err := loadDictionary("")
	assert.Error(t, err)

	_, err = loadDictionary(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = loadDictionary(writeDict(t, ""))
	assert.Error(t, err)
}

// logitRow builds a one-hot class row with the winning class at high score.
func logitRow(classes, winner int) []float32 {
	row := make([]float32, classes)
	for i := range row {
		row[i] = -10
	}
	row[winner] = 10
	return row
}

func TestDecode_CollapsesRepeatsAndBlanks(t *testing.T) {
	e := &Engine{dict: []string{"h", "e", "l", "o"}}

	// h h <blank> e l l <blank> l o  ->  "hello"
	winners := []int{1, 1, 0, 2, 3, 3, 0, 3, 4}
	classes := len(e.dict) + 2

	var logits []float32
	for _, w := range winners {
		logits = append(logits, logitRow(classes, w)...)
	}

	text, conf, err := e.decode(logits, []int64{1, int64(len(winners)), int64(classes)})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.InDelta(t, 1.0, conf, 0.01)
}

func TestDecode_SpaceClass(t *testing.T) {
	e := &Engine{dict: []string{"a", "b"}}
	classes := len(e.dict) + 2 // blank + dict + space

	winners := []int{1, 3, 2} // "a b"
	var logits []float32
	for _, w := range winners {
		logits = append(logits, logitRow(classes, w)...)
	}

	text, _, err := e.decode(logits, []int64{1, 3, int64(classes)})
	require.NoError(t, err)
	assert.Equal(t, "a b", text)
}

func TestDecode_AllBlanks(t *testing.T) {
	e := &Engine{dict: []string{"x"}}

	logits := append(logitRow(3, 0), logitRow(3, 0)...)
	text, conf, err := e.decode(logits, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, conf)
}

func TestDecode_BadShape(t *testing.T) {
	e := &Engine{dict: []string{"x"}}

	_, _, err := e.decode([]float32{1, 2}, []int64{1, 2})
	assert.Error(t, err)

	_, _, err = e.decode([]float32{1, 2}, []int64{1, 4, 4})
	assert.Error(t, err)
}

func TestPreprocessPatch(t *testing.T) {
	patch := imaging.New(100, 50, color.NRGBA{255, 255, 255, 255})

	data, w, h := preprocessPatch(patch, 48, 1280)
	assert.Equal(t, 48, h)
	assert.Equal(t, 96, w)
	assert.Len(t, data, 3*48*96)
	// White pixels normalize to 1.
	assert.InDelta(t, 1.0, float64(data[0]), 0.01)

	// Narrow crops get a minimum width, wide crops are clamped.
	_, w, _ = preprocessPatch(imaging.New(2, 50, color.NRGBA{}), 48, 1280)
	assert.Equal(t, 8, w)
	_, w, _ = preprocessPatch(imaging.New(4000, 50, color.NRGBA{}), 48, 1280)
	assert.Equal(t, 1280, w)
}

func TestNew_MissingModel(t *testing.T) {
	_, err := New(Config{}, "cpu")
	assert.ErrorContains(t, err, "model path is empty")

	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	cfg.DictPath = writeDict(t, "a\n")
	_, err = New(cfg, "cpu")
	assert.ErrorContains(t, err, "not found")
}

func TestPreprocessPatch_Bounds(t *testing.T) {
	// Offset bounds must not panic or skew normalization.
	src := image.NewNRGBA(image.Rect(10, 10, 110, 60))
	data, w, h := preprocessPatch(src, 48, 1280)
	assert.Equal(t, 48, h)
	assert.Equal(t, 96, w)
	assert.Len(t, data, 3*w*h)
}
