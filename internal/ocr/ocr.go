// Package ocr recognizes the text inside detected blocks with a CRNN-style
// ONNX recognition model: each block is cropped, resized to a fixed height,
// run through the session and CTC-decoded against a character dictionary.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/yalue/onnxruntime_go"

	"github.com/comictl/comictl/internal/textblock"
)

// Config holds recognition settings.
type Config struct {
	ModelPath    string // path to the ONNX recognition model
	DictPath     string // character dictionary, one entry per line
	TargetHeight int    // input height expected by the model
	MaxWidth     int    // width clamp for very wide crops
	NumThreads   int    // intra-op threads (0 = runtime default)
}

// DefaultConfig returns the recognizer defaults.
func DefaultConfig() Config {
	return Config{
		TargetHeight: 48,
		MaxWidth:     1280,
	}
}

// Engine runs text recognition through an ONNX session. It satisfies the
// pipeline's OCR contract: blocks go in, a new list with text filled in
// comes out.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	dict    []string
	session *onnxruntime_go.DynamicAdvancedSession
}

// New loads the recognition model and its dictionary. Construction is
// expensive; build once per run.
func New(cfg Config, device string) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("recognition model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("recognition model not found: %s", cfg.ModelPath)
	}
	if cfg.TargetHeight <= 0 {
		cfg.TargetHeight = 48
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1280
	}

	dict, err := loadDictionary(cfg.DictPath)
	if err != nil {
		return nil, err
	}

	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
		}
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("recognition model has no inputs or outputs")
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()

	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}
	if device == "cuda" {
		cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("create CUDA provider options: %w", err)
		}
		defer func() { _ = cudaOpts.Destroy() }()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("enable CUDA execution provider: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	slog.Debug("recognition model loaded", "path", cfg.ModelPath, "device", device, "dict_size", len(dict))
	return &Engine{cfg: cfg, dict: dict, session: session}, nil
}

// Close releases the ONNX session.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

// Process recognizes the text of every block and returns a new list of the
// same length and order.
func (e *Engine) Process(ctx context.Context, img image.Image, blocks []textblock.TextBlock) ([]textblock.TextBlock, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}

	out := make([]textblock.TextBlock, len(blocks))
	copy(out, blocks)

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, conf, err := e.recognize(img, out[i].Box)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out[i].Text = text
		out[i].Confidence = conf
	}

	return out, nil
}

func (e *Engine) recognize(img image.Image, box image.Rectangle) (string, float64, error) {
	patch := imaging.Crop(img, box)
	b := patch.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", 0, nil
	}

	// Vertical text runs are rotated to horizontal before recognition.
	if b.Dy() > b.Dx()*3/2 {
		patch = imaging.Rotate90(patch)
	}

	data, w, h := preprocessPatch(patch, e.cfg.TargetHeight, e.cfg.MaxWidth)

	logits, shape, err := e.run(data, w, h)
	if err != nil {
		return "", 0, err
	}

	return e.decode(logits, shape)
}

func (e *Engine) run(data []float32, w, h int) ([]float32, []int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, nil, errors.New("recognizer session is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := e.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("recognition inference: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	out, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 output tensor, got %T", outputs[0])
	}

	logits := make([]float32, len(out.GetData()))
	copy(logits, out.GetData())

	return logits, out.GetShape(), nil
}

// preprocessPatch scales the crop to the model's input height, clamps the
// width and normalizes pixels to [-1, 1] in NCHW layout.
func preprocessPatch(patch image.Image, targetHeight, maxWidth int) ([]float32, int, int) {
	b := patch.Bounds()

	w := b.Dx() * targetHeight / b.Dy()
	if w < 8 {
		w = 8
	}
	if w > maxWidth {
		w = maxWidth
	}
	h := targetHeight

	resized := imaging.Resize(patch, w, h, imaging.Linear)

	data := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := resized.NRGBAAt(x, y)
			px := [3]float32{float32(c.R), float32(c.G), float32(c.B)}
			for ch := 0; ch < 3; ch++ {
				data[ch*w*h+y*w+x] = (px[ch]/255 - 0.5) / 0.5
			}
		}
	}

	return data, w, h
}
