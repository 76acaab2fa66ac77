// Package detect implements the default text-block detector: a DB-style
// segmentation model executed with ONNX Runtime. The probability map is
// thresholded and grouped into connected components, whose bounding boxes
// become TextBlocks in original image coordinates.
package detect

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

	"github.com/comictl/comictl/internal/stage"
	"github.com/comictl/comictl/internal/textblock"
)

// Config holds detector settings.
type Config struct {
	ModelPath    string  // path to the ONNX detection model
	Thresh       float32 // probability threshold for binarization
	BoxThresh    float32 // mean-probability threshold for keeping a region
	MaxImageSize int     // maximum input dimension fed to the model
	NumThreads   int     // intra-op threads (0 = runtime default)
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		Thresh:       0.3,
		BoxThresh:    0.5,
		MaxImageSize: 960,
	}
}

// Register adds the ONNX detector to the registry under id "dbnet".
func Register(r *stage.Registry, cfg Config) {
	r.RegisterDetector("dbnet", func(device string) (stage.Detector, error) {
		return New(cfg, device)
	})
}

// Detector runs DB-style text detection through an ONNX session.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	session *onnxruntime_go.DynamicAdvancedSession
}

// New loads the detection model. Construction is expensive; callers are
// expected to cache the instance across images.
func New(cfg Config, device string) (*Detector, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("detector model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detector model not found: %s", cfg.ModelPath)
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 960
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
		return nil, errors.New("detection model has no inputs or outputs")
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

	slog.Debug("detection model loaded", "path", cfg.ModelPath, "device", device)
	return &Detector{cfg: cfg, session: session}, nil
}

// Close releases the ONNX session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}

// Detect finds text regions in img and returns them as TextBlocks in
// original image coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]textblock.TextBlock, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	data, w, h := preprocess(img, d.cfg.MaxImageSize)

	prob, outW, outH, err := d.run(data, w, h)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions := regionsFromMap(prob, outW, outH, d.cfg.Thresh, d.cfg.BoxThresh)

	// Scale boxes back to original coordinates and clamp.
	sx := float64(origW) / float64(outW)
	sy := float64(origH) / float64(outH)
	blocks := make([]textblock.TextBlock, 0, len(regions))
	for _, reg := range regions {
		blk := textblock.TextBlock{
			Box: image.Rect(
				int(float64(reg.minX)*sx), int(float64(reg.minY)*sy),
				int(float64(reg.maxX+1)*sx), int(float64(reg.maxY+1)*sy),
			),
			Confidence: reg.meanProb,
		}
		blk.ClampTo(bounds)
		if !blk.Box.Empty() {
			blocks = append(blocks, blk)
		}
	}

	slog.Debug("detection complete", "regions", len(blocks), "width", origW, "height", origH)
	return blocks, nil
}

func (d *Detector) run(data []float32, w, h int) ([]float32, int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, 0, 0, errors.New("detector session is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := d.session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return nil, 0, 0, fmt.Errorf("detection inference: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	out, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, 0, 0, fmt.Errorf("expected float32 output tensor, got %T", outputs[0])
	}
	shape := out.GetShape()
	if len(shape) != 4 {
		return nil, 0, 0, fmt.Errorf("expected 4D probability map, got %dD", len(shape))
	}

	outW, outH := int(shape[3]), int(shape[2])
	prob := make([]float32, len(out.GetData()))
	copy(prob, out.GetData())
	return prob, outW, outH, nil
}

// preprocess resizes the image so both dimensions are multiples of 32 within
// maxSize and normalizes pixels into a NCHW float32 tensor.
func preprocess(img image.Image, maxSize int) ([]float32, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if w > maxSize || h > maxSize {
		if w > h {
			scale = float64(maxSize) / float64(w)
		} else {
			scale = float64(maxSize) / float64(h)
		}
	}
	w = roundTo32(int(float64(w) * scale))
	h = roundTo32(int(float64(h) * scale))

	resized := imaging.Resize(img, w, h, imaging.Linear)

	// PaddleOCR-style per-channel normalization.
	mean := [3]float32{0.485, 0.456, 0.406}
	std := [3]float32{0.229, 0.224, 0.225}

	data := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := resized.NRGBAAt(x, y)
			px := [3]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
			for ch := 0; ch < 3; ch++ {
				data[ch*w*h+y*w+x] = (px[ch] - mean[ch]) / std[ch]
			}
		}
	}
	return data, w, h
}

func roundTo32(v int) int {
	if v < 32 {
		return 32
	}
	return (v / 32) * 32
}

// region is a connected component of above-threshold probability pixels.
type region struct {
	minX, minY, maxX, maxY int
	meanProb               float64
	area                   int
}

// regionsFromMap binarizes the probability map and extracts connected
// components, keeping those whose mean probability clears boxThresh.
func regionsFromMap(prob []float32, w, h int, thresh, boxThresh float32) []region {
	const minArea = 9

	labels := make([]int32, w*h)
	var out []region

	var stack []int
	for start := 0; start < w*h; start++ {
		if labels[start] != 0 || prob[start] < thresh {
			continue
		}

		reg := region{minX: w, minY: h}
		var sum float64
		stack = append(stack[:0], start)
		labels[start] = 1

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x, y := idx%w, idx/w
			sum += float64(prob[idx])
			reg.area++
			if x < reg.minX {
				reg.minX = x
			}
			if x > reg.maxX {
				reg.maxX = x
			}
			if y < reg.minY {
				reg.minY = y
			}
			if y > reg.maxY {
				reg.maxY = y
			}

			for _, n := range [4]int{idx - 1, idx + 1, idx - w, idx + w} {
				if n < 0 || n >= w*h || labels[n] != 0 || prob[n] < thresh {
					continue
				}
				// Reject horizontal wraps across row boundaries.
				if (n == idx-1 || n == idx+1) && n/w != y {
					continue
				}
				labels[n] = 1
				stack = append(stack, n)
			}
		}

		reg.meanProb = sum / float64(reg.area)
		if reg.area >= minArea && reg.meanProb >= float64(boxThresh) {
			out = append(out, reg)
		}
	}
	return out
}
