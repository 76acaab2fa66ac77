package pipeline

import (
	"log/slog"

	"github.com/comictl/comictl/internal/config"
	"github.com/comictl/comictl/internal/stage"
)

// Resources caches the heavy stage collaborators across images. The detector
// is built once for the whole run; the inpainter is rebuilt whenever the
// configured (tool, device) key changes, since the tool selection is read
// fresh for every image. Single-worker access only, no locking needed.
type Resources struct {
	registry *stage.Registry

	detector    stage.Detector
	detectorKey string

	inpainter    stage.Inpainter
	inpainterKey string
}

// NewResources creates an empty cache over the given registry.
func NewResources(registry *stage.Registry) *Resources {
	return &Resources{registry: registry}
}

// Detector returns the cached detector, constructing it on first use.
// Construction errors propagate to the caller, which treats them as a fatal
// stage failure for the current image only.
func (r *Resources) Detector(cfg config.ToolsConfig) (stage.Detector, error) {
	key := cfg.Detector + "/" + cfg.Device()
	if r.detector != nil && r.detectorKey == key {
		return r.detector, nil
	}

	if r.detector != nil {
		_ = r.detector.Close()
	}

	slog.Debug("loading detector", "tool", cfg.Detector, "device", cfg.Device())

	det, err := r.registry.NewDetector(cfg.Detector, cfg.Device())
	if err != nil {
		return nil, err
	}

	r.detector, r.detectorKey = det, key

	return det, nil
}

// Inpainter returns the cached inpainter, rebuilding it when the tool or
// device selection changed since the last image.
func (r *Resources) Inpainter(cfg config.ToolsConfig) (stage.Inpainter, error) {
	key := cfg.Inpainter + "/" + cfg.Device()
	if r.inpainter != nil && r.inpainterKey == key {
		return r.inpainter, nil
	}

	slog.Debug("loading inpainter", "tool", cfg.Inpainter, "device", cfg.Device())

	inp, err := r.registry.NewInpainter(cfg.Inpainter, cfg.Device())
	if err != nil {
		return nil, err
	}

	r.inpainter, r.inpainterKey = inp, key

	return inp, nil
}

// Close releases the cached detector.
func (r *Resources) Close() error {
	if r.detector == nil {
		return nil
	}

	err := r.detector.Close()
	r.detector, r.detectorKey = nil, ""

	return err
}
