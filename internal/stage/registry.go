package stage

import (
	"fmt"
	"sort"
	"sync"
)

// DetectorFactory constructs a detector for the given device ("cpu"/"cuda").
// Construction is expected to be expensive (model load) and is the only
// place that branches on the tool identifier.
type DetectorFactory func(device string) (Detector, error)

// InpainterFactory constructs an inpainter for the given device.
type InpainterFactory func(device string) (Inpainter, error)

// Registry maps tool identifiers to factories. The zero value is unusable;
// use NewRegistry and let the tool packages register themselves.
type Registry struct {
	mu         sync.RWMutex
	detectors  map[string]DetectorFactory
	inpainters map[string]InpainterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		detectors:  make(map[string]DetectorFactory),
		inpainters: make(map[string]InpainterFactory),
	}
}

// RegisterDetector adds a detector factory under id, replacing any previous
// registration.
func (r *Registry) RegisterDetector(id string, f DetectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[id] = f
}

// RegisterInpainter adds an inpainter factory under id.
func (r *Registry) RegisterInpainter(id string, f InpainterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inpainters[id] = f
}

// NewDetector constructs the detector registered under id.
func (r *Registry) NewDetector(id, device string) (Detector, error) {
	r.mu.RLock()
	f, ok := r.detectors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown detector %q (available: %v)", id, r.DetectorIDs())
	}
	return f(device)
}

// NewInpainter constructs the inpainter registered under id.
func (r *Registry) NewInpainter(id, device string) (Inpainter, error) {
	r.mu.RLock()
	f, ok := r.inpainters[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown inpainter %q (available: %v)", id, r.InpainterIDs())
	}
	return f(device)
}

// DetectorIDs lists registered detector identifiers, sorted.
func (r *Registry) DetectorIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.detectors))
	for id := range r.detectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InpainterIDs lists registered inpainter identifiers, sorted.
func (r *Registry) InpainterIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.inpainters))
	for id := range r.inpainters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
