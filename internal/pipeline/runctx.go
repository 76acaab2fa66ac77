// Package pipeline sequences detection, OCR, inpainting, batched
// translation, rendering and archive repacking across many comic pages. It
// isolates failures per image, groups translation calls into batches,
// reports progress and honors cooperative cancellation between every stage.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/comictl/comictl/internal/archive"
	"github.com/comictl/comictl/internal/config"
	"github.com/comictl/comictl/internal/stage"
)

// RunContext carries everything one batch run needs: the configuration
// snapshot, the resolved output root, the tool registry, the stage
// collaborators and the progress reporter. It replaces any notion of shared
// global state; every stage call receives what it needs from here.
type RunContext struct {
	Config config.Config

	// Root is the timestamped output directory for this run.
	Root string

	Reporter Reporter
	Registry *stage.Registry

	// OCR recognizes text inside detected blocks.
	OCR stage.OCR

	// TranslatorFor returns the translator for a language pair. Called once
	// per batch flush with the first batched record's languages.
	TranslatorFor func(srcLang, dstLang string) stage.Translator

	// Archives lists the containers whose pages are part of this run; used
	// to nest output directories and to drive the repacking pass.
	Archives []archive.Descriptor

	// LangOverrides maps an image path to a language pair differing from
	// the run-level default.
	LangOverrides map[string]config.LanguagesConfig
}

// NewRunRoot returns a fresh timestamped output root under baseDir.
func NewRunRoot(baseDir string) string {
	return filepath.Join(baseDir, "comictl_"+time.Now().Format("2006-01-02_15-04-05"))
}

// Validate checks that the context is complete enough to run.
func (rc *RunContext) Validate() error {
	if rc.Root == "" {
		return fmt.Errorf("run root not set")
	}
	if rc.Registry == nil {
		return fmt.Errorf("tool registry not set")
	}
	if rc.OCR == nil {
		return fmt.Errorf("ocr engine not set")
	}
	if rc.TranslatorFor == nil {
		return fmt.Errorf("translator factory not set")
	}
	return nil
}

// languages resolves the language pair for one image path.
func (rc *RunContext) languages(path string) (string, string) {
	if pair, ok := rc.LangOverrides[path]; ok {
		return pair.Source, pair.Target
	}
	return rc.Config.Languages.Source, rc.Config.Languages.Target
}

// archiveBase returns the originating archive's basename for a path, or ""
// for loose files.
func (rc *RunContext) archiveBase(path string) string {
	for _, d := range rc.Archives {
		if d.Contains(path) {
			return d.Base()
		}
	}
	return ""
}

// outDir joins the run root, an artifact kind (translated_images, raw_texts,
// ...) and the optional per-archive nesting directory.
func (rc *RunContext) outDir(kind, archiveBase string) string {
	return filepath.Join(rc.Root, kind, archiveBase)
}

// translatedPath is where an image's final output lands: the original base
// name with a _translated suffix, extension preserved.
func (rc *RunContext) translatedPath(path, archiveBase string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(rc.outDir(dirTranslatedImages, archiveBase), base+"_translated"+ext)
}

// artifactPath builds a path for a per-image artifact with the given suffix
// and extension under one of the run's output kinds.
func (rc *RunContext) artifactPath(kind, path, archiveBase, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(rc.outDir(kind, archiveBase), base+suffix+ext)
}

// ensureRoot creates the run root directory.
func (rc *RunContext) ensureRoot() error {
	if err := os.MkdirAll(rc.Root, 0o750); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", rc.Root, err)
	}
	return nil
}

// Output directory names under the run root.
const (
	dirCleanedImages    = "cleaned_images"
	dirRawTexts         = "raw_texts"
	dirTranslatedTexts  = "translated_texts"
	dirTranslatedImages = "translated_images"

	skipLogName     = "skipped_images.log"
	renderStateName = "render_state.json"
)
