package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/comictl/comictl/internal/archive"
)

// archivePass repacks each source archive's translated pages into a new
// container next to the original archive, then removes the per-archive
// working directories. One archive's failure never blocks the others;
// errors are collected and surfaced on the summary. Cancellation is honored
// between archives, not mid-archive.
func (o *Orchestrator) archivePass(ctx context.Context) []string {
	rc := o.rc

	var errs []string

	for i, desc := range rc.Archives {
		if ctx.Err() != nil {
			break
		}

		rc.Reporter.Progress(i, len(rc.Archives), 1, 1, true)

		if err := o.packArchive(desc); err != nil {
			archivesPackedTotal.WithLabelValues("error").Inc()
			errs = append(errs, fmt.Sprintf("%s: %v", desc.Path, err))
			slog.Error("archive packing failed", "archive", desc.Path, "error", err)
			continue
		}

		archivesPackedTotal.WithLabelValues("ok").Inc()
	}

	return errs
}

func (o *Orchestrator) packArchive(desc archive.Descriptor) error {
	rc := o.rc

	ext := strings.ToLower(filepath.Ext(desc.Path))
	outExt, ok := rc.Config.Export.SaveAs[ext]
	if !ok {
		outExt = ".cbz"
	}

	imageDir := rc.outDir(dirTranslatedImages, desc.Base())
	outPath := filepath.Join(filepath.Dir(desc.Path), desc.Base()+"_translated"+outExt)

	if err := archive.Make(imageDir, outPath); err != nil {
		return err
	}

	slog.Info("archive packed", "archive", desc.Path, "output", outPath)

	// Packed pages and the extraction directory are no longer needed. The
	// shared parent of the extraction dirs goes away once it is empty.
	if err := os.RemoveAll(imageDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", imageDir, err)
	}
	if desc.WorkDir != "" {
		if err := os.RemoveAll(desc.WorkDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", desc.WorkDir, err)
		}
		_ = os.Remove(filepath.Dir(desc.WorkDir))
	}

	return nil
}
