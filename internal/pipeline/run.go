package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/comictl/comictl/internal/imgutil"
	"github.com/comictl/comictl/internal/render"
)

// Summary is the per-run outcome. "No text blocks detected" counts toward
// Skipped like every other skip; it is not an error.
type Summary struct {
	Total     int
	Processed int
	Skipped   int
	Cancelled bool

	// ArchiveErrors holds one entry per archive whose repacking failed.
	ArchiveErrors []string
}

// Orchestrator owns the end-to-end batch run: the per-image loop, the
// translation batcher, progress emission and cancellation checks. Only one
// run is active at a time; all stage calls happen sequentially on the
// calling goroutine.
type Orchestrator struct {
	rc       *RunContext
	res      *Resources
	renderer *render.Renderer
	skips    *skipLog

	// states accumulates one render-state list per finalized image and is
	// written as a JSON session file at the end of the run.
	states map[string][]render.TextState
}

// New validates the run context and prepares an orchestrator.
func New(rc *RunContext) (*Orchestrator, error) {
	if rc.Reporter == nil {
		rc.Reporter = NoOpReporter{}
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run context: %w", err)
	}

	renderer, err := render.New(rc.Config.Render)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare renderer: %w", err)
	}

	return &Orchestrator{
		rc:       rc,
		res:      NewResources(rc.Registry),
		renderer: renderer,
		states:   make(map[string][]render.TextState),
	}, nil
}

// Run processes every image in order through detection, OCR, inpainting,
// batched translation, rendering and export, then repacks source archives.
// Cancellation is cooperative: the context is polled at every stage
// boundary, finished work is kept and nothing is rolled back. A cancelled
// run returns a summary with Cancelled set, not an error.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*Summary, error) {
	rc := o.rc

	if err := rc.ensureRoot(); err != nil {
		return nil, err
	}

	o.skips = newSkipLog(rc.Root)
	defer func() { _ = o.skips.Close() }()
	defer func() { _ = o.res.Close() }()

	slog.Info("starting run",
		"images", len(paths),
		"archives", len(rc.Archives),
		"batch_size", rc.Config.Batch.Size,
		"output", rc.Root,
	)

	sum := &Summary{Total: len(paths)}
	b := newBatcher(rc.Config.Batch.Size)

	for i, path := range paths {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		rec, res, err := o.processImage(ctx, i, len(paths), path)
		if err != nil {
			sum.Cancelled = true
			break
		}

		if res.Failed() {
			o.recordSkip(sum, rec, res.Stage, res.Message)
		} else {
			rec.index = i
			b.add(rec)
		}

		if !b.full() && i != len(paths)-1 {
			continue
		}

		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		rc.Reporter.Progress(i, len(paths), stepTranslate, totalSteps, false)

		if cancelled := o.drainBatch(ctx, b, len(paths), sum); cancelled {
			sum.Cancelled = true
			break
		}
	}

	if !sum.Cancelled {
		sum.ArchiveErrors = o.archivePass(ctx)
		if ctx.Err() != nil {
			sum.Cancelled = true
		}
	}

	if err := o.writeRenderStates(); err != nil {
		slog.Warn("failed to persist render states", "error", err)
	}

	slog.Info("run finished",
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"cancelled", sum.Cancelled,
		"archive_errors", len(sum.ArchiveErrors),
	)

	return sum, nil
}

// drainBatch flushes the current translation batch and finalizes each of its
// records. Reports whether cancellation was observed.
func (o *Orchestrator) drainBatch(ctx context.Context, b *batcher, total int, sum *Summary) bool {
	for _, rec := range b.flush(ctx, o.rc) {
		if ctx.Err() != nil {
			return true
		}

		if rec.Skipped {
			o.recordSkip(sum, rec, rec.Stage, rec.Message)
			continue
		}

		if res := o.finalize(rec.index, total, rec); res.Failed() {
			o.recordSkip(sum, rec, res.Stage, res.Message)
			continue
		}

		sum.Processed++
		imagesProcessedTotal.Inc()
	}

	return false
}

// recordSkip applies the uniform skip treatment: count it, emit the skip
// event, append the log line and persist the original bytes as the output.
// Unreadable inputs produce the log line only.
func (o *Orchestrator) recordSkip(sum *Summary, rec *Record, stageName, message string) {
	sum.Skipped++
	imagesSkippedTotal.WithLabelValues(stageName).Inc()

	o.rc.Reporter.Skipped(rec.Path, stageName, message)
	if err := o.skips.Append(rec.Path, stageName, message); err != nil {
		slog.Warn("failed to append skip log", "path", rec.Path, "error", err)
	}

	if stageName == "load" {
		return
	}

	out := o.rc.translatedPath(rec.Path, rec.ArchiveBase)
	if err := imgutil.CopyFile(rec.Path, out); err != nil {
		slog.Warn("failed to copy skipped image", "path", rec.Path, "error", err)
	}
}

// writeRenderStates persists the accumulated per-image text item states as
// one JSON session file under the run root.
func (o *Orchestrator) writeRenderStates() error {
	if len(o.states) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(o.states, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(o.rc.Root, renderStateName), data, 0o600)
}
