package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/comictl/comictl/internal/imgutil"
	"github.com/comictl/comictl/internal/lang"
	"github.com/comictl/comictl/internal/stage"
	"github.com/comictl/comictl/internal/textblock"
)

// Per-image step numbering for progress reporting.
const (
	stepLoad = iota + 1
	stepDetect
	stepOCR
	stepInpaint
	stepTranslate
	stepRender
	stepSave

	totalSteps = stepSave
)

// processImage runs decode, detection, OCR and inpainting for one image and
// returns the enriched record, ready to join the current translation batch.
// A stage failure is reported through the Result; the returned error is
// non-nil only when the context was cancelled.
func (o *Orchestrator) processImage(ctx context.Context, index, total int, path string) (*Record, stage.Result, error) {
	start := time.Now()
	defer func() { imageDuration.Observe(time.Since(start).Seconds()) }()

	rc := o.rc
	src, dst := rc.languages(path)
	rec := &Record{
		Path:        path,
		ArchiveBase: rc.archiveBase(path),
		SrcLang:     src,
		DstLang:     dst,
	}

	rc.Reporter.Progress(index, total, stepLoad, totalSteps, true)

	img, _, err := imgutil.Load(path)
	if err != nil {
		return rec, stage.Failf("load", fmt.Sprintf("unreadable image: %v", err)), nil
	}
	rec.Original = img

	if err := ctx.Err(); err != nil {
		return rec, stage.OK(), err
	}
	rc.Reporter.Progress(index, total, stepDetect, totalSteps, false)

	detector, err := o.res.Detector(rc.Config.Tools)
	if err != nil {
		return rec, stage.Fail("detect", err), nil
	}

	blocks, err := detector.Detect(ctx, img)
	if err != nil {
		return rec, stage.Fail("detect", err), nil
	}
	if len(blocks) == 0 {
		return rec, stage.Failf("detect", "no text blocks detected"), nil
	}

	if err := ctx.Err(); err != nil {
		return rec, stage.OK(), err
	}
	rc.Reporter.Progress(index, total, stepOCR, totalSteps, false)

	blocks, err = rc.OCR.Process(ctx, img, blocks)
	if err != nil {
		return rec, stage.Fail("ocr", err), nil
	}
	rec.Blocks = textblock.Sort(blocks, lang.RTLReading(src))

	if err := ctx.Err(); err != nil {
		return rec, stage.OK(), err
	}
	rc.Reporter.Progress(index, total, stepInpaint, totalSteps, false)

	inpainter, err := o.res.Inpainter(rc.Config.Tools)
	if err != nil {
		return rec, stage.Fail("inpaint", err), nil
	}

	mask := textblock.Mask(img.Bounds(), rec.Blocks)

	cleaned, err := inpainter.Inpaint(ctx, img, mask)
	if err != nil {
		return rec, stage.Fail("inpaint", err), nil
	}
	rec.Cleaned = imgutil.ClampRGBA(cleaned)

	if rc.Config.Export.CleanedImages {
		out := rc.artifactPath(dirCleanedImages, path, rec.ArchiveBase, "_cleaned", ".png")
		if err := imgutil.Save(out, rec.Cleaned); err != nil {
			return rec, stage.Fail("export", err), nil
		}
	}

	rc.Reporter.Processed(index, rec.Cleaned, path)

	return rec, stage.OK(), nil
}
