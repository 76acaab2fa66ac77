package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/comictl/comictl/internal/imgutil"
	"github.com/comictl/comictl/internal/lang"
	"github.com/comictl/comictl/internal/render"
	"github.com/comictl/comictl/internal/stage"
	"github.com/comictl/comictl/internal/textblock"
)

// finalize validates a translated record, writes the optional text exports,
// lays out and word-wraps every translation, captures the render states and
// writes the final composited page. Runs only for non-skipped records.
func (o *Orchestrator) finalize(index, total int, rec *Record) stage.Result {
	rc := o.rc
	rc.Reporter.Progress(index, total, stepRender, totalSteps, false)

	rawText, err := textblock.RawText(rec.Blocks)
	if err != nil {
		return stage.Failf("finalize", "translation text invalid: "+err.Error())
	}
	rawTranslations, err := textblock.RawTranslations(rec.Blocks)
	if err != nil {
		return stage.Failf("finalize", "translation text invalid: "+err.Error())
	}

	if rc.Config.Export.RawText {
		out := rc.artifactPath(dirRawTexts, rec.Path, rec.ArchiveBase, "", ".txt")
		if err := writeText(out, rawText); err != nil {
			return stage.Fail("export", err)
		}
	}
	if rc.Config.Export.TranslatedText {
		out := rc.artifactPath(dirTranslatedTexts, rec.Path, rec.ArchiveBase, "_translated", ".txt")
		if err := writeText(out, rawTranslations); err != nil {
			return stage.Fail("export", err)
		}
	}

	targetCode := lang.Code(rec.DstLang)
	if rc.Config.Render.UpperCase {
		for i := range rec.Blocks {
			rec.Blocks[i].Translation = lang.Upper(rec.Blocks[i].Translation, targetCode)
		}
	}

	rec.Blocks = render.ComputeLayout(rec.Blocks, rec.Cleaned.Bounds())

	states := make([]render.TextState, 0, len(rec.Blocks))
	for _, blk := range rec.Blocks {
		if strings.TrimSpace(blk.Translation) == "" {
			continue
		}
		st, err := o.renderer.State(blk, targetCode)
		if err != nil {
			return stage.Fail("render", err)
		}
		states = append(states, st)
	}

	// Session state is kept independent of the raster export so a host can
	// redisplay the text items later.
	o.states[rec.Path] = states

	page, err := o.renderer.Compose(rec.Cleaned, states)
	if err != nil {
		return stage.Fail("render", err)
	}

	rc.Reporter.Progress(index, total, stepSave, totalSteps, false)

	if err := imgutil.Save(rc.translatedPath(rec.Path, rec.ArchiveBase), page); err != nil {
		return stage.Fail("save", err)
	}

	return stage.OK()
}

func writeText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
