package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/comictl/comictl/internal/textblock"
)

// batchUnit maps a half-open range [start, end) of the combined block list
// back to the record that contributed it. Ranges partition the combined list
// contiguously, in the order records were added.
type batchUnit struct {
	rec   *Record
	start int
	end   int
}

// batcher accumulates records until the batch size is reached or the run's
// input is exhausted, then performs exactly one translation call for the
// combined block list and redistributes the results by range. A failed call
// skips every record in the batch and nothing else.
type batcher struct {
	size     int
	combined []textblock.TextBlock
	units    []batchUnit
}

func newBatcher(size int) *batcher {
	if size <= 0 {
		size = 10
	}
	return &batcher{size: size}
}

// add appends the record's blocks to the combined list and records the
// range that maps back to it.
func (b *batcher) add(rec *Record) {
	start := len(b.combined)
	b.combined = append(b.combined, rec.Blocks...)
	b.units = append(b.units, batchUnit{rec: rec, start: start, end: len(b.combined)})
}

// full reports whether the batch has reached its image-count limit.
func (b *batcher) full() bool {
	return len(b.units) >= b.size
}

// flush translates the accumulated batch and returns its records, each
// either carrying translations or marked skipped. The languages and decoded
// image of the first record serve as the call's language pair and context;
// images batched together are assumed to share languages. The batch is
// cleared regardless of outcome.
func (b *batcher) flush(ctx context.Context, rc *RunContext) []*Record {
	if len(b.units) == 0 {
		return nil
	}

	records := make([]*Record, len(b.units))
	for i, u := range b.units {
		records[i] = u.rec
	}

	units := b.units
	combined := b.combined
	b.units, b.combined = nil, nil

	if len(combined) == 0 {
		return records
	}

	first := units[0].rec
	translator := rc.TranslatorFor(first.SrcLang, first.DstLang)

	slog.Debug("translating batch",
		"images", len(units),
		"blocks", len(combined),
		"source", first.SrcLang,
		"target", first.DstLang,
	)

	translationCallsTotal.Inc()

	out, err := translator.Translate(ctx, combined, first.Original, rc.Config.Translator.ExtraContext)
	if err == nil && len(out) != len(combined) {
		err = fmt.Errorf("translation returned %d blocks, want %d", len(out), len(combined))
	}
	if err != nil {
		translationBatchFailuresTotal.Inc()
		for _, rec := range records {
			rec.skip("translate", err.Error())
		}
		return records
	}

	// Replace each record's list atomically from its range.
	for _, u := range units {
		u.rec.Blocks = out[u.start:u.end:u.end]
	}

	return records
}
