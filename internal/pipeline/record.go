package pipeline

import (
	"image"

	"github.com/comictl/comictl/internal/textblock"
)

// Record is the per-image working state threaded through every stage. It is
// created at the top of the loop, enriched in place through inpainting,
// captured by the batch coordinator for translation, and consumed by the
// finalizer. Once Skipped is set no later stage writes into it.
type Record struct {
	Path        string
	ArchiveBase string

	SrcLang string
	DstLang string

	Blocks   []textblock.TextBlock
	Original image.Image
	Cleaned  *image.NRGBA

	Skipped bool
	Stage   string
	Message string

	// index is the image's position in the run's input list, kept for
	// progress reporting after the record leaves the per-image loop.
	index int
}

// skip marks the record as terminally skipped with the failing stage name
// and a human-readable reason.
func (r *Record) skip(stageName, message string) {
	r.Skipped = true
	r.Stage = stageName
	r.Message = message
}
