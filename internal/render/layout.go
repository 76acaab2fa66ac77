package render

import (
	"image"

	"github.com/comictl/comictl/internal/textblock"
)

// growFraction is how far a block without a bubble may expand on each side
// before the expansion is trimmed against neighbouring blocks.
const growFraction = 0.15

// ComputeLayout assigns each block its render area and returns a new slice;
// the input is not modified. Blocks inside a speech bubble keep the bubble
// interior. Free text expands its detection box so wrapped replacement text
// has room, stopping at the image edge and at neighbouring blocks.
func ComputeLayout(blocks []textblock.TextBlock, bounds image.Rectangle) []textblock.TextBlock {
	out := make([]textblock.TextBlock, len(blocks))
	copy(out, blocks)

	for i := range out {
		if !out[i].Bubble.Empty() {
			out[i].Bubble = out[i].Bubble.Intersect(bounds)
			continue
		}

		area := expand(out[i].Box, bounds)
		for j := range out {
			if j == i {
				continue
			}
			area = trimAgainst(area, out[i].Box, out[j].Box)
		}

		out[i].Bubble = area
	}

	return out
}

// expand grows the box by growFraction of its size on each side, clamped to
// the image bounds.
func expand(box, bounds image.Rectangle) image.Rectangle {
	dx := int(float64(box.Dx()) * growFraction)
	dy := int(float64(box.Dy()) * growFraction)

	return image.Rect(box.Min.X-dx, box.Min.Y-dy, box.Max.X+dx, box.Max.Y+dy).Intersect(bounds)
}

// trimAgainst shrinks the expanded area back toward the original box on any
// side where the expansion ran into a neighbouring block.
func trimAgainst(area, box, other image.Rectangle) image.Rectangle {
	if !area.Overlaps(other) || box.Overlaps(other) {
		return area
	}

	if other.Max.X <= box.Min.X && area.Min.X < other.Max.X {
		area.Min.X = other.Max.X
	}
	if other.Min.X >= box.Max.X && area.Max.X > other.Min.X {
		area.Max.X = other.Min.X
	}
	if other.Max.Y <= box.Min.Y && area.Min.Y < other.Max.Y {
		area.Min.Y = other.Max.Y
	}
	if other.Min.Y >= box.Max.Y && area.Max.Y > other.Min.Y {
		area.Max.Y = other.Min.Y
	}

	return area
}
