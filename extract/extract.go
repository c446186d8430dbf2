// Package extract walks a document's styled text runs and emits structured
// run records, each carrying the stable field key derived from its page,
// bounding box, and text.
package extract

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"pdffield/engine"
	"pdffield/fieldkey"
)

// ColorRed keeps only runs whose normalized color reads as "marked in red":
// R > 0.5 and G < 0.3 and B < 0.3. A loose heuristic, not exact hue matching.
const ColorRed = "red"

// Options control which runs are kept and how they are ordered.
type Options struct {
	// Color, when set, names a color class filter. ColorRed is the only
	// supported class.
	Color string

	// SortByPosition reorders the surviving runs by (page, round(y1), x1).
	// Rounding Y absorbs sub-pixel jitter across runs on the same visual
	// line; X breaks ties left to right.
	SortByPosition bool
}

// Run is one extracted text run plus its derived field key. Runs are produced
// fresh on every extraction and never mutated.
type Run struct {
	Key        string
	Page       int
	Text       string
	BBox       engine.Rect
	FontFamily string
	FontSize   float64
	Color      engine.RGB
}

// Runs iterates every page and every text run in document order, skipping
// runs whose trimmed text is empty. Pure read; the document is not modified.
func Runs(doc engine.Document, opts Options) ([]Run, error) {
	if opts.Color != "" && opts.Color != ColorRed {
		return nil, fmt.Errorf("unsupported color filter %q", opts.Color)
	}

	var out []Run
	for page := 0; page < doc.PageCount(); page++ {
		runs, err := doc.TextRuns(page)
		if err != nil {
			return nil, fmt.Errorf("text runs for page %d: %w", page, err)
		}
		for _, tr := range runs {
			text := strings.TrimSpace(tr.Text)
			if text == "" {
				continue
			}
			color := engine.DecodeColor(tr.Color)
			if opts.Color == ColorRed && !IsRed(color) {
				continue
			}
			out = append(out, Run{
				Key:        fieldkey.Encode(page, tr.BBox.X1, tr.BBox.Y1, tr.BBox.X2, tr.BBox.Y2, text),
				Page:       page,
				Text:       text,
				BBox:       tr.BBox,
				FontFamily: tr.FontFamily,
				FontSize:   tr.FontSize,
				Color:      color,
			})
		}
	}

	if opts.SortByPosition {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Page != out[j].Page {
				return out[i].Page < out[j].Page
			}
			yi, yj := math.Round(out[i].BBox.Y1), math.Round(out[j].BBox.Y1)
			if yi != yj {
				return yi < yj
			}
			return out[i].BBox.X1 < out[j].BBox.X1
		})
	}
	return out, nil
}

// IsRed reports whether a normalized color satisfies the red-marker
// heuristic.
func IsRed(c engine.RGB) bool {
	return c.R > 0.5 && c.G < 0.3 && c.B < 0.3
}
