// Package match resolves a set of target field keys against the runs present
// in a document at edit time. Geometry is matched within a fixed tolerance to
// absorb coordinate rounding and minor layout recompute; text is matched
// exactly, because text is the unambiguous discriminator when several runs
// share similar geometry.
package match

import (
	"sort"

	"pdffield/engine"
	"pdffield/extract"
	"pdffield/fieldkey"
)

// Tolerance is the maximum per-coordinate absolute difference, in position
// units, allowed between a stored key's geometry and a run's rectangle.
const Tolerance = 10.0

// Target is one decoded replacement request.
type Target struct {
	Key     string
	Decoded fieldkey.Key
	Value   string
}

// Edit is a matched run ready for the executor: the run's rectangle, the
// resolved replacement, and the original cosmetic attributes.
type Edit struct {
	Key          string
	Page         int
	Rect         engine.Rect
	OriginalText string
	Replacement  string
	FontFamily   string
	FontSize     float64
	Color        engine.RGB
}

// ParseTargets decodes a replacement set into targets, returning the keys
// that failed to decode separately. A malformed key skips that entry only;
// it never aborts the batch. Replacement values arrive escaped (mapping
// files store them that way) and are unescaped here. Targets are ordered by
// key so matching is deterministic.
func ParseTargets(replacements map[string]string) (targets []Target, malformed []string) {
	keys := make([]string, 0, len(replacements))
	for key := range replacements {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		decoded, err := fieldkey.Decode(key)
		if err != nil {
			malformed = append(malformed, key)
			continue
		}
		targets = append(targets, Target{
			Key:     key,
			Decoded: decoded,
			Value:   fieldkey.Unescape(replacements[key]),
		})
	}
	return targets, malformed
}

// Runs pairs extracted runs with targets. A run satisfies a target when both
// are on the same page, the texts are identical, and every bounding box
// coordinate differs by at most Tolerance. The first run satisfying a target
// wins; a run satisfies at most one target. Targets left unmatched are
// simply absent from the result.
func Runs(runs []extract.Run, targets []Target) []Edit {
	consumed := make([]bool, len(targets))
	var edits []Edit
	for _, run := range runs {
		for i := range targets {
			if consumed[i] {
				continue
			}
			if !satisfies(run, targets[i]) {
				continue
			}
			consumed[i] = true
			edits = append(edits, Edit{
				Key:          targets[i].Key,
				Page:         run.Page,
				Rect:         run.BBox,
				OriginalText: run.Text,
				Replacement:  targets[i].Value,
				FontFamily:   run.FontFamily,
				FontSize:     run.FontSize,
				Color:        run.Color,
			})
			break
		}
	}
	return edits
}

func satisfies(run extract.Run, target Target) bool {
	d := target.Decoded
	if run.Page != d.Page || run.Text != d.Text {
		return false
	}
	want := engine.Rect{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2}
	return run.BBox.Near(want, Tolerance)
}
