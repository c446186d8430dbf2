// Package replace performs the in-place remove-and-reinsert edit for matched
// template fields. Editing is two-phase per page: every matched run's glyphs
// are redacted first, then all replacement text is inserted. Interleaving the
// two could let a freshly inserted run be re-matched or collide with a
// removal target still pending on the same page.
package replace

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pdffield/engine"
	"pdffield/match"
	"pdffield/observability"
)

const (
	// Tolerance bounds how far a re-located text occurrence may sit from
	// the matched rectangle; geometry may have shifted slightly between
	// extraction and edit time.
	Tolerance = match.Tolerance

	// BaselineFactor places inserted text vertically at this fraction of
	// the rectangle's height from its top, approximating a text baseline
	// without font metric lookup.
	BaselineFactor = 0.8

	// FallbackFont is the generic sans-serif font used when rich styled
	// insertion fails.
	FallbackFont = "Helvetica"
)

// Skipped records one edit that could not be applied, keyed by the field key
// that requested it.
type Skipped struct {
	Key    string
	Reason string
}

// Report aggregates per-edit outcomes for a single apply pass. Individual
// failures never abort the batch; callers inspect the report instead.
type Report struct {
	Requested int
	Applied   int
	Skipped   []Skipped
}

// Executor applies matched edits against a document handle.
type Executor struct {
	log observability.Logger
}

// New returns an executor logging through log; a nil log is silenced.
func New(log observability.Logger) *Executor {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Executor{log: log}
}

// Apply removes and reinserts every matched edit, page by page, and reports
// how many of the requested edits succeeded. The replacement text takes the
// run's original font size and position and the requested uniform color.
// Apply does not persist the document; the owning session saves afterwards.
func (e *Executor) Apply(doc engine.Document, edits []match.Edit, textColor engine.RGB) Report {
	report := Report{Requested: len(edits)}

	byPage := make(map[int][]match.Edit)
	for _, edit := range edits {
		byPage[edit.Page] = append(byPage[edit.Page], edit)
	}
	pages := make([]int, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	for _, page := range pages {
		pageEdits := byPage[page]
		removed := make([]bool, len(pageEdits))

		for i, edit := range pageEdits {
			if err := e.remove(doc, edit); err != nil {
				report.Skipped = append(report.Skipped, Skipped{Key: edit.Key, Reason: err.Error()})
				e.log.Warn("removal skipped",
					observability.String("key", edit.Key),
					observability.Int("page", edit.Page),
					observability.Error("err", err))
				continue
			}
			removed[i] = true
		}

		for i, edit := range pageEdits {
			if !removed[i] {
				continue
			}
			if err := e.insert(doc, edit, textColor); err != nil {
				report.Skipped = append(report.Skipped, Skipped{Key: edit.Key, Reason: err.Error()})
				e.log.Warn("insertion skipped",
					observability.String("key", edit.Key),
					observability.Int("page", edit.Page),
					observability.Error("err", err))
				continue
			}
			report.Applied++
		}
	}
	return report
}

// remove re-locates the run's on-page instance by its literal text and
// redacts exactly that rectangle, preserving non-text graphics in the region.
func (e *Executor) remove(doc engine.Document, edit match.Edit) error {
	occurrences, err := doc.FindText(edit.Page, edit.OriginalText)
	if err != nil {
		return fmt.Errorf("locate %q: %w", edit.OriginalText, err)
	}
	for _, occ := range occurrences {
		if !occ.Near(edit.Rect, Tolerance) {
			continue
		}
		if err := doc.RedactRegion(edit.Page, occ, true); err != nil {
			return fmt.Errorf("redact: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no occurrence of %q within tolerance of %+v", edit.OriginalText, edit.Rect)
}

// insert places the replacement at the removed rectangle, styled first, then
// falls back to plain insertion with a generic font at the same size,
// position, and color.
func (e *Executor) insert(doc engine.Document, edit match.Edit, textColor engine.RGB) error {
	styledErr := doc.InsertStyledText(edit.Page, edit.Rect, edit.Replacement, edit.FontSize, textColor)
	if styledErr == nil {
		return nil
	}
	e.log.Debug("styled insertion failed, falling back",
		observability.String("key", edit.Key),
		observability.Error("err", styledErr))

	at := engine.Point{
		X: edit.Rect.X1,
		Y: edit.Rect.Y1 + edit.Rect.Height()*BaselineFactor,
	}
	if err := doc.InsertPlainText(edit.Page, at, edit.Replacement, edit.FontSize, FallbackFont, textColor); err != nil {
		return fmt.Errorf("styled insert: %v; plain insert: %w", styledErr, err)
	}
	return nil
}

// RemoveAll sweeps every page for runs whose text matches pattern, redacts
// each matching run's rectangle, and reinserts whatever remains after
// stripping the pattern at the rectangle's top-left with the run's original
// size and font. Used to clear unresolved placeholders once all known fields
// have been replaced. Returns the number of runs redacted.
func (e *Executor) RemoveAll(doc engine.Document, pattern *regexp.Regexp) (int, error) {
	count := 0
	for page := 0; page < doc.PageCount(); page++ {
		runs, err := doc.TextRuns(page)
		if err != nil {
			return count, fmt.Errorf("text runs for page %d: %w", page, err)
		}
		for _, run := range runs {
			if !pattern.MatchString(run.Text) {
				continue
			}
			if err := doc.RedactRegion(page, run.BBox, true); err != nil {
				return count, fmt.Errorf("redact page %d: %w", page, err)
			}
			count++

			remainder := strings.TrimSpace(pattern.ReplaceAllString(run.Text, ""))
			if remainder == "" {
				continue
			}
			font := run.FontFamily
			if font == "" {
				font = FallbackFont
			}
			if err := doc.InsertPlainText(page, run.BBox.TopLeft(), remainder, run.FontSize, font, engine.RGB{}); err != nil {
				e.log.Warn("remainder reinsertion failed",
					observability.Int("page", page),
					observability.String("text", remainder),
					observability.Error("err", err))
			}
		}
	}
	return count, nil
}
