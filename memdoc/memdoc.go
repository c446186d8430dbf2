// Package memdoc is an in-memory implementation of the engine contract. It
// models a document as styled text runs and non-text graphics per page,
// persisted as JSON. It backs the test suites and the CLI; production
// deployments plug in a real rendering engine instead.
package memdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdffield/engine"
)

// ErrClosed is returned by operations on a closed document handle.
var ErrClosed = errors.New("memdoc: document is closed")

// Engine opens JSON-backed documents.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

// Open loads the document stored at path.
func (e *Engine) Open(path string) (engine.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	var file docFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse document %q: %w", path, err)
	}
	doc := &Document{}
	for _, pf := range file.Pages {
		p := &page{}
		for _, rf := range pf.Runs {
			p.runs = append(p.runs, engine.TextRun{
				Text:       rf.Text,
				BBox:       rectFromArray(rf.BBox),
				FontFamily: rf.Font,
				FontSize:   rf.Size,
				Color:      rf.Color,
			})
		}
		for _, gf := range pf.Graphics {
			p.graphics = append(p.graphics, graphic{Kind: gf.Kind, BBox: rectFromArray(gf.BBox)})
		}
		doc.pages = append(doc.pages, p)
	}
	return doc, nil
}

// Document is an open in-memory document. Not safe for concurrent use.
type Document struct {
	pages  []*page
	closed bool
}

type page struct {
	runs     []engine.TextRun
	graphics []graphic
}

type graphic struct {
	Kind string
	BBox engine.Rect
}

// NewDocument returns an empty document with the given page count, ready to
// be populated with AddRun/AddGraphic and saved.
func NewDocument(pages int) *Document {
	d := &Document{}
	for i := 0; i < pages; i++ {
		d.pages = append(d.pages, &page{})
	}
	return d
}

// AddRun appends a text run to a page in layout order.
func (d *Document) AddRun(pageIndex int, run engine.TextRun) error {
	p, err := d.page(pageIndex)
	if err != nil {
		return err
	}
	p.runs = append(p.runs, run)
	return nil
}

// AddGraphic appends a non-text graphic (checkbox art, rules) to a page.
func (d *Document) AddGraphic(pageIndex int, kind string, bbox engine.Rect) error {
	p, err := d.page(pageIndex)
	if err != nil {
		return err
	}
	p.graphics = append(p.graphics, graphic{Kind: kind, BBox: bbox})
	return nil
}

// Graphics returns the non-text graphics of a page. Used to verify that
// redaction leaves graphics alone.
func (d *Document) Graphics(pageIndex int) ([]engine.Rect, error) {
	p, err := d.page(pageIndex)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Rect, 0, len(p.graphics))
	for _, g := range p.graphics {
		out = append(out, g.BBox)
	}
	return out, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d.closed {
		return 0
	}
	return len(d.pages)
}

// TextRuns returns the styled runs of a page in layout order.
func (d *Document) TextRuns(pageIndex int) ([]engine.TextRun, error) {
	p, err := d.page(pageIndex)
	if err != nil {
		return nil, err
	}
	return append([]engine.TextRun(nil), p.runs...), nil
}

// FindText returns the rectangle of every occurrence of the literal substring
// on the page. Occurrence rectangles are carved out of the containing run's
// bounding box assuming uniform glyph advances.
func (d *Document) FindText(pageIndex int, literal string) ([]engine.Rect, error) {
	p, err := d.page(pageIndex)
	if err != nil {
		return nil, err
	}
	if literal == "" {
		return nil, nil
	}
	var out []engine.Rect
	for _, run := range p.runs {
		text := []rune(run.Text)
		lit := []rune(literal)
		if len(text) == 0 || len(lit) > len(text) {
			continue
		}
		charW := run.BBox.Width() / float64(len(text))
		for start := 0; start+len(lit) <= len(text); start++ {
			if string(text[start:start+len(lit)]) != literal {
				continue
			}
			out = append(out, engine.Rect{
				X1: run.BBox.X1 + charW*float64(start),
				Y1: run.BBox.Y1,
				X2: run.BBox.X1 + charW*float64(start+len(lit)),
				Y2: run.BBox.Y2,
			})
			start += len(lit) - 1
		}
	}
	return out, nil
}

// RedactRegion removes the glyphs of every run falling inside the region.
// Runs partially covered lose only the covered glyphs; the remainder is kept
// as a narrower run. Graphics are untouched unless preserveGraphics is false.
func (d *Document) RedactRegion(pageIndex int, region engine.Rect, preserveGraphics bool) error {
	p, err := d.page(pageIndex)
	if err != nil {
		return err
	}
	var kept []engine.TextRun
	for _, run := range p.runs {
		if !run.BBox.Intersects(region) {
			kept = append(kept, run)
			continue
		}
		kept = append(kept, redactRun(run, region)...)
	}
	p.runs = kept

	if !preserveGraphics {
		var keptGraphics []graphic
		for _, g := range p.graphics {
			if !g.BBox.Intersects(region) {
				keptGraphics = append(keptGraphics, g)
			}
		}
		p.graphics = keptGraphics
	}
	return nil
}

// redactRun drops the glyphs whose horizontal center lies inside the region
// and returns the surviving fragments, if any.
func redactRun(run engine.TextRun, region engine.Rect) []engine.TextRun {
	text := []rune(run.Text)
	if len(text) == 0 {
		return nil
	}
	charW := run.BBox.Width() / float64(len(text))
	var fragments []engine.TextRun
	var frag []rune
	fragStart := 0
	flush := func(end int) {
		if len(frag) == 0 {
			return
		}
		fragments = append(fragments, engine.TextRun{
			Text: string(frag),
			BBox: engine.Rect{
				X1: run.BBox.X1 + charW*float64(fragStart),
				Y1: run.BBox.Y1,
				X2: run.BBox.X1 + charW*float64(end),
				Y2: run.BBox.Y2,
			},
			FontFamily: run.FontFamily,
			FontSize:   run.FontSize,
			Color:      run.Color,
		})
		frag = nil
	}
	for i, r := range text {
		center := run.BBox.X1 + charW*(float64(i)+0.5)
		if center >= region.X1 && center <= region.X2 {
			flush(i)
			continue
		}
		if len(frag) == 0 {
			fragStart = i
		}
		frag = append(frag, r)
	}
	flush(len(text))
	return fragments
}

// InsertStyledText flows text into the rectangle. The inserted run adopts the
// rectangle as its bounding box.
func (d *Document) InsertStyledText(pageIndex int, region engine.Rect, text string, fontSize float64, color engine.RGB) error {
	p, err := d.page(pageIndex)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p.runs = append(p.runs, engine.TextRun{
		Text:       text,
		BBox:       region,
		FontFamily: "",
		FontSize:   fontSize,
		Color:      engine.EncodeColor(color),
	})
	return nil
}

// InsertPlainText places text with its baseline at the given point using a
// named font. Glyph advances are approximated as half the font size.
func (d *Document) InsertPlainText(pageIndex int, at engine.Point, text string, fontSize float64, fontName string, color engine.RGB) error {
	p, err := d.page(pageIndex)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	width := 0.5 * fontSize * float64(len([]rune(text)))
	p.runs = append(p.runs, engine.TextRun{
		Text:       text,
		BBox:       engine.Rect{X1: at.X, Y1: at.Y - 0.8*fontSize, X2: at.X + width, Y2: at.Y + 0.2*fontSize},
		FontFamily: fontName,
		FontSize:   fontSize,
		Color:      engine.EncodeColor(color),
	})
	return nil
}

// Save writes the document to path via a temporary file in the same
// directory followed by an atomic rename. A crash mid-save leaves the
// original file untouched.
func (d *Document) Save(path string) error {
	if d.closed {
		return ErrClosed
	}
	file := docFile{}
	for _, p := range d.pages {
		pf := pageFile{}
		for _, run := range p.runs {
			pf.Runs = append(pf.Runs, runFile{
				Text:  run.Text,
				BBox:  arrayFromRect(run.BBox),
				Font:  run.FontFamily,
				Size:  run.FontSize,
				Color: run.Color,
			})
		}
		for _, g := range p.graphics {
			pf.Graphics = append(pf.Graphics, graphicFile{Kind: g.Kind, BBox: arrayFromRect(g.BBox)})
		}
		file.Pages = append(file.Pages, pf)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".memdoc-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}

// Close releases the handle. Further operations fail with ErrClosed.
func (d *Document) Close() error {
	d.closed = true
	return nil
}

func (d *Document) page(index int) (*page, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", index, len(d.pages))
	}
	return d.pages[index], nil
}

type docFile struct {
	Pages []pageFile `json:"pages"`
}

type pageFile struct {
	Runs     []runFile     `json:"runs"`
	Graphics []graphicFile `json:"graphics,omitempty"`
}

type runFile struct {
	Text  string     `json:"text"`
	BBox  [4]float64 `json:"bbox"`
	Font  string     `json:"font,omitempty"`
	Size  float64    `json:"size"`
	Color int        `json:"color"`
}

type graphicFile struct {
	Kind string     `json:"kind"`
	BBox [4]float64 `json:"bbox"`
}

func rectFromArray(a [4]float64) engine.Rect {
	return engine.Rect{X1: a[0], Y1: a[1], X2: a[2], Y2: a[3]}
}

func arrayFromRect(r engine.Rect) [4]float64 {
	return [4]float64{r.X1, r.Y1, r.X2, r.Y2}
}
