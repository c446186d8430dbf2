package memdoc

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdffield/engine"
)

func TestSaveOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	doc := NewDocument(2)
	mustAddRun(t, doc, 0, engine.TextRun{
		Text: "{{name}}", BBox: engine.Rect{X1: 10, Y1: 10, X2: 60, Y2: 20},
		FontFamily: "Helvetica", FontSize: 12, Color: 0xCC0000,
	})
	mustAddRun(t, doc, 1, engine.TextRun{
		Text: "static", BBox: engine.Rect{X1: 5, Y1: 40, X2: 45, Y2: 52},
		FontFamily: "Times", FontSize: 10, Color: 0x000000,
	})
	if err := doc.AddGraphic(0, "checkbox", engine.Rect{X1: 70, Y1: 10, X2: 80, Y2: 20}); err != nil {
		t.Fatalf("add graphic: %v", err)
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := New().Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reopened.PageCount() != 2 {
		t.Fatalf("page count = %d", reopened.PageCount())
	}
	runs, err := reopened.TextRuns(0)
	if err != nil {
		t.Fatalf("text runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Text != "{{name}}" || runs[0].FontFamily != "Helvetica" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	graphics, err := reopened.(*Document).Graphics(0)
	if err != nil {
		t.Fatalf("graphics: %v", err)
	}
	if len(graphics) != 1 {
		t.Fatalf("unexpected graphics: %+v", graphics)
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	doc := NewDocument(1)
	if err := doc.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".memdoc-") {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := New().Open(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFindText_OccurrenceGeometry(t *testing.T) {
	doc := NewDocument(1)
	// 10 characters across 100 units: each glyph is 10 wide.
	mustAddRun(t, doc, 0, engine.TextRun{
		Text: "ab cd ab x", BBox: engine.Rect{X1: 0, Y1: 0, X2: 100, Y2: 12},
	})

	occs, err := doc.FindText(0, "ab")
	if err != nil {
		t.Fatalf("find text: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %+v", occs)
	}
	if math.Abs(occs[0].X1-0) > 1e-9 || math.Abs(occs[0].X2-20) > 1e-9 {
		t.Fatalf("first occurrence misplaced: %+v", occs[0])
	}
	if math.Abs(occs[1].X1-60) > 1e-9 || math.Abs(occs[1].X2-80) > 1e-9 {
		t.Fatalf("second occurrence misplaced: %+v", occs[1])
	}

	if occs, _ := doc.FindText(0, "missing"); len(occs) != 0 {
		t.Fatalf("expected no occurrences, got %+v", occs)
	}
}

func TestRedactRegion_PartialRun(t *testing.T) {
	doc := NewDocument(1)
	mustAddRun(t, doc, 0, engine.TextRun{
		Text: "aaabbbccc", BBox: engine.Rect{X1: 0, Y1: 0, X2: 90, Y2: 12},
	})

	// Cover the middle third.
	if err := doc.RedactRegion(0, engine.Rect{X1: 30, Y1: 0, X2: 60, Y2: 12}, true); err != nil {
		t.Fatalf("redact: %v", err)
	}
	runs, _ := doc.TextRuns(0)
	if len(runs) != 2 {
		t.Fatalf("expected 2 fragments, got %+v", runs)
	}
	if runs[0].Text != "aaa" || runs[1].Text != "ccc" {
		t.Fatalf("unexpected fragments: %q %q", runs[0].Text, runs[1].Text)
	}
	if math.Abs(runs[1].BBox.X1-60) > 1e-9 {
		t.Fatalf("right fragment misplaced: %+v", runs[1].BBox)
	}
}

func TestRedactRegion_PreservesGraphics(t *testing.T) {
	doc := NewDocument(1)
	region := engine.Rect{X1: 0, Y1: 0, X2: 50, Y2: 20}
	mustAddRun(t, doc, 0, engine.TextRun{Text: "gone", BBox: region})
	if err := doc.AddGraphic(0, "checkbox", engine.Rect{X1: 10, Y1: 5, X2: 20, Y2: 15}); err != nil {
		t.Fatalf("add graphic: %v", err)
	}

	if err := doc.RedactRegion(0, region, true); err != nil {
		t.Fatalf("redact: %v", err)
	}
	if runs, _ := doc.TextRuns(0); len(runs) != 0 {
		t.Fatalf("text not removed: %+v", runs)
	}
	if graphics, _ := doc.Graphics(0); len(graphics) != 1 {
		t.Fatalf("graphics not preserved: %+v", graphics)
	}

	if err := doc.RedactRegion(0, region, false); err != nil {
		t.Fatalf("redact: %v", err)
	}
	if graphics, _ := doc.Graphics(0); len(graphics) != 0 {
		t.Fatalf("graphics should be wiped: %+v", graphics)
	}
}

func TestClosedHandle(t *testing.T) {
	doc := NewDocument(1)
	if err := doc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := doc.TextRuns(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := doc.Save(filepath.Join(t.TempDir(), "doc.json")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on save, got %v", err)
	}
}

func mustAddRun(t *testing.T, doc *Document, page int, run engine.TextRun) {
	t.Helper()
	if err := doc.AddRun(page, run); err != nil {
		t.Fatalf("add run: %v", err)
	}
}
