// Package engine defines the contract this library requires from a document
// rendering engine. The engine parses a fixed-layout document into styled text
// runs, performs bounded redactions and text insertions, and persists the
// result. Implementations live outside this module; package memdoc provides an
// in-memory reference used by tests and the CLI.
package engine

// TextRun is one contiguous styled text fragment on one page, as reported by
// the engine in layout order. Text is raw (not trimmed); Color is the packed
// source encoding (0xRRGGBB).
type TextRun struct {
	Text       string
	BBox       Rect
	FontFamily string
	FontSize   float64
	Color      int
}

// RGB is a normalized color triple with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// DecodeColor converts a packed 0xRRGGBB encoding to a normalized triple.
func DecodeColor(packed int) RGB {
	return RGB{
		R: float64((packed>>16)&0xFF) / 255.0,
		G: float64((packed>>8)&0xFF) / 255.0,
		B: float64(packed&0xFF) / 255.0,
	}
}

// EncodeColor packs a normalized triple into 0xRRGGBB, clamping each
// component to [0, 1].
func EncodeColor(c RGB) int {
	return clampByte(c.R)<<16 | clampByte(c.G)<<8 | clampByte(c.B)
}

func clampByte(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int(v*255.0 + 0.5)
}

// Document is an open handle to a single document. Handles are not safe for
// concurrent use; callers serialize all access to one handle.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// TextRuns returns the styled text runs of a page in layout order.
	TextRuns(page int) ([]TextRun, error)

	// FindText returns the bounding rectangle of every occurrence of the
	// literal substring on the page, in layout order.
	FindText(page int, literal string) ([]Rect, error)

	// RedactRegion removes rendered text within the rectangle. When
	// preserveGraphics is true, non-text graphics (checkbox art, rules)
	// inside the region are kept.
	RedactRegion(page int, region Rect, preserveGraphics bool) error

	// InsertStyledText flows text into the rectangle using the engine's
	// rich insertion path (automatic font selection).
	InsertStyledText(page int, region Rect, text string, fontSize float64, color RGB) error

	// InsertPlainText places text with its baseline at the given point
	// using a named font. Lower fidelity fallback for InsertStyledText.
	InsertPlainText(page int, at Point, text string, fontSize float64, fontName string, color RGB) error

	// Save persists the document to path. Implementations must write to a
	// temporary file and atomically replace the target, so a crash
	// mid-save never leaves a half-written file in place. Run positions
	// may be renumbered by a save; callers reopen the handle afterwards.
	Save(path string) error

	// Close releases the handle. Further calls on the handle fail.
	Close() error
}

// Engine opens documents by path.
type Engine interface {
	Open(path string) (Document, error)
}
