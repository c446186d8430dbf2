// Package fieldkey serializes a (page, bounding box, text) triple into a
// single opaque string identifier and back. Keys are the only persistent
// identity a template field has: re-extracting an unmodified document yields
// the same key for the same run.
//
// The wire format is p{page}_x{x1}y{y1}a{x2}b{y2}_{escapedText} with each
// coordinate rounded to three decimal places. The text segment is everything
// after the second underscore, so marker characters inside escaped text can
// never be mistaken for coordinate boundaries.
package fieldkey

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the number of decimal places kept on each coordinate.
const Precision = 3

// ErrMalformedKey is wrapped by every decode failure. Callers decoding
// untrusted keys should treat a failure as "skip this entry".
var ErrMalformedKey = errors.New("malformed field key")

// MalformedKeyError reports why a key string could not be decoded.
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed field key %q: %s", e.Key, e.Reason)
}

func (e *MalformedKeyError) Unwrap() error { return ErrMalformedKey }

// Key is the decoded form of a field identifier.
type Key struct {
	Page           int
	X1, Y1, X2, Y2 float64
	Text           string
}

// String re-encodes the key.
func (k Key) String() string {
	return Encode(k.Page, k.X1, k.Y1, k.X2, k.Y2, k.Text)
}

// Encode builds a key from a page index, bounding box, and run text.
// Coordinates are rounded to Precision decimals; text is escaped.
func Encode(page int, x1, y1, x2, y2 float64, text string) string {
	var b strings.Builder
	b.WriteByte('p')
	b.WriteString(strconv.Itoa(page))
	b.WriteString("_x")
	b.WriteString(formatCoord(x1))
	b.WriteByte('y')
	b.WriteString(formatCoord(y1))
	b.WriteByte('a')
	b.WriteString(formatCoord(x2))
	b.WriteByte('b')
	b.WriteString(formatCoord(y2))
	b.WriteByte('_')
	b.WriteString(Escape(text))
	return b.String()
}

// Decode parses a key back into its page, coordinates, and unescaped text.
// The returned coordinates carry the rounding applied at encode time.
func Decode(key string) (Key, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 {
		return Key{}, &MalformedKeyError{Key: key, Reason: "expected page, coordinate, and text segments"}
	}
	if len(parts[0]) < 2 || parts[0][0] != 'p' {
		return Key{}, &MalformedKeyError{Key: key, Reason: "missing page marker"}
	}
	page, err := strconv.Atoi(parts[0][1:])
	if err != nil || page < 0 {
		return Key{}, &MalformedKeyError{Key: key, Reason: "invalid page number"}
	}

	coords := parts[1]
	if len(coords) == 0 || coords[0] != 'x' {
		return Key{}, &MalformedKeyError{Key: key, Reason: "missing x marker"}
	}
	iy := strings.IndexByte(coords, 'y')
	ia := strings.IndexByte(coords, 'a')
	ib := strings.IndexByte(coords, 'b')
	if iy < 0 || ia < 0 || ib < 0 || !(0 < iy && iy < ia && ia < ib) {
		return Key{}, &MalformedKeyError{Key: key, Reason: "coordinate markers out of order"}
	}
	x1, err1 := strconv.ParseFloat(coords[1:iy], 64)
	y1, err2 := strconv.ParseFloat(coords[iy+1:ia], 64)
	x2, err3 := strconv.ParseFloat(coords[ia+1:ib], 64)
	y2, err4 := strconv.ParseFloat(coords[ib+1:], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Key{}, &MalformedKeyError{Key: key, Reason: "invalid coordinate value"}
	}

	return Key{
		Page: page,
		X1:   x1,
		Y1:   y1,
		X2:   x2,
		Y2:   y2,
		Text: Unescape(parts[2]),
	}, nil
}

func formatCoord(v float64) string {
	scale := math.Pow(10, Precision)
	rounded := math.Round(v*scale) / scale
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// escapePairs lists replacements in application order. Backslash comes first
// so later escape sequences are not double-escaped.
var escapePairs = [][2]string{
	{`\`, `\\`},
	{"\n", `\n`},
	{"\r", `\r`},
	{"\t", `\t`},
	{`"`, `\"`},
	{`'`, `\'`},
}

// Escape replaces backslash, newline, carriage return, tab, double quote,
// and single quote with their two-character escape forms.
func Escape(s string) string {
	for _, p := range escapePairs {
		s = strings.ReplaceAll(s, p[0], p[1])
	}
	return s
}

// Unescape reverses Escape. A single left-to-right scan resolves each escape
// sequence exactly once, so a restored backslash can never combine with the
// following character into a fresh sequence.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\'':
			b.WriteByte('\'')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
