package fieldkey

import (
	"errors"
	"math"
	"testing"
)

func TestEncode_Format(t *testing.T) {
	key := Encode(0, 10, 10, 60, 20, "{{name}}")
	if key != "p0_x10y10a60b20_{{name}}" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		page           int
		x1, y1, x2, y2 float64
		text           string
	}{
		{0, 10, 10, 60, 20, "{{name}}"},
		{3, 72.5664, 140.1238, 200.0001, 152.9999, "Invoice Number"},
		{1, -4.25, 0, 12.125, 8.5, "off page"},
		{0, 1, 2, 3, 4, "tab\there"},
		{0, 1, 2, 3, 4, "quote\"and'single"},
		{0, 1, 2, 3, 4, `back\slash`},
		{0, 1, 2, 3, 4, "multi\nline\rtext"},
		{0, 1, 2, 3, 4, "x1y2a3b4_underscored_text"},
		{2, 5.5, 6.5, 7.5, 8.5, "p9_x1y1a1b1_decoy"},
	}
	for _, tc := range cases {
		key := Encode(tc.page, tc.x1, tc.y1, tc.x2, tc.y2, tc.text)
		got, err := Decode(key)
		if err != nil {
			t.Fatalf("decode %q: %v", key, err)
		}
		want := Key{
			Page: tc.page,
			X1:   round3(tc.x1),
			Y1:   round3(tc.y1),
			X2:   round3(tc.x2),
			Y2:   round3(tc.y2),
			Text: tc.text,
		}
		if got != want {
			t.Fatalf("round trip mismatch for %q:\n got  %+v\n want %+v", key, got, want)
		}
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func TestDecode_CoordinateRounding(t *testing.T) {
	key := Encode(0, 10.00049, 10.0006, 59.9994, 19.9996, "t")
	got, err := Decode(key)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.X1 != 10 || got.Y1 != 10.001 || got.X2 != 59.999 || got.Y2 != 20 {
		t.Fatalf("unexpected rounding: %+v", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	keys := []string{
		"",
		"nounderscore",
		"p0_x1y2a3b4",
		"q0_x1y2a3b4_text",
		"p_x1y2a3b4_text",
		"pabc_x1y2a3b4_text",
		"p-1_x1y2a3b4_text",
		"p0_y2a3b4x1_text",
		"p0_x1y2b4a3_text",
		"p0_xoney2a3b4_text",
		"p0_x1y2a3bfour_text",
		"p0__text",
	}
	for _, key := range keys {
		if _, err := Decode(key); err == nil {
			t.Fatalf("expected error for %q", key)
		} else if !errors.Is(err, ErrMalformedKey) {
			t.Fatalf("error for %q does not wrap ErrMalformedKey: %v", key, err)
		}
	}
}

func TestDecode_TextKeepsUnderscores(t *testing.T) {
	got, err := Decode("p0_x1y2a3b4_a_b_c")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "a_b_c" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestEscape_Order(t *testing.T) {
	// Backslash must be escaped before the control characters, otherwise
	// the inserted backslashes would be escaped a second time.
	if got := Escape("\\n"); got != `\\n` {
		t.Fatalf("escape(backslash n) = %q", got)
	}
	if got := Escape("a\nb"); got != `a\nb` {
		t.Fatalf("escape(newline) = %q", got)
	}
}

func TestUnescape_RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"a\\b\"c\td",
		"\\",
		"\\\\",
		"\\n",
		"line1\nline2",
		"cr\rtab\t'quoted'",
		`already\looks\escaped`,
		"trailing backslash\\",
	}
	for _, s := range cases {
		if got := Unescape(Escape(s)); got != s {
			t.Fatalf("unescape(escape(%q)) = %q", s, got)
		}
	}
}

func TestUnescape_UnknownSequencePreserved(t *testing.T) {
	// A backslash before an unrecognized character is not an escape
	// sequence and passes through untouched.
	if got := Unescape(`a\qb`); got != `a\qb` {
		t.Fatalf("unescape = %q", got)
	}
}
