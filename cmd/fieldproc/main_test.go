package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdffield/engine"
	"pdffield/mapping"
	"pdffield/memdoc"
)

func TestGenerateReplaceClear(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.json")
	mappingPath := filepath.Join(dir, "mapping.yaml")

	doc := memdoc.NewDocument(1)
	runs := []engine.TextRun{
		{Text: "{{name}}", BBox: engine.Rect{X1: 10, Y1: 10, X2: 60, Y2: 20}, FontFamily: "Helvetica", FontSize: 12, Color: 0xCC1A1A},
		{Text: "{{orphan}}", BBox: engine.Rect{X1: 10, Y1: 40, X2: 110, Y2: 50}, FontFamily: "Helvetica", FontSize: 12, Color: 0xCC1A1A},
	}
	for _, run := range runs {
		if err := doc.AddRun(0, run); err != nil {
			t.Fatalf("add run: %v", err)
		}
	}
	if err := doc.Save(docPath); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	out := run(t, "generate", docPath, "--output", mappingPath, "--filter-color", "red")
	if !strings.Contains(out, "2 fields") {
		t.Fatalf("unexpected generate output: %s", out)
	}

	// Fill in one field, leave the other as its placeholder.
	loaded, err := mapping.Load(mappingPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	replacements := map[string]string{}
	for key := range loaded {
		if strings.Contains(key, "{{name}}") {
			replacements[key] = "Alice"
		}
	}
	if len(replacements) != 1 {
		t.Fatalf("fixture key not found in %v", loaded)
	}
	writeMapping(t, mappingPath, replacements)

	out = run(t, "replace", docPath, "--mapping", mappingPath)
	if !strings.Contains(out, "applied 1 of 1") {
		t.Fatalf("unexpected replace output: %s", out)
	}

	out = run(t, "clear", docPath)
	if !strings.Contains(out, "removed 1 placeholder") {
		t.Fatalf("unexpected clear output: %s", out)
	}

	reopened, err := memdoc.New().Open(docPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if occs, _ := reopened.FindText(0, "Alice"); len(occs) != 1 {
		t.Fatalf("replacement lost: %+v", occs)
	}
	if occs, _ := reopened.FindText(0, "{{"); len(occs) != 0 {
		t.Fatalf("placeholders remain: %+v", occs)
	}
}

func TestReplace_MissingMappingFile(t *testing.T) {
	docPath := filepath.Join(t.TempDir(), "doc.json")
	if err := memdoc.NewDocument(1).Save(docPath); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"replace", docPath, "--mapping", filepath.Join(t.TempDir(), "absent.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing mapping file")
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("fieldproc %v: %v", args, err)
	}
	return out.String()
}

func writeMapping(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var b strings.Builder
	for key, value := range entries {
		b.WriteString(`"` + key + `": "` + value + `"` + "\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
}
