// Package editor owns the edit session for one document: a handle acquired
// from the engine, operated on strictly sequentially, and released on every
// exit path. A session moves Closed -> Open on acquire, Open -> Saving ->
// Open inside each mutating call (the document is persisted atomically and
// reopened, since a save may renumber run positions), and Open -> Closed on
// release. Serializing concurrent requests against the same document path is
// the caller's responsibility; the session itself never locks.
package editor

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"pdffield/engine"
	"pdffield/extract"
	"pdffield/match"
	"pdffield/observability"
	"pdffield/replace"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("editor: session is closed")

// ErrEmptyReplacements rejects a replacement call with nothing to do.
// Unlike per-item failures, an empty set is a caller bug and aborts the call.
var ErrEmptyReplacements = errors.New("editor: empty replacement set")

// PlaceholderPattern matches the default {{...}} template markers swept by
// RemoveTemplates.
const PlaceholderPattern = `\{\{.*?\}\}`

// Session is an open edit session for a single document. Not safe for
// concurrent use.
type Session struct {
	eng    engine.Engine
	path   string
	doc    engine.Document
	log    observability.Logger
	exec   *replace.Executor
	closed bool
}

// Option configures a session.
type Option func(*Session)

// WithLogger routes session diagnostics to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Open acquires a document handle for path.
func Open(eng engine.Engine, path string, opts ...Option) (*Session, error) {
	s := &Session{
		eng:  eng,
		path: path,
		log:  observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.exec = replace.New(s.log)

	doc, err := eng.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	s.doc = doc
	return s, nil
}

// Path returns the document path the session operates on.
func (s *Session) Path() string { return s.path }

// Close releases the document handle. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.doc.Close()
}

// FindTemplates extracts the document's text runs with their field keys.
// Pure read.
func (s *Session) FindTemplates(opts extract.Options) ([]extract.Run, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return extract.Runs(s.doc, opts)
}

// Templates returns the sorted unique texts of all runs in the document.
func (s *Session) Templates() ([]string, error) {
	runs, err := s.FindTemplates(extract.Options{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(runs))
	var out []string
	for _, run := range runs {
		if _, ok := seen[run.Text]; ok {
			continue
		}
		seen[run.Text] = struct{}{}
		out = append(out, run.Text)
	}
	sort.Strings(out)
	return out, nil
}

// ReplaceTemplates applies a field key -> replacement value set and persists
// the document. Per-item failures (malformed keys, fields no longer present,
// insertion fallbacks that run dry) are reported in the returned Report, not
// as errors; only an unusable replacement set or a failed save aborts.
func (s *Session) ReplaceTemplates(replacements map[string]string, textColor engine.RGB) (replace.Report, error) {
	if s.closed {
		return replace.Report{}, ErrClosed
	}
	if len(replacements) == 0 {
		return replace.Report{}, ErrEmptyReplacements
	}

	targets, malformed := match.ParseTargets(replacements)
	report := replace.Report{Requested: len(replacements)}
	for _, key := range malformed {
		report.Skipped = append(report.Skipped, replace.Skipped{Key: key, Reason: "malformed key"})
		s.log.Warn("skipping malformed key", observability.String("key", key))
	}

	runs, err := extract.Runs(s.doc, extract.Options{})
	if err != nil {
		return report, fmt.Errorf("extract runs: %w", err)
	}
	edits := match.Runs(runs, targets)

	matched := make(map[string]struct{}, len(edits))
	for _, edit := range edits {
		matched[edit.Key] = struct{}{}
	}
	for _, target := range targets {
		if _, ok := matched[target.Key]; ok {
			continue
		}
		report.Skipped = append(report.Skipped, replace.Skipped{Key: target.Key, Reason: "no matching run"})
		s.log.Warn("field no longer present", observability.String("key", target.Key))
	}

	applied := s.exec.Apply(s.doc, edits, textColor)
	report.Applied = applied.Applied
	report.Skipped = append(report.Skipped, applied.Skipped...)

	if err := s.persist(); err != nil {
		return report, err
	}
	s.log.Info("replacements applied",
		observability.Int("requested", report.Requested),
		observability.Int("applied", report.Applied),
		observability.Int("skipped", len(report.Skipped)))
	return report, nil
}

// RemoveTemplates redacts every run matching pattern (PlaceholderPattern
// when empty), reinserting non-placeholder remainders, then persists the
// document. Returns the number of runs redacted.
func (s *Session) RemoveTemplates(pattern string) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if pattern == "" {
		pattern = PlaceholderPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}

	count, err := s.exec.RemoveAll(s.doc, re)
	if err != nil {
		return count, err
	}
	if err := s.persist(); err != nil {
		return count, err
	}
	s.log.Info("templates removed", observability.Int("count", count))
	return count, nil
}

// persist saves the document and reopens the handle on the new file. Run
// positions may be renumbered by a save, so pre-save run data must not be
// reused afterwards.
func (s *Session) persist() error {
	if err := s.doc.Save(s.path); err != nil {
		return fmt.Errorf("save %q: %w", s.path, err)
	}
	if err := s.doc.Close(); err != nil {
		return fmt.Errorf("close before reopen: %w", err)
	}
	doc, err := s.eng.Open(s.path)
	if err != nil {
		s.closed = true
		return fmt.Errorf("reopen %q: %w", s.path, err)
	}
	s.doc = doc
	return nil
}
