// Package mcpserver exposes the template engine as Model Context Protocol
// tools over stdio: list_pdf_fields enumerates a document's template fields
// with their aliases, set_pdf_fields fills them in. One edit session is
// opened per call; callers are responsible for not racing tools against the
// same document path.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pdffield/editor"
	"pdffield/engine"
	"pdffield/extract"
	"pdffield/fieldkey"
	"pdffield/mapping"
	"pdffield/observability"
)

// Version is reported to MCP clients during initialization.
const Version = "0.2.0"

// Server wires the editing engine into MCP tools.
type Server struct {
	eng engine.Engine
	log observability.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger routes server diagnostics to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New returns a Server backed by eng.
func New(eng engine.Engine, opts ...Option) *Server {
	s := &Server{eng: eng, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves the tools on stdio until the context is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pdffield", Version: Version}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_pdf_fields",
		Description: "List the template fields of a PDF with their aliases and current values. Fields are the runs marked in red, ordered by position.",
	}, s.listFields)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_pdf_fields",
		Description: "Set template field values in a PDF. Field names may be aliases from the document's alias overlay or raw field keys.",
	}, s.setFields)
	return srv
}

type listFieldsInput struct {
	Path string `json:"pdf_path" jsonschema:"path of the PDF file to analyze"`
}

type setFieldsInput struct {
	Path   string            `json:"pdf_path" jsonschema:"path of the PDF file to edit"`
	Fields map[string]string `json:"fields" jsonschema:"field name to replacement value pairs"`
}

func (s *Server) listFields(ctx context.Context, req *mcp.CallToolRequest, in listFieldsInput) (*mcp.CallToolResult, any, error) {
	if err := validatePath(in.Path); err != nil {
		return nil, nil, err
	}
	s.log.Info("listing fields", observability.String("path", in.Path))

	aliasToKey, err := mapping.LoadAliases(in.Path)
	if err != nil {
		return nil, nil, err
	}
	keyToAlias := mapping.Reverse(aliasToKey)

	session, err := editor.Open(s.eng, in.Path, editor.WithLogger(s.log))
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	fields, err := session.FindTemplates(extract.Options{
		Color:          extract.ColorRed,
		SortByPosition: true,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(fields) == 0 {
		return textResult("No template fields found. Template fields must be marked in red."), nil, nil
	}

	var b strings.Builder
	for _, field := range fields {
		name := field.Key
		if alias, ok := keyToAlias[field.Key]; ok {
			name = alias
		}
		fmt.Fprintf(&b, "%s: %q\n", name, field.Text)
	}
	s.log.Info("fields listed", observability.Int("count", len(fields)))
	return textResult(b.String()), nil, nil
}

func (s *Server) setFields(ctx context.Context, req *mcp.CallToolRequest, in setFieldsInput) (*mcp.CallToolResult, any, error) {
	if err := validatePath(in.Path); err != nil {
		return nil, nil, err
	}
	if len(in.Fields) == 0 {
		return nil, nil, fmt.Errorf("fields must be a non-empty mapping")
	}
	s.log.Info("setting fields",
		observability.String("path", in.Path),
		observability.Int("count", len(in.Fields)))

	aliasToKey, err := mapping.LoadAliases(in.Path)
	if err != nil {
		return nil, nil, err
	}
	replacements := mapping.Resolve(escapeValues(in.Fields), aliasToKey)

	session, err := editor.Open(s.eng, in.Path, editor.WithLogger(s.log))
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	report, err := session.ReplaceTemplates(replacements, engine.RGB{})
	if err != nil {
		return nil, nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Updated %d of %d fields in %s\n", report.Applied, report.Requested, in.Path)
	if len(report.Skipped) > 0 {
		var skipped []string
		for _, sk := range report.Skipped {
			skipped = append(skipped, fmt.Sprintf("%s (%s)", displayName(sk.Key, aliasToKey), sk.Reason))
		}
		sort.Strings(skipped)
		fmt.Fprintf(&b, "Skipped: %s\n", strings.Join(skipped, ", "))
	}
	return textResult(b.String()), nil, nil
}

// escapeValues applies the key codec's escaping to incoming values, mirroring
// what a mapping file on disk would carry; the matcher unescapes them again.
func escapeValues(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		out[name] = fieldkey.Escape(value)
	}
	return out
}

func displayName(key string, aliasToKey map[string]string) string {
	for alias, k := range aliasToKey {
		if k == key {
			return alias
		}
	}
	return key
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("pdf_path must be a non-empty string")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("document not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("pdf_path is a directory: %s", path)
	}
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
