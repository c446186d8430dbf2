// Package mapping persists the human-facing side files: the field mapping
// (field key -> escaped run text, written in extraction order) and the alias
// overlay that gives keys stable human names. Both are YAML documents stored
// next to the document they describe.
package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pdffield/extract"
	"pdffield/fieldkey"
)

// AliasSuffix is appended to the document's base name to locate its alias
// overlay, e.g. contract.pdf -> contract.alias.yaml.
const AliasSuffix = ".alias.yaml"

// Write stores the extracted runs as an ordered key/value mapping. Keys and
// values are double-quoted; values carry the escaped run text so the file
// survives editors that normalize control characters.
func Write(path string, runs []extract.Run) error {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, run := range runs {
		root.Content = append(root.Content,
			scalar(run.Key),
			scalar(fieldkey.Escape(run.Text)),
		)
	}
	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping %q: %w", path, err)
	}
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: value,
	}
}

// Load reads a mapping file into a replacement set. Entries with null values
// are dropped; values stay escaped (the matcher unescapes them).
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %q: %w", path, err)
	}
	var raw map[string]*string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse mapping %q: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		out[key] = *value
	}
	return out, nil
}

// AliasPath returns the alias overlay path for a document path.
func AliasPath(docPath string) string {
	ext := filepath.Ext(docPath)
	return strings.TrimSuffix(docPath, ext) + AliasSuffix
}

// LoadAliases reads the overlay next to docPath and returns alias -> field
// key. The file itself maps field key -> alias; the mapping is reversed here
// because callers resolve aliases, not keys. A missing overlay is not an
// error: it yields an empty map.
func LoadAliases(docPath string) (map[string]string, error) {
	data, err := os.ReadFile(AliasPath(docPath))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read alias overlay: %w", err)
	}
	var keyToAlias map[string]string
	if err := yaml.Unmarshal(data, &keyToAlias); err != nil {
		return nil, fmt.Errorf("parse alias overlay: %w", err)
	}
	aliasToKey := make(map[string]string, len(keyToAlias))
	for key, alias := range keyToAlias {
		aliasToKey[alias] = key
	}
	return aliasToKey, nil
}

// Reverse flips an alias map, yielding field key -> alias.
func Reverse(aliasToKey map[string]string) map[string]string {
	out := make(map[string]string, len(aliasToKey))
	for alias, key := range aliasToKey {
		out[key] = alias
	}
	return out
}

// Resolve maps a caller-supplied field set, whose keys may be aliases or raw
// field keys, onto field keys. Names without an alias entry pass through
// unchanged; they are assumed to be field keys already.
func Resolve(fields map[string]string, aliasToKey map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if key, ok := aliasToKey[name]; ok {
			out[key] = value
			continue
		}
		out[name] = value
	}
	return out
}
