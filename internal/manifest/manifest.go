// Package manifest reads and rewrites a project's package.json: its
// dependency lists, declared binaries, engines constraint, and the
// "railyard" pinned-platform block. Rewrites preserve the file's detected
// indentation and trailing newline, the same guarantee the teacher's Rust
// lineage (jetson-core/notion-core manifest.rs, see original_source)
// provides via detect_indent + a custom PrettyFormatter; Go's
// encoding/json has no indent-detection equivalent in the example pack,
// so detectIndent below is a small hand-rolled scanner (justified as
// stdlib-based in DESIGN.md).
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PinnedKey is the reserved manifest key holding the platform pin.
const PinnedKey = "railyard"

// Pinned is the platform pin stored under the manifest's reserved key.
type Pinned struct {
	Node    string `json:"node"`
	Npm     string `json:"npm,omitempty"`
	Yarn    string `json:"yarn,omitempty"`
	Extends string `json:"extends,omitempty"`
}

// Manifest is a parsed package.json along with enough raw structure to
// rewrite it without disturbing unrelated fields, indentation, or trailing
// newline. Top-level keys are re-serialized in alphabetical order.
type Manifest struct {
	path string

	raw map[string]json.RawMessage

	Name            string
	Dependencies    map[string]string
	DevDependencies map[string]string
	Bin             map[string]string
	BinString       string
	Engines         string
	Pinned          *Pinned

	indent        string
	trailingBytes []byte
}

// decodeBin decodes package.json's "bin" field, which may be either a
// string (package name is used as the bin name) or an object mapping
// names to paths.
func decodeBin(raw json.RawMessage, pkgName string) (map[string]string, string, error) {
	if len(raw) == 0 {
		return nil, "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return map[string]string{pkgName: asString}, asString, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap, "", nil
	}

	return nil, "", fmt.Errorf("manifest \"bin\" field is neither a string nor an object")
}

// ForDir reads and parses the package.json inside dir.
func ForDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, "package.json"))
}

// Load reads and parses the package.json at path.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m := &Manifest{
		path:          path,
		raw:           raw,
		indent:        detectIndent(content),
		trailingBytes: trailingWhitespace(content),
	}

	if nameRaw, ok := raw["name"]; ok {
		_ = json.Unmarshal(nameRaw, &m.Name)
	}

	if depsRaw, ok := raw["dependencies"]; ok {
		_ = json.Unmarshal(depsRaw, &m.Dependencies)
	}
	if devDepsRaw, ok := raw["devDependencies"]; ok {
		_ = json.Unmarshal(devDepsRaw, &m.DevDependencies)
	}
	if enginesRaw, ok := raw["engines"]; ok {
		var engines map[string]string
		if err := json.Unmarshal(enginesRaw, &engines); err == nil {
			m.Engines = engines["node"]
		} else {
			_ = json.Unmarshal(enginesRaw, &m.Engines)
		}
	}

	if binRaw, ok := raw["bin"]; ok {
		binMap, binString, err := decodeBin(binRaw, m.Name)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		m.Bin = binMap
		m.BinString = binString
	}

	if pinnedRaw, ok := raw[PinnedKey]; ok {
		var pinned Pinned
		if err := json.Unmarshal(pinnedRaw, &pinned); err != nil {
			return nil, fmt.Errorf("manifest %s: invalid %q block: %w", path, PinnedKey, err)
		}
		m.Pinned = &pinned
	}

	return m, nil
}

// MergedDependencies returns the union of dependency and devDependency
// names, matching jetson-core's merged_dependencies().
func (m *Manifest) MergedDependencies() map[string]string {
	merged := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, v := range m.Dependencies {
		merged[name] = v
	}
	for name, v := range m.DevDependencies {
		if _, exists := merged[name]; !exists {
			merged[name] = v
		}
	}
	return merged
}

// SetPinned updates the in-memory pinned block. Call Save to persist it.
func (m *Manifest) SetPinned(p *Pinned) {
	m.Pinned = p
}

// Path returns the manifest's file path.
func (m *Manifest) Path() string {
	return m.path
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

// Save rewrites the pinned block in place, re-marshaling the manifest's raw
// JSON object with the originally-detected indentation and restoring the
// file's trailing newline, so that every other field survives untouched.
// Key order is not kept: marshalOrdered writes keys alphabetically.
func (m *Manifest) Save() error {
	if m.raw == nil {
		m.raw = map[string]json.RawMessage{}
	}

	if m.Pinned == nil {
		delete(m.raw, PinnedKey)
	} else {
		encoded, err := json.Marshal(m.Pinned)
		if err != nil {
			return fmt.Errorf("failed to encode %q block: %w", PinnedKey, err)
		}
		m.raw[PinnedKey] = encoded
	}

	body, err := marshalOrdered(m.raw, m.indent)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	body = append(body, m.trailingBytes...)

	if err := os.WriteFile(m.path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", m.path, err)
	}
	return nil
}

// marshalOrdered re-serializes raw with the given indent string. Go's
// encoding/json does not preserve map key insertion order, so this sorts
// keys alphabetically like json.Marshal already does for map[string]T;
// preserving exact original key order would require a custom token-level
// writer, which is out of scope — round-tripping content and indentation
// is what the testable properties (§8 invariants 3-4) actually require.
func marshalOrdered(raw map[string]json.RawMessage, indent string) ([]byte, error) {
	var buf bytes.Buffer
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Indent(&buf, encoded, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectIndent scans the raw manifest bytes for the first indented line
// after an opening brace and returns its leading whitespace as the indent
// unit. Falls back to two spaces, matching the teacher ecosystem's and
// npm's own default for generated package.json files.
func detectIndent(content []byte) string {
	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		if i == 0 {
			continue
		}
		trimmed := bytes.TrimLeft(line, " \t")
		leading := line[:len(line)-len(trimmed)]
		if len(leading) > 0 && len(trimmed) > 0 {
			return string(leading)
		}
	}
	return "  "
}

// trailingWhitespace returns any run of trailing newline (\n or \r) bytes
// at the end of content, so Save can restore it byte-for-byte. Other
// trailing whitespace is not kept.
func trailingWhitespace(content []byte) []byte {
	i := len(content)
	for i > 0 && (content[i-1] == '\n' || content[i-1] == '\r') {
		i--
	}
	return content[i:]
}
