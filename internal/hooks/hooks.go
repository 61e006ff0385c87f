// Package hooks implements the hierarchical hook configuration system:
// per-tool overrides for distro/index/latest resolution, merged from
// project, workspace (via an extends chain), and user-global hook files.
// Grounded on the precedence and field-shape rules in the spec's §4.3 and
// on the teacher's internal/installer/command.Executor for the "bin"
// resolver's subprocess shape.
package hooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/railyard/railyard/internal/apperrors"
)

// Field is one resolver definition: exactly one of Template, Prefix, or Bin
// is set. UnmarshalJSON enforces the XOR constraint from §4.3.
type Field struct {
	Template string
	Prefix   string
	Bin      string
}

type fieldJSON struct {
	Template string `json:"template,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Bin      string `json:"bin,omitempty"`
}

// UnmarshalJSON decodes a hook field and validates the XOR constraint.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	set := 0
	if raw.Template != "" {
		set++
	}
	if raw.Prefix != "" {
		set++
	}
	if raw.Bin != "" {
		set++
	}

	if set > 1 {
		return apperrors.HookMultipleFieldsSpecified("")
	}
	if set == 0 {
		return apperrors.HookNoFieldsSpecified("")
	}

	f.Template = raw.Template
	f.Prefix = raw.Prefix
	f.Bin = raw.Bin
	return nil
}

// MarshalJSON encodes the field back to its single-key JSON shape.
func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{Template: f.Template, Prefix: f.Prefix, Bin: f.Bin})
}

// ToolHooks are the three distro/index/latest resolver slots for one tool.
type ToolHooks struct {
	Distro *Field `json:"distro,omitempty"`
	Index  *Field `json:"index,omitempty"`
	Latest *Field `json:"latest,omitempty"`
}

// PublishTarget is the optional terminal sink for event-log payloads.
type PublishTarget struct {
	URL string `json:"url,omitempty"`
	Bin string `json:"bin,omitempty"`
}

// Config is one hooks.json document: per-tool resolver overrides plus an
// optional publish target.
type Config struct {
	Tools   map[string]*ToolHooks `json:"-"`
	Publish *PublishTarget        `json:"publish,omitempty"`
}

// UnmarshalJSON decodes the whole document, treating "publish" specially
// and every other top-level key as a tool name.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Tools = make(map[string]*ToolHooks)
	for key, value := range raw {
		if key == "publish" {
			var p PublishTarget
			if err := json.Unmarshal(value, &p); err != nil {
				return fmt.Errorf("invalid publish target: %w", err)
			}
			c.Publish = &p
			continue
		}

		var th ToolHooks
		if err := json.Unmarshal(value, &th); err != nil {
			return fmt.Errorf("invalid hooks for %q: %w", key, err)
		}
		c.Tools[key] = &th
	}
	return nil
}

// loadFile reads and parses a hooks file at path. A missing file is not an
// error (§7 recovery policy: "a missing hooks file is not" fatal); a
// present-but-unreadable-or-malformed file is.
func loadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrapf(err, apperrors.CategoryFilesystem, "failed to read hooks file %s", path)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CategoryConfiguration, "failed to parse hooks file %s", path)
	}
	return &cfg, nil
}

// Merged is the flattened view produced by merging project, workspace
// chain, and user hooks in precedence order.
type Merged struct {
	Tools   map[string]*ToolHooks
	Publish *PublishTarget
}

// Load merges hook configuration sources in highest-precedence-first order:
// the project hooks file, then each workspace hooks file reached by
// following "extends" from the project manifest's pinned block
// (cycle-detected), then the user-global hooks file. For each tool field,
// the first source that defines it wins.
//
// workspaceChain is the already-resolved list of workspace hooks files (see
// ResolveExtendsChain); an empty path in any position is skipped.
func Load(projectHooksPath string, workspaceChain []string, userHooksPath string) (*Merged, error) {
	sources := make([]string, 0, 2+len(workspaceChain))
	sources = append(sources, projectHooksPath)
	sources = append(sources, workspaceChain...)
	sources = append(sources, userHooksPath)

	merged := &Merged{Tools: make(map[string]*ToolHooks)}

	for _, path := range sources {
		if path == "" {
			continue
		}
		cfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			continue
		}

		for tool, th := range cfg.Tools {
			existing, ok := merged.Tools[tool]
			if !ok {
				existing = &ToolHooks{}
				merged.Tools[tool] = existing
			}
			if existing.Distro == nil {
				existing.Distro = th.Distro
			}
			if existing.Index == nil {
				existing.Index = th.Index
			}
			if existing.Latest == nil {
				existing.Latest = th.Latest
			}
		}

		if merged.Publish == nil && cfg.Publish != nil {
			merged.Publish = cfg.Publish
		}
	}

	return merged, nil
}

// ResolveExtendsChain follows a manifest's pinned "extends" path
// transitively to build the ordered list of workspace hooks file paths,
// detecting cycles and failing with HookLoadError if one is found.
//
// readExtends(path) returns the extends target declared by the manifest/
// hooks-adjacent file at path, or "" if none.
func ResolveExtendsChain(start string, readExtends func(path string) (string, error)) ([]string, error) {
	var chain []string
	visited := map[string]bool{}

	current := start
	for current != "" {
		abs, err := filepath.Abs(current)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to resolve extends path", err)
		}
		if visited[abs] {
			return nil, apperrors.HookLoadError(fmt.Sprintf("cycle detected at %s", abs))
		}
		visited[abs] = true
		chain = append(chain, abs)

		next, err := readExtends(abs)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to read extends chain", err)
		}
		current = next
	}

	return chain, nil
}

// Resolve runs a Field's resolver kind to produce a URL or version string
// for the given version argument. Neither Resolve nor ResolveBin takes a
// context: a bin resolver's command runs to completion and is not cancelled
// by an interrupt context.
//
// For the prefix kind, defaultPrefix is the default filename for the
// tool/version being resolved (e.g. "node-v20.11.0-linux-x64.tar.gz"); it is
// appended to the configured prefix so the hook only needs to override the
// host/path, not repeat the archive's filename. Callers that have no
// per-version filename to append (the index/latest hooks, which point at a
// single shared document rather than a per-version archive) pass "" and get
// the prefix back verbatim.
func (f *Field) Resolve(version, defaultPrefix string) (string, error) {
	switch {
	case f.Template != "":
		return strings.ReplaceAll(f.Template, "{{version}}", version), nil
	case f.Prefix != "":
		if defaultPrefix == "" {
			return f.Prefix, nil
		}
		return strings.TrimRight(f.Prefix, "/") + "/" + defaultPrefix, nil
	case f.Bin != "":
		return ResolveBin(f.Bin, version)
	default:
		return "", fmt.Errorf("hook field has no resolver configured")
	}
}

// ResolveBin runs an external command with version as its sole argument,
// inheriting the current environment, and returns its trimmed stdout.
// Shaped after the teacher's command.Executor.ExecuteCapture.
func ResolveBin(command, version string) (string, error) {
	cmd := exec.Command(command, version)
	cmd.Env = os.Environ()

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CategoryExecution, "hook command %q failed", command)
	}

	return strings.TrimSpace(stdout.String()), nil
}
