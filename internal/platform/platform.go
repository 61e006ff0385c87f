// Package platform implements the PlatformSpec/Image pair and the §4.4
// checkout algorithm: ensure node (and yarn, if pinned) are present,
// resolve the effective npm version, and build an Image whose Path()
// prefixes the correct binary directories onto PATH. Grounded on
// volta-core's platform/mod.rs (Image.path, System.path) for PATH
// construction order, and on the teacher's internal/env.Generate for the
// dedup/shell-path conventions carried into Path().
package platform

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/layout"
)

// Spec is a platform pin: a required node runtime version and optional
// npm/yarn versions.
type Spec struct {
	Node string `json:"node"`
	Npm  string `json:"npm,omitempty"`
	Yarn string `json:"yarn,omitempty"`
}

// UnmarshalJSON supports both the nested §6 platform-file shape
// ({"node": {"runtime": ..., "npm": ...}, "yarn": ...}) and the simpler
// pinned-block shape used in manifests ({"node": "...", "npm": "...", "yarn": "..."}).
func (s *Spec) UnmarshalJSON(data []byte) error {
	var flat struct {
		Node json.RawMessage `json:"node"`
		Yarn string          `json:"yarn,omitempty"`
	}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	s.Yarn = flat.Yarn

	if len(flat.Node) == 0 {
		return nil
	}

	var nodeString string
	if err := json.Unmarshal(flat.Node, &nodeString); err == nil {
		s.Node = nodeString
		var withNpm struct {
			Npm string `json:"npm,omitempty"`
		}
		_ = json.Unmarshal(data, &withNpm)
		s.Npm = withNpm.Npm
		return nil
	}

	var nested struct {
		Runtime string `json:"runtime"`
		Npm     string `json:"npm,omitempty"`
	}
	if err := json.Unmarshal(flat.Node, &nested); err != nil {
		return err
	}
	s.Node = nested.Runtime
	s.Npm = nested.Npm
	return nil
}

// MarshalJSON encodes the §6 platform-file nested shape:
// {"node": {"runtime": ..., "npm": ...}, "yarn": ...}.
func (s Spec) MarshalJSON() ([]byte, error) {
	type nodeField struct {
		Runtime string `json:"runtime"`
		Npm     string `json:"npm,omitempty"`
	}
	out := struct {
		Node *nodeField `json:"node,omitempty"`
		Yarn string     `json:"yarn,omitempty"`
	}{Yarn: s.Yarn}
	if s.Node != "" {
		out.Node = &nodeField{Runtime: s.Node, Npm: s.Npm}
	}
	return json.Marshal(out)
}

// NodeMetadataReader answers "what npm version ships bundled with this
// node image", read from the node image's own metadata after install.
type NodeMetadataReader func(nodeVersion string) (bundledNpm string, err error)

// EnsureFunc materializes a tool version on disk, returning its image
// directory. It is the seam checkout() uses to call into the resolver +
// distribution engine without this package depending on either directly.
type EnsureFunc func(ctx context.Context, tool, version string) (imageDir string, err error)

// Image is the materialized, checked-out form of a PlatformSpec: every
// referenced version is guaranteed to have an image directory on disk.
type Image struct {
	NodeVersion string
	NpmVersion  string
	NodeBinDir  string

	YarnVersion string
	YarnBinDir  string // empty when Yarn is unset
}

// Checkout ensures the node runtime (and yarn, if set) referenced by spec
// are present, resolves the effective npm version, and returns an Image.
// Steps 1-3 of §4.4; Path() (step 4) is a method on the returned Image.
func Checkout(ctx context.Context, spec Spec, ensure EnsureFunc, bundledNpm NodeMetadataReader) (Image, error) {
	nodeDir, err := ensure(ctx, "node", spec.Node)
	if err != nil {
		return Image{}, err
	}

	effectiveNpm := spec.Npm
	if effectiveNpm == "" {
		effectiveNpm, err = bundledNpm(spec.Node)
		if err != nil {
			return Image{}, apperrors.Wrap(apperrors.CategoryInternal, "failed to read bundled npm version", err)
		}
	}

	img := Image{
		NodeVersion: spec.Node,
		NpmVersion:  effectiveNpm,
		NodeBinDir:  filepath.Join(nodeDir, "bin"),
	}

	if spec.Yarn != "" {
		yarnDir, err := ensure(ctx, "yarn", spec.Yarn)
		if err != nil {
			return Image{}, err
		}
		img.YarnVersion = spec.Yarn
		img.YarnBinDir = filepath.Join(yarnDir, "bin")
	}

	return img, nil
}

// Path builds the augmented PATH for this image: the shim directory is
// stripped from the inherited PATH, then the node bin dir is prefixed,
// then (if set) the yarn bin dir immediately after. Order is significant:
// node always comes first (§4.4 step 4, §8 invariant 5).
func (img Image) Path(currentPath string, l *layout.Layout) string {
	dirs := []string{img.NodeBinDir}
	if img.YarnBinDir != "" {
		dirs = append(dirs, img.YarnBinDir)
	}

	shimDir := l.ShimDir()
	for _, existing := range splitPath(currentPath) {
		if existing == shimDir {
			continue
		}
		dirs = append(dirs, existing)
	}

	return strings.Join(dedup(dirs), string(os.PathListSeparator))
}

// SystemPath removes only the shim directory from currentPath, used when
// no platform is checked out (no node/yarn bin dirs to prefix).
func SystemPath(currentPath string, l *layout.Layout) string {
	shimDir := l.ShimDir()
	var dirs []string
	for _, existing := range splitPath(currentPath) {
		if existing != shimDir {
			dirs = append(dirs, existing)
		}
	}
	return strings.Join(dedup(dirs), string(os.PathListSeparator))
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, string(os.PathListSeparator))
}

func dedup(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
