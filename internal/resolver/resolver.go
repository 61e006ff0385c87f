// Package resolver implements the §4.1 resolve(tool, spec) → Version
// algorithm: exact versions pass through; latest/tag and semver-range
// specs consult the Node index or an npm/Yarn registry document, subject
// to hook overrides, and caching in internal/registryindex.
package resolver

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/hooks"
	"github.com/railyard/railyard/internal/registryindex"
	"github.com/railyard/railyard/internal/version"
)

// Kind discriminates which index shape a tool resolves against.
type Kind int

const (
	ToolNode Kind = iota
	ToolNpm
	ToolYarn
	ToolPackage
)

// Tool identifies what is being resolved: one of the three built-in tools,
// or an arbitrary installable package by name.
type Tool struct {
	Kind Kind
	Name string
}

// HookKey returns the key this tool's hooks are filed under in a merged
// hooks.Config: the tool's own name for node/npm/yarn, or the package name
// for ToolPackage.
func (t Tool) HookKey() string {
	switch t.Kind {
	case ToolNode:
		return "node"
	case ToolNpm:
		return "npm"
	case ToolYarn:
		return "yarn"
	default:
		return t.Name
	}
}

// Resolver ties together the hook chain, the cached indexes, and the
// current platform's distro identifier (e.g. "linux-x64").
type Resolver struct {
	Fetcher *registryindex.Fetcher
	Hooks   *hooks.Merged
	Distro  string
}

// New builds a Resolver.
func New(fetcher *registryindex.Fetcher, merged *hooks.Merged, distro string) *Resolver {
	return &Resolver{Fetcher: fetcher, Hooks: merged, Distro: distro}
}

func (r *Resolver) toolHooks(tool Tool) *hooks.ToolHooks {
	if r.Hooks == nil {
		return nil
	}
	return r.Hooks.Tools[tool.HookKey()]
}

// isURL distinguishes a hook's raw-version output from its URL output,
// per §4.1: "use it ... to produce a URL or raw version string".
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Resolve implements the full §4.1 algorithm for one (tool, spec) pair.
func (r *Resolver) Resolve(ctx context.Context, tool Tool, spec version.Spec) (string, error) {
	switch spec.Kind {
	case version.KindExact:
		return spec.Raw, nil
	case version.KindLatest:
		return r.resolveTag(ctx, tool, "latest")
	case version.KindTag:
		return r.resolveTag(ctx, tool, spec.Tag)
	case version.KindRange:
		return r.resolveRange(ctx, tool, spec)
	default:
		return "", apperrors.Newf(apperrors.CategoryVersion, "unrecognized version spec %q", spec.Raw)
	}
}

func (r *Resolver) resolveTag(ctx context.Context, tool Tool, tag string) (string, error) {
	th := r.toolHooks(tool)

	if tag == "latest" && th != nil && th.Latest != nil {
		out, err := th.Latest.Resolve(tag, "")
		if err != nil {
			return "", apperrors.Wrap(apperrors.CategoryConfiguration, "latest hook failed", err)
		}
		if !isURL(out) {
			return out, nil
		}
		return r.resolveTagFromIndex(ctx, tool, tag, out)
	}

	return r.resolveTagFromIndex(ctx, tool, tag, r.indexOverrideURL(th))
}

func (r *Resolver) indexOverrideURL(th *hooks.ToolHooks) string {
	if th == nil || th.Index == nil {
		return ""
	}
	out, err := th.Index.Resolve("", "")
	if err != nil {
		return ""
	}
	return out
}

func (r *Resolver) resolveTagFromIndex(ctx context.Context, tool Tool, tag, overrideURL string) (string, error) {
	if tool.Kind == ToolNode {
		idx, err := r.Fetcher.FetchNodeIndex(ctx, overrideURL)
		if err != nil {
			return "", err
		}

		var entry registryindex.NodeEntry
		var ok bool
		switch tag {
		case "latest":
			entry, ok = idx.Latest(r.Distro)
		case "lts":
			entry, ok = idx.LTS(r.Distro)
		default:
			ok = false
		}
		if !ok {
			return "", apperrors.NoVersionMatching(tool.HookKey(), tag)
		}
		return strings.TrimPrefix(entry.Version, "v"), nil
	}

	doc, err := r.Fetcher.FetchRegistryDocument(ctx, tool.HookKey(), overrideURL)
	if err != nil {
		return "", err
	}
	v, ok := doc.DistTags[tag]
	if !ok {
		return "", apperrors.NoVersionMatching(tool.HookKey(), tag)
	}
	return v, nil
}

func (r *Resolver) resolveRange(ctx context.Context, tool Tool, spec version.Spec) (string, error) {
	th := r.toolHooks(tool)
	overrideURL := r.indexOverrideURL(th)

	if tool.Kind == ToolNode {
		idx, err := r.Fetcher.FetchNodeIndex(ctx, overrideURL)
		if err != nil {
			return "", err
		}

		var candidates []*semver.Version
		for _, entry := range idx {
			if !entry.HasDistro(r.Distro) {
				continue
			}
			v, err := semver.NewVersion(strings.TrimPrefix(entry.Version, "v"))
			if err != nil {
				continue
			}
			candidates = append(candidates, v)
		}

		best := version.HighestMatching(spec, candidates)
		if best == nil {
			return "", apperrors.NoVersionMatching(tool.HookKey(), spec.Raw)
		}
		return best.String(), nil
	}

	doc, err := r.Fetcher.FetchRegistryDocument(ctx, tool.HookKey(), overrideURL)
	if err != nil {
		return "", err
	}

	var candidates []*semver.Version
	for raw := range doc.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		candidates = append(candidates, v)
	}

	best := version.HighestMatching(spec, candidates)
	if best == nil {
		return "", apperrors.NoVersionMatching(tool.HookKey(), spec.Raw)
	}
	return best.String(), nil
}
