// Package version implements the VersionSpec sum type used throughout
// railyard to describe what a user asked for (an exact version, a semver
// range, a distribution tag like "latest" or "lts", or the bare keyword
// "latest") as distinct from what the resolver decides it means.
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind discriminates the branches of VersionSpec.
type Kind int

const (
	// KindExact pins one concrete version, e.g. "20.11.0".
	KindExact Kind = iota
	// KindRange is a semver range/constraint, e.g. "^20.0.0" or ">=18 <21".
	KindRange
	// KindTag is a named distribution tag, e.g. "lts", "next". The word
	// "latest" never parses as a KindTag.
	KindTag
	// KindLatest is the bare keyword "latest": the newest Node index entry
	// for node, the registry's "latest" dist-tag for other tools.
	// Distinguished from KindTag because a tool's "latest" hook applies
	// only to this kind.
	KindLatest
)

// Spec is the parsed form of a version string a user supplied, e.g. via
// `railyard pin node@<spec>` or a manifest's pinned platform block.
type Spec struct {
	Kind       Kind
	Raw        string
	Exact      *semver.Version
	Constraint *semver.Constraints
	Tag        string
}

// Parse classifies a raw version string into a Spec.
//
// Classification order: the literal keyword "latest"; then a bare or partial
// numeric token such as "6" or "6.19" (no patch component), which is treated
// as a caret range over the given components rather than an exact version —
// matching how `node@6` is understood as "the newest 6.x" rather than the
// literal version "6"; then anything that parses as an exact semver version;
// then anything that parses as a semver constraint/range; anything else is
// treated as a tag name (e.g. "lts", a dist-tag like "next", or a custom tag
// a hook resolves itself).
func Parse(raw string) (Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Spec{}, fmt.Errorf("version spec must not be empty")
	}

	if trimmed == "latest" {
		return Spec{Kind: KindLatest, Raw: trimmed}, nil
	}

	if partialVersionPattern.MatchString(trimmed) {
		if c, err := semver.NewConstraint("^" + trimmed); err == nil {
			return Spec{Kind: KindRange, Raw: trimmed, Constraint: c}, nil
		}
	}

	if v, err := semver.NewVersion(trimmed); err == nil {
		return Spec{Kind: KindExact, Raw: trimmed, Exact: v}, nil
	}

	if isLikelyRange(trimmed) {
		if c, err := semver.NewConstraint(trimmed); err == nil {
			return Spec{Kind: KindRange, Raw: trimmed, Constraint: c}, nil
		}
	}

	return Spec{Kind: KindTag, Raw: trimmed, Tag: trimmed}, nil
}

// partialVersionPattern matches a bare major ("6") or major.minor ("6.19")
// token with no patch component, the form npm/volta-style tools treat as a
// range over the missing components rather than an exact version.
var partialVersionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// isLikelyRange reports whether raw contains characters that only appear in
// semver range syntax, so that plain tag names like "lts" or "rc" are never
// misclassified as malformed ranges.
func isLikelyRange(raw string) bool {
	return strings.ContainsAny(raw, "^~<>=* x") || strings.Contains(raw, ".x") || strings.Contains(raw, "||")
}

// Satisfies reports whether v satisfies a range spec. Only valid for
// Kind == KindRange.
func (s Spec) Satisfies(v *semver.Version) bool {
	if s.Kind != KindRange || s.Constraint == nil {
		return false
	}
	return s.Constraint.Check(v)
}

// String renders the spec back to its original textual form.
func (s Spec) String() string {
	return s.Raw
}

// HighestMatching returns the highest version in candidates that satisfies
// a range spec, or nil if none match. Pre-release versions are excluded
// unless the constraint itself references a pre-release, which is how
// semver.Constraints.Check treats them.
func HighestMatching(s Spec, candidates []*semver.Version) *semver.Version {
	if s.Kind != KindRange || s.Constraint == nil {
		return nil
	}
	var best *semver.Version
	for _, v := range candidates {
		if !s.Constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// Highest returns the highest non-prerelease version among candidates.
func Highest(candidates []*semver.Version) *semver.Version {
	var best *semver.Version
	for _, v := range candidates {
		if v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// Less reports whether a < b.
func Less(a, b *semver.Version) bool {
	return a.LessThan(b)
}
