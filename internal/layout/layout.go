// Package layout resolves the on-disk root that railyard uses to store
// installed toolchains, package metadata, shims and caches, and builds every
// path derived from that root. It is modeled on the teacher's internal/path
// package but adapted from a single system/user split to railyard's single
// per-user root (RAILYARD_HOME), since there is no system-wide install tier
// in this domain.
package layout

import (
	"os"
	"path/filepath"
	"strings"
)

const envHome = "RAILYARD_HOME"

const defaultHomeSuffix = ".railyard"

// Layout holds the resolved root directory and derives every subordinate
// path from it.
type Layout struct {
	root string
}

// New resolves the railyard root from RAILYARD_HOME, falling back to
// ~/.railyard when unset.
func New() (*Layout, error) {
	if root := os.Getenv(envHome); root != "" {
		expanded, err := Expand(root)
		if err != nil {
			return nil, err
		}
		return &Layout{root: expanded}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Layout{root: filepath.Join(home, defaultHomeSuffix)}, nil
}

// NewWithRoot builds a Layout rooted at an explicit directory, bypassing
// environment resolution. Used by tests.
func NewWithRoot(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the railyard root directory.
func (l *Layout) Root() string {
	return l.root
}

// ShimDir returns "bin/", the directory containing the dispatch shim
// symlinks that are prepended to the user's PATH.
func (l *Layout) ShimDir() string {
	return filepath.Join(l.root, "bin")
}

// BinDir is an alias users' shells add to PATH; it is the same directory as
// ShimDir, named separately because the CLI binary itself (not a per-tool
// shim) also lives here.
func (l *Layout) BinDir() string {
	return l.ShimDir()
}

// CacheDir returns "cache/", holding the Node index cache and its sibling
// expiry file.
func (l *Layout) CacheDir() string {
	return filepath.Join(l.root, "cache")
}

// InventoryDir returns "tools/inventory/<kind>/", holding cached distro
// tarballs and shasum sidecars for one of node, yarn, or packages.
func (l *Layout) InventoryDir(kind string) string {
	return filepath.Join(l.root, "tools", "inventory", kind)
}

// ToolImageDir returns the unpacked install directory for one version of
// a tool with a single version segment, e.g. tools/image/yarn/1.22.19 (node's
// node+npm directory comes from NodeImageDir).
func (l *Layout) ToolImageDir(tool, version string) string {
	return filepath.Join(l.root, "tools", "image", tool, version)
}

// NodeImageDir returns the unpacked install directory for a specific
// node+npm pair, e.g. tools/image/node/20.11.0/10.2.4.
func (l *Layout) NodeImageDir(nodeVersion, npmVersion string) string {
	return filepath.Join(l.root, "tools", "image", "node", nodeVersion, npmVersion)
}

// PackageImageDir returns the install directory for one exact version of an
// installed npm package, e.g. tools/image/packages/typescript/5.4.0.
func (l *Layout) PackageImageDir(name, version string) string {
	return filepath.Join(l.root, "tools", "image", "packages", name, version)
}

// InventoryLockFile returns the path to the advisory lock file guarding
// the distribution engine's fetch-verify-unpack-rename sequence against
// other processes (§3.1, §5).
func (l *Layout) InventoryLockFile() string {
	return filepath.Join(l.root, "tools", "inventory", ".lock")
}

// UserPlatformFile returns "tools/user/platform.json", the user-wide
// default platform pin used outside any project.
func (l *Layout) UserPlatformFile() string {
	return filepath.Join(l.root, "tools", "user", "platform.json")
}

// UserHooksFile returns "hooks.json", the user-global hooks configuration.
func (l *Layout) UserHooksFile() string {
	return filepath.Join(l.root, "hooks.json")
}

// BinConfigFile returns "tools/user/bins/<bin>.json", the record of which
// package owns a given globally installed binary name.
func (l *Layout) BinConfigFile(name string) string {
	return filepath.Join(l.root, "tools", "user", "bins", name+".json")
}

// BinConfigDir returns "tools/user/bins/", the directory holding all
// bin-config records.
func (l *Layout) BinConfigDir() string {
	return filepath.Join(l.root, "tools", "user", "bins")
}

// PackageConfigFile returns "tools/user/packages/<name>.json".
func (l *Layout) PackageConfigFile(name string) string {
	return filepath.Join(l.root, "tools", "user", "packages", name+".json")
}

// PackageConfigDir returns "tools/user/packages/".
func (l *Layout) PackageConfigDir() string {
	return filepath.Join(l.root, "tools", "user", "packages")
}

// LogDir returns "log/", the optional diagnostic log directory.
func (l *Layout) LogDir() string {
	return filepath.Join(l.root, "log")
}

// TmpDir returns the single scratch directory used for staging downloads
// and extractions before an atomic rename into their final image directory.
// Every component that needs a temp root goes through this one accessor,
// resolving the "tmp_root" ambiguity left open upstream.
func (l *Layout) TmpDir() string {
	return filepath.Join(l.root, "tmp")
}

// EnsureDirs creates the root and its fixed subdirectories if absent.
func (l *Layout) EnsureDirs() error {
	for _, dir := range []string{
		l.root,
		l.ShimDir(),
		l.CacheDir(),
		l.TmpDir(),
		l.BinConfigDir(),
		l.PackageConfigDir(),
		l.InventoryDir("node"),
		l.InventoryDir("yarn"),
		l.InventoryDir("packages"),
		filepath.Join(l.root, "tools", "image"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Expand expands a leading ~ or ~/ to the current user's home directory.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
