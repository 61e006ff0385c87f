// Package inventory is the on-disk catalog of installed tool/package
// versions. It is grounded on the teacher's internal/state.Store[T]
// generic, gofrs/flock-backed locking pattern, adapted from a single
// state.json blob to railyard's per-tool image-directory-is-the-source-of-
// truth model: an installed version is a fact derived from the filesystem
// (§8 invariant 1), not a separately-maintained ledger that could drift.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gofrs/flock"
	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/layout"
)

// Lock is the advisory whole-root lock guarding the distribution engine's
// fetch→verify→unpack→rename sequence against other processes racing on
// the same version (§3.1, §4.2, §5).
type Lock struct {
	fileLock *flock.Flock
	path     string
	locked   bool
}

// NewLock builds a Lock rooted at the layout's inventory lock file.
func NewLock(l *layout.Layout) *Lock {
	path := l.InventoryLockFile()
	return &Lock{fileLock: flock.New(path), path: path}
}

// Lock blocks until the advisory lock is acquired and records this
// process's PID in the lock file for diagnostics.
func (lk *Lock) Lock() error {
	if lk.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(lk.path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create inventory lock directory", err)
	}
	if err := lk.fileLock.Lock(); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to acquire inventory lock", err)
	}
	_ = os.WriteFile(lk.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
	lk.locked = true
	return nil
}

// Unlock releases the advisory lock.
func (lk *Lock) Unlock() error {
	if !lk.locked {
		return nil
	}
	if err := lk.fileLock.Unlock(); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to release inventory lock", err)
	}
	lk.locked = false
	return nil
}

// Inventory scans the layout's tools/packages directories on demand to
// answer "is version V of tool T installed" without a separate ledger.
type Inventory struct {
	layout *layout.Layout
}

// New builds an Inventory rooted at layout.
func New(l *layout.Layout) *Inventory {
	return &Inventory{layout: l}
}

// HasToolVersion reports whether tool/version has a populated image
// directory on disk.
func (inv *Inventory) HasToolVersion(tool, version string) bool {
	dir := inv.layout.ToolImageDir(tool, version)
	return dirIsPopulated(dir)
}

// HasPackageVersion reports whether name/version is installed and its
// package-config record agrees on the version (§8 invariant 1).
func (inv *Inventory) HasPackageVersion(name, version string) bool {
	dir := inv.layout.PackageImageDir(name, version)
	if !dirIsPopulated(dir) {
		return false
	}
	cfg, err := inv.ReadPackageConfig(name)
	if err != nil || cfg == nil {
		return false
	}
	return cfg.Version == version
}

func dirIsPopulated(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// ToolVersions returns the sorted set of versions of tool installed, newest
// last. Only valid for single-segment image dirs (yarn, packages/<name>);
// node's image dir is keyed by both node and npm version, so callers walk
// tools/image/node directly for that case.
func (inv *Inventory) ToolVersions(tool string) ([]*semver.Version, error) {
	root := filepath.Join(inv.layout.Root(), "tools", "image", tool)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to list installed versions", err)
	}

	var out []*semver.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !dirIsPopulated(filepath.Join(root, e.Name())) {
			continue
		}
		v, err := semver.NewVersion(e.Name())
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Sort(semver.Collection(out))
	return out, nil
}

// PackageConfig is the per-installed-package JSON record (§6 file formats).
type PackageConfig struct {
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Platform PlatformRecord `json:"platform"`
	Bins     []string       `json:"bins"`
}

// PlatformRecord is the JSON snapshot of a PlatformSpec embedded in
// package/bin configs.
type PlatformRecord struct {
	Node string `json:"node"`
	Npm  string `json:"npm,omitempty"`
	Yarn string `json:"yarn,omitempty"`
}

// BinConfig is the per-installed-binary JSON record (§6 file formats).
type BinConfig struct {
	Name     string         `json:"name"`
	Package  string         `json:"package"`
	Version  string         `json:"version"`
	Path     string         `json:"path"`
	Platform PlatformRecord `json:"platform"`
	Loader   *Loader        `json:"loader,omitempty"`
}

// Loader describes how to launch a script bin on platforms without native
// shebang support (§9 Windows script loaders).
type Loader struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// shebangPattern matches a script's interpreter line, per §9's Windows
// script loader rule.
var shebangPattern = regexp.MustCompile(`^#!\s*(?:/usr/bin/env)?\s*(\S+)\s*(.*)$`)

// DetectLoader inspects a script's first line and, if it has a shebang,
// returns the loader command/args to launch it on platforms without native
// shebang support. Returns nil if the file has no recognizable shebang.
func DetectLoader(scriptPath string) (*Loader, error) {
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read script for loader detection", err)
	}

	firstLine := content
	if idx := strings.IndexByte(string(content), '\n'); idx >= 0 {
		firstLine = content[:idx]
	}

	m := shebangPattern.FindStringSubmatch(strings.TrimRight(string(firstLine), "\r"))
	if m == nil {
		return nil, nil
	}

	var loaderArgs []string
	if strings.TrimSpace(m[2]) != "" {
		loaderArgs = strings.Fields(m[2])
	}

	return &Loader{Command: m[1], Args: loaderArgs}, nil
}

func (inv *Inventory) packageConfigPath(name string) string {
	return inv.layout.PackageConfigFile(name)
}

// ReadPackageConfig reads a package's config, or nil if none is recorded.
func (inv *Inventory) ReadPackageConfig(name string) (*PackageConfig, error) {
	content, err := os.ReadFile(inv.packageConfigPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read package config", err)
	}
	var cfg PackageConfig
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse package config", err)
	}
	return &cfg, nil
}

// WritePackageConfig persists a package's config record.
func (inv *Inventory) WritePackageConfig(cfg *PackageConfig) error {
	path := inv.packageConfigPath(cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create package config directory", err)
	}
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryInternal, "failed to encode package config", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to write package config", err)
	}
	return nil
}

func (inv *Inventory) binConfigPath(name string) string {
	return inv.layout.BinConfigFile(name)
}

// ReadBinConfig reads a bin's config, or nil if none is recorded.
func (inv *Inventory) ReadBinConfig(name string) (*BinConfig, error) {
	content, err := os.ReadFile(inv.binConfigPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read bin config", err)
	}
	var cfg BinConfig
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse bin config", err)
	}
	return &cfg, nil
}

// WriteBinConfig persists a bin's config record.
func (inv *Inventory) WriteBinConfig(cfg *BinConfig) error {
	path := inv.binConfigPath(cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create bin config directory", err)
	}
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryInternal, "failed to encode bin config", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to write bin config", err)
	}
	return nil
}

// CheckBinsMatchPackage validates §8 invariant 2: every bin-config entry's
// owning package config must list that bin's name.
func (inv *Inventory) CheckBinsMatchPackage(binName string) error {
	bin, err := inv.ReadBinConfig(binName)
	if err != nil {
		return err
	}
	if bin == nil {
		return nil
	}
	pkg, err := inv.ReadPackageConfig(bin.Package)
	if err != nil {
		return err
	}
	if pkg == nil {
		return fmt.Errorf("bin %q references missing package config %q", binName, bin.Package)
	}
	for _, b := range pkg.Bins {
		if b == binName {
			return nil
		}
	}
	return fmt.Errorf("package config %q does not list bin %q", bin.Package, binName)
}
