// Package project implements discovery of the nearest project root from a
// starting directory, the merged dependent-binary index, and the pin
// operations that write a project's manifest. Grounded on notion-core's
// project.rs (is_node_root/is_node_modules/is_project_root predicate chain,
// LazyDependentBins, pin_node_in_toolchain/pin_yarn_in_toolchain; see
// original_source).
package project

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/manifest"
)

const manifestFilename = "package.json"

// Project is the nearest ancestor directory containing a manifest that is
// not itself inside a node_modules subtree.
type Project struct {
	Root     string
	Manifest *manifest.Manifest

	binsOnce sync.Once
	bins     map[string]string
	binsErr  error
}

// isProjectRoot reports whether dir contains a manifest and is not itself
// a dependency subtree (its parent directory is not named node_modules).
func isProjectRoot(dir string) bool {
	if filepath.Base(filepath.Dir(dir)) == "node_modules" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, manifestFilename))
	return err == nil
}

// Discover walks upward from startDir until it finds a project root,
// returning (nil, nil) if none is found before reaching the filesystem root.
func Discover(startDir string) (*Project, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to resolve starting directory", err)
	}

	for {
		if isProjectRoot(dir) {
			m, err := manifest.ForDir(dir)
			if err != nil {
				return nil, err
			}
			return &Project{Root: dir, Manifest: m}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// DependentBins lazily builds the map of binary name to resolved absolute
// path for every direct (merged dependencies+devDependencies) dependency
// that declares a "bin" field in its own package.json, by reading each
// dependency's manifest inside node_modules.
func (p *Project) DependentBins() (map[string]string, error) {
	p.binsOnce.Do(func() {
		p.bins, p.binsErr = p.computeDependentBins()
	})
	return p.bins, p.binsErr
}

func (p *Project) computeDependentBins() (map[string]string, error) {
	bins := make(map[string]string)
	merged := p.Manifest.MergedDependencies()

	for depName := range merged {
		depDir := filepath.Join(p.Root, "node_modules", depName)
		depManifest, err := manifest.ForDir(depDir)
		if err != nil {
			// A dependency may not be installed yet (npm install not run);
			// that is not fatal to discovering the bins that ARE installed.
			continue
		}
		for binName, relPath := range depManifest.Bin {
			bins[binName] = filepath.Join(depDir, relPath)
		}
	}

	return bins, nil
}

// PinNode sets the project's pinned node version, creating the pinned
// block if absent, and persists the manifest.
func (p *Project) PinNode(version string) error {
	pinned := p.Manifest.Pinned
	if pinned == nil {
		pinned = &manifest.Pinned{}
	}
	pinned.Node = version
	p.Manifest.SetPinned(pinned)
	return p.Manifest.Save()
}

// PinNpm sets the project's pinned npm version. Requires a node version to
// already be pinned, mirroring pin_node_in_toolchain's precondition.
func (p *Project) PinNpm(version string) error {
	if p.Manifest.Pinned == nil || p.Manifest.Pinned.Node == "" {
		return apperrors.NoPinnedNodeVersion()
	}
	pinned := *p.Manifest.Pinned
	pinned.Npm = version
	p.Manifest.SetPinned(&pinned)
	return p.Manifest.Save()
}

// PinYarn sets the project's pinned yarn version. Requires a node version
// to already be pinned (§8 scenario 3: pin-yarn-without-node).
func (p *Project) PinYarn(version string) error {
	if p.Manifest.Pinned == nil || p.Manifest.Pinned.Node == "" {
		return apperrors.NoPinnedNodeVersion()
	}
	pinned := *p.Manifest.Pinned
	pinned.Yarn = version
	p.Manifest.SetPinned(&pinned)
	return p.Manifest.Save()
}
