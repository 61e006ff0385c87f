// Package shim implements the §4.5 dispatch table: given the shim
// executable's invocation name and argument vector, decide whether to run
// a known runtime, a project-local dependency binary, a user-installed
// package binary, or fail. Grounded on the teacher's
// internal/installer/command.Executor for the subprocess shape (adapted in
// internal/toolexec) and on platform.Image.Path for PATH construction.
package shim

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/inventory"
	"github.com/railyard/railyard/internal/layout"
	"github.com/railyard/railyard/internal/platform"
	"github.com/railyard/railyard/internal/session"
	"github.com/railyard/railyard/internal/toolexec"
)

// BypassEnvVar is checked before any dispatch logic; when set to "1" the
// shim execs the underlying system command directly (§4.5 Go note, §6, §7).
const BypassEnvVar = "RAILYARD_BYPASS"

var runtimeNames = map[string]bool{
	"node": true,
	"npm":  true,
	"npx":  true,
	"yarn": true,
}

// npxMinNpm is the minimum npm version that ships npx (§8 scenario 8).
var npxMinNpm *semver.Version

func init() {
	v, err := semver.NewVersion("5.2.0")
	if err != nil {
		panic(err)
	}
	npxMinNpm = v
}

// Resolve decides what the shim invoked as name with args should run,
// returning the child process Spec to launch. It never runs the child
// itself — callers pass the result to toolexec.Run.
func Resolve(ctx context.Context, sess *session.Session, name string, args []string) (toolexec.Spec, error) {
	if os.Getenv(BypassEnvVar) == "1" {
		return resolveBypass(name, args, sess.Layout)
	}

	if runtimeNames[name] {
		return resolveRuntime(ctx, sess, name, args)
	}

	if spec, ok, err := resolveProjectDependency(sess, name, args); err != nil {
		return toolexec.Spec{}, err
	} else if ok {
		return spec, nil
	}

	if spec, ok, err := resolveUserBin(sess, name, args); err != nil {
		return toolexec.Spec{}, err
	} else if ok {
		return spec, nil
	}

	return toolexec.Spec{}, apperrors.BinaryNotFound(name)
}

// resolveBypass looks up name on the system PATH with the shim directory
// stripped, so the bypass always reaches a real system binary rather than
// looping back into the shim.
func resolveBypass(name string, args []string, l *layout.Layout) (toolexec.Spec, error) {
	systemPath := platform.SystemPath(os.Getenv("PATH"), l)
	path, err := exec.LookPath(lookupWithPath(name, systemPath))
	if err != nil {
		return toolexec.Spec{}, apperrors.BinaryNotFound(name)
	}
	return toolexec.Spec{Path: path, Args: args, PATH: systemPath}, nil
}

// lookupWithPath resolves name against an explicit PATH value by checking
// each of its directories itself, since exec.LookPath always reads the
// current process's environment.
func lookupWithPath(name, path string) string {
	if filepath.IsAbs(name) {
		return name
	}
	for _, dir := range filepath.SplitList(path) {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return name
}

// resolveRuntime handles dispatch-table step 1: node/npm/npx/yarn.
func resolveRuntime(ctx context.Context, sess *session.Session, name string, args []string) (toolexec.Spec, error) {
	sourced, err := sess.CurrentPlatform()
	if err != nil {
		return toolexec.Spec{}, err
	}
	if sourced == nil {
		return toolexec.Spec{}, apperrors.NoPlatform()
	}

	img, err := sess.Checkout(ctx, sourced.Spec)
	if err != nil {
		return toolexec.Spec{}, err
	}

	if name == "npx" {
		if err := requireNpxCapableNpm(img.NpmVersion); err != nil {
			return toolexec.Spec{}, err
		}
	}

	binDir := img.NodeBinDir
	if name == "yarn" {
		if img.YarnBinDir == "" {
			return toolexec.Spec{}, apperrors.NoPlatform().WithHint("pin a yarn version first")
		}
		binDir = img.YarnBinDir
	}

	path := img.Path(os.Getenv("PATH"), sess.Layout)
	return toolexec.Spec{Path: filepath.Join(binDir, name), Args: args, PATH: path}, nil
}

func requireNpxCapableNpm(npmVersion string) error {
	v, err := semver.NewVersion(npmVersion)
	if err != nil {
		return apperrors.NpxNotAvailable(npmVersion)
	}
	if v.LessThan(npxMinNpm) {
		return apperrors.NpxNotAvailable(npmVersion)
	}
	return nil
}

// resolveProjectDependency handles dispatch-table step 2: a binary
// declared by a direct dependency of the current project.
func resolveProjectDependency(sess *session.Session, name string, args []string) (toolexec.Spec, bool, error) {
	proj, err := sess.Project()
	if err != nil {
		return toolexec.Spec{}, false, err
	}
	if proj == nil {
		return toolexec.Spec{}, false, nil
	}

	bins, err := proj.DependentBins()
	if err != nil {
		return toolexec.Spec{}, false, err
	}
	binPath, ok := bins[name]
	if !ok {
		return toolexec.Spec{}, false, nil
	}

	path := os.Getenv("PATH")
	if sourced, err := sess.CurrentPlatform(); err == nil && sourced != nil {
		if img, err := sess.Checkout(context.Background(), sourced.Spec); err == nil {
			path = img.Path(path, sess.Layout)
		}
	}

	return toolexec.Spec{Path: binPath, Args: args, PATH: path}, true, nil
}

// resolveUserBin handles dispatch-table step 3: a globally installed
// package's binary, recorded in a BinConfig.
func resolveUserBin(sess *session.Session, name string, args []string) (toolexec.Spec, bool, error) {
	cfg, err := sess.Inventory().ReadBinConfig(name)
	if err != nil {
		return toolexec.Spec{}, false, err
	}
	if cfg == nil {
		return toolexec.Spec{}, false, nil
	}

	imageDir := sess.Layout.PackageImageDir(cfg.Package, cfg.Version)
	binPath := filepath.Join(imageDir, cfg.Path)

	path := platform.SystemPath(os.Getenv("PATH"), sess.Layout)
	if cfg.Platform.Node != "" {
		if nodeBinDir, ok := sess.NodeBinDir(cfg.Platform.Node); ok {
			path = prependDir(nodeBinDir, path)
		}
	}

	if cfg.Loader != nil {
		loaderArgs := append(append([]string{}, cfg.Loader.Args...), binPath)
		loaderArgs = append(loaderArgs, args...)
		loaderPath, err := exec.LookPath(cfg.Loader.Command)
		if err != nil {
			loaderPath = cfg.Loader.Command
		}
		return toolexec.Spec{Path: loaderPath, Args: loaderArgs, PATH: path}, true, nil
	}

	return toolexec.Spec{Path: binPath, Args: args, PATH: path}, true, nil
}

func prependDir(dir, path string) string {
	if path == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + path
}

// DetectLoader inspects a script's first line and, if it has a shebang,
// returns the loader command/args to launch it on platforms without native
// shebang support. Returns nil if the file has no recognizable shebang.
func DetectLoader(scriptPath string) (*inventory.Loader, error) {
	return inventory.DetectLoader(scriptPath)
}
