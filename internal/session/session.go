// Package session is the lazy container described in §2/§9: project, hooks
// and user-default platform, each a one-shot deferred slot (sync.Once +
// cached value/error pair), the inventory and event log built in New, plus the
// §4.6 current-platform selection and the ensure_{node,yarn} operations
// that tie the resolver to the distribution engine. Grounded on
// volta-core's session.rs (see original_source) for the current_platform
// provenance rules.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/archive"
	"github.com/railyard/railyard/internal/checksum"
	"github.com/railyard/railyard/internal/distribution"
	"github.com/railyard/railyard/internal/eventlog"
	"github.com/railyard/railyard/internal/hooks"
	"github.com/railyard/railyard/internal/inventory"
	"github.com/railyard/railyard/internal/layout"
	"github.com/railyard/railyard/internal/manifest"
	"github.com/railyard/railyard/internal/platform"
	"github.com/railyard/railyard/internal/project"
	"github.com/railyard/railyard/internal/registryindex"
	"github.com/railyard/railyard/internal/resolver"
	"github.com/railyard/railyard/internal/version"
)

// Provenance names where a selected PlatformSpec came from (§4.6, §9
// "Tagged variants" — SourcedPlatform).
type Provenance string

const (
	ProvenanceProject Provenance = "project"
	ProvenanceMerged  Provenance = "merged"
	ProvenanceDefault Provenance = "default"
)

// SourcedPlatform pairs a resolved platform.Spec with its provenance.
type SourcedPlatform struct {
	Spec       platform.Spec
	Provenance Provenance
}

// Session is the per-invocation lazy container.
type Session struct {
	Layout     *layout.Layout
	startDir   string
	HTTPClient *http.Client

	projectOnce sync.Once
	project     *project.Project
	projectErr  error

	hooksOnce sync.Once
	hooks     *hooks.Merged
	hooksErr  error

	userPlatformOnce sync.Once
	userPlatform     *platform.Spec
	userPlatformErr  error

	inventory *inventory.Inventory
	lock      *inventory.Lock
	eventLog  *eventlog.Log
	engine    *distribution.Engine
	fetcher   *registryindex.Fetcher
	reporter  distribution.ProgressReporter
}

// New builds a Session rooted at l, discovering project context lazily
// starting from startDir (normally the current working directory).
func New(l *layout.Layout, startDir string) *Session {
	engine := distribution.New(l)
	fetcher := registryindex.NewFetcher(l.CacheDir())

	return &Session{
		Layout:     l,
		startDir:   startDir,
		HTTPClient: engine.HTTPClient,
		inventory:  inventory.New(l),
		lock:       inventory.NewLock(l),
		eventLog:   eventlog.New(),
		engine:     engine,
		fetcher:    fetcher,
		reporter:   distribution.NoopReporter{},
	}
}

// Inventory returns the session's inventory handle.
func (s *Session) Inventory() *inventory.Inventory { return s.inventory }

// SetProgressReporter overrides the reporter used for downloads triggered
// through this session (§3.1: the CLI wires an mpb-based reporter, the
// shim binary leaves the default NoopReporter since every shim invocation
// is latency-critical).
func (s *Session) SetProgressReporter(r distribution.ProgressReporter) {
	s.reporter = r
}

// EventLog returns the session's event log.
func (s *Session) EventLog() *eventlog.Log { return s.eventLog }

// Project lazily discovers the nearest project root from startDir.
func (s *Session) Project() (*project.Project, error) {
	s.projectOnce.Do(func() {
		s.project, s.projectErr = project.Discover(s.startDir)
	})
	return s.project, s.projectErr
}

// Hooks lazily loads and merges the project/workspace/user hook chain.
func (s *Session) Hooks() (*hooks.Merged, error) {
	s.hooksOnce.Do(func() {
		s.hooks, s.hooksErr = s.loadHooks()
	})
	return s.hooks, s.hooksErr
}

func (s *Session) loadHooks() (*hooks.Merged, error) {
	proj, err := s.Project()
	if err != nil {
		return nil, err
	}

	var projectHooksPath string
	var workspaceChain []string

	if proj != nil {
		projectHooksPath = filepath.Join(proj.Root, ".railyard", "hooks.json")

		if proj.Manifest.Pinned != nil && proj.Manifest.Pinned.Extends != "" {
			start := filepath.Join(proj.Root, proj.Manifest.Pinned.Extends)
			chain, err := hooks.ResolveExtendsChain(start, readExtendsFromManifest)
			if err != nil {
				return nil, err
			}
			workspaceChain = chain
		}
	}

	return hooks.Load(projectHooksPath, workspaceChain, s.Layout.UserHooksFile())
}

// readExtendsFromManifest reads the "extends" field of the pinned block in
// the manifest at path's directory, used to walk the workspace chain.
func readExtendsFromManifest(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var doc struct {
		Railyard struct {
			Extends string `json:"extends"`
		} `json:"railyard"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", err
	}
	if doc.Railyard.Extends == "" {
		return "", nil
	}
	return filepath.Join(filepath.Dir(path), doc.Railyard.Extends), nil
}

// UserDefaultPlatform lazily reads the user-wide default platform file.
// A missing file is not an error; it yields (nil, nil).
func (s *Session) UserDefaultPlatform() (*platform.Spec, error) {
	s.userPlatformOnce.Do(func() {
		s.userPlatform, s.userPlatformErr = s.readUserPlatform()
	})
	return s.userPlatform, s.userPlatformErr
}

func (s *Session) readUserPlatform() (*platform.Spec, error) {
	content, err := os.ReadFile(s.Layout.UserPlatformFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read user default platform", err)
	}

	var spec platform.Spec
	if err := json.Unmarshal(content, &spec); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse user default platform", err)
	}
	return &spec, nil
}

// SetUserDefaultPlatform persists the user-wide default platform.
func (s *Session) SetUserDefaultPlatform(spec platform.Spec) error {
	if err := os.MkdirAll(filepath.Dir(s.Layout.UserPlatformFile()), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create user platform directory", err)
	}
	body, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryInternal, "failed to encode user platform", err)
	}
	if err := os.WriteFile(s.Layout.UserPlatformFile(), body, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to write user platform", err)
	}
	s.userPlatform = &spec
	return nil
}

// CurrentPlatform implements §4.6: project pin (with or without yarn
// merged from the user default), else user default, else none.
func (s *Session) CurrentPlatform() (*SourcedPlatform, error) {
	proj, err := s.Project()
	if err != nil {
		return nil, err
	}

	userDefault, err := s.UserDefaultPlatform()
	if err != nil {
		return nil, err
	}

	if proj != nil && proj.Manifest.Pinned != nil && proj.Manifest.Pinned.Node != "" {
		pinned := proj.Manifest.Pinned
		if pinned.Yarn != "" {
			return &SourcedPlatform{
				Spec:       platform.Spec{Node: pinned.Node, Npm: pinned.Npm, Yarn: pinned.Yarn},
				Provenance: ProvenanceProject,
			}, nil
		}

		spec := platform.Spec{Node: pinned.Node, Npm: pinned.Npm}
		if userDefault != nil && userDefault.Yarn != "" {
			spec.Yarn = userDefault.Yarn
			return &SourcedPlatform{Spec: spec, Provenance: ProvenanceMerged}, nil
		}
		return &SourcedPlatform{Spec: spec, Provenance: ProvenanceProject}, nil
	}

	if userDefault != nil {
		return &SourcedPlatform{Spec: *userDefault, Provenance: ProvenanceDefault}, nil
	}

	return nil, nil
}

// NodeDistroID returns the file-list identifier the Node index uses for
// the current OS/arch, e.g. "linux-x64", "osx-x64-tar", "win-x64-zip".
func NodeDistroID() string {
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x64"
	}
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("win-%s-zip", arch)
	case "darwin":
		return fmt.Sprintf("osx-%s-tar", arch)
	default:
		return fmt.Sprintf("%s-%s", runtime.GOOS, arch)
	}
}

// ResolveVersion runs the §4.1 resolver for tool/spec without fetching
// anything, for callers (the pin and setup CLI commands) that only need
// to know the concrete version a spec refers to.
func (s *Session) ResolveVersion(ctx context.Context, tool resolver.Tool, spec version.Spec) (string, error) {
	merged, err := s.Hooks()
	if err != nil {
		return "", err
	}
	res := resolver.New(s.fetcher, merged, NodeDistroID())
	return res.Resolve(ctx, tool, spec)
}

// EnsureNode resolves spec to a concrete version if needed and ensures its
// image directory is populated, fetching it through the distribution
// engine if absent. Node's image is keyed by both its own version and the
// bundled npm version (§6), which is only known after unpacking, so node is
// fetched into a staging directory first and renamed into its final
// tools/image/node/<node>/<npm>/ home once the bundled npm version is read.
func (s *Session) EnsureNode(ctx context.Context, spec version.Spec) (string, string, error) {
	merged, err := s.Hooks()
	if err != nil {
		return "", "", err
	}

	res := resolver.New(s.fetcher, merged, NodeDistroID())
	resolvedVersion, err := res.Resolve(ctx, resolver.Tool{Kind: resolver.ToolNode}, spec)
	if err != nil {
		return "", "", err
	}

	if npmVersion, ok := s.installedNodeNpm(resolvedVersion); ok {
		return resolvedVersion, s.Layout.NodeImageDir(resolvedVersion, npmVersion), nil
	}

	if err := s.lock.Lock(); err != nil {
		return "", "", err
	}
	defer s.lock.Unlock()

	if npmVersion, ok := s.installedNodeNpm(resolvedVersion); ok {
		return resolvedVersion, s.Layout.NodeImageDir(resolvedVersion, npmVersion), nil
	}

	distroURL, err := s.downloadURL(merged, resolver.Tool{Kind: resolver.ToolNode}, resolvedVersion)
	if err != nil {
		return "", "", err
	}

	stagingDir := filepath.Join(s.Layout.Root(), "tools", "image", "node", resolvedVersion, "_staging")
	if _, err := s.engine.Fetch(ctx, distribution.Distro{
		Kind:        "node",
		Name:        "node",
		Version:     resolvedVersion,
		RemoteURL:   distroURL,
		ArchiveType: archive.Detect(distroURL),
		ChecksumAlg: checksum.AlgorithmSHA256,
		ImageDir:    stagingDir,
	}, s.reporter); err != nil {
		return "", "", err
	}

	npmVersion, err := readBundledNpmVersion(stagingDir)
	if err != nil {
		return "", "", err
	}

	finalDir := s.Layout.NodeImageDir(resolvedVersion, npmVersion)
	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return "", "", apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create node image parent directory", err)
	}
	if err := os.RemoveAll(finalDir); err != nil {
		return "", "", apperrors.Wrap(apperrors.CategoryFilesystem, "failed to clear stale node image", err)
	}
	if err := os.Rename(stagingDir, finalDir); err != nil {
		return "", "", apperrors.Wrap(apperrors.CategoryFilesystem, "failed to move node image into place", err)
	}

	return resolvedVersion, finalDir, nil
}

// installedNodeNpm reports the bundled npm version already installed for
// nodeVersion, if any populated (non-staging) subdirectory exists.
func (s *Session) installedNodeNpm(nodeVersion string) (string, bool) {
	root := filepath.Join(s.Layout.Root(), "tools", "image", "node", nodeVersion)
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "_staging" {
			continue
		}
		return e.Name(), true
	}
	return "", false
}

// readBundledNpmVersion reads the npm version bundled inside a freshly
// unpacked node image, from its vendored npm package.json.
func readBundledNpmVersion(nodeImageDir string) (string, error) {
	path := filepath.Join(nodeImageDir, "lib", "node_modules", "npm", "package.json")
	content, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read bundled npm package.json", err)
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryConfiguration, "failed to parse bundled npm package.json", err)
	}
	if pkg.Version == "" {
		return "", apperrors.Newf(apperrors.CategoryInternal, "bundled npm package.json at %s has no version", path)
	}
	return pkg.Version, nil
}

// EnsureYarn resolves spec to a concrete version if needed and ensures its
// image directory (tools/image/yarn/<version>/) is populated.
func (s *Session) EnsureYarn(ctx context.Context, spec version.Spec) (string, string, error) {
	merged, err := s.Hooks()
	if err != nil {
		return "", "", err
	}

	res := resolver.New(s.fetcher, merged, NodeDistroID())
	resolvedVersion, err := res.Resolve(ctx, resolver.Tool{Kind: resolver.ToolYarn}, spec)
	if err != nil {
		return "", "", err
	}

	if s.inventory.HasToolVersion("yarn", resolvedVersion) {
		return resolvedVersion, s.Layout.ToolImageDir("yarn", resolvedVersion), nil
	}

	if err := s.lock.Lock(); err != nil {
		return "", "", err
	}
	defer s.lock.Unlock()

	if s.inventory.HasToolVersion("yarn", resolvedVersion) {
		return resolvedVersion, s.Layout.ToolImageDir("yarn", resolvedVersion), nil
	}

	distroURL, err := s.downloadURL(merged, resolver.Tool{Kind: resolver.ToolYarn}, resolvedVersion)
	if err != nil {
		return "", "", err
	}

	imageDir := s.Layout.ToolImageDir("yarn", resolvedVersion)
	if _, err := s.engine.Fetch(ctx, distribution.Distro{
		Kind:        "yarn",
		Name:        "yarn",
		Version:     resolvedVersion,
		RemoteURL:   distroURL,
		ArchiveType: archive.Detect(distroURL),
		ChecksumAlg: checksum.AlgorithmSHA256,
		ImageDir:    imageDir,
	}, s.reporter); err != nil {
		return "", "", err
	}

	return resolvedVersion, imageDir, nil
}

func (s *Session) downloadURL(merged *hooks.Merged, tool resolver.Tool, resolvedVersion string) (string, error) {
	th := merged.Tools[tool.HookKey()]
	if th != nil && th.Distro != nil {
		return th.Distro.Resolve(resolvedVersion, defaultDistroFilename(tool, resolvedVersion))
	}

	switch tool.Kind {
	case resolver.ToolNode:
		return fmt.Sprintf("https://nodejs.org/dist/v%s/node-v%s-%s.tar.gz", resolvedVersion, resolvedVersion, NodeDistroID()), nil
	case resolver.ToolYarn:
		return fmt.Sprintf("https://github.com/yarnpkg/yarn/releases/download/v%s/yarn-v%s.tar.gz", resolvedVersion, resolvedVersion), nil
	default:
		return "", apperrors.Newf(apperrors.CategoryConfiguration, "no default download URL for %s", tool.HookKey())
	}
}

// defaultDistroFilename is the filename a prefix-kind distro hook's URL is
// appended with (§4.3: "the default filename for the tool/version is
// appended"), matching the real upstream archive naming for each tool so a
// prefix hook only needs to redirect the host/path.
func defaultDistroFilename(tool resolver.Tool, resolvedVersion string) string {
	switch tool.Kind {
	case resolver.ToolNode:
		return fmt.Sprintf("node-v%s-%s.tar.gz", resolvedVersion, NodeDistroID())
	case resolver.ToolYarn:
		return fmt.Sprintf("yarn-v%s.tar.gz", resolvedVersion)
	case resolver.ToolPackage:
		return fmt.Sprintf("%s-%s.tgz", tool.Name, resolvedVersion)
	default:
		return ""
	}
}

// EnsurePackage resolves spec to a concrete version of an arbitrary
// installable npm package and ensures it is installed: fetched from the
// npm registry, unpacked into its image directory, and recorded as a
// PackageConfig with one BinConfig per declared binary (§4.2 step 8). The
// platform passed in is the one the package's own bins should run under.
func (s *Session) EnsurePackage(ctx context.Context, name string, spec version.Spec, plat platform.Spec) (string, error) {
	merged, err := s.Hooks()
	if err != nil {
		return "", err
	}

	tool := resolver.Tool{Kind: resolver.ToolPackage, Name: name}
	res := resolver.New(s.fetcher, merged, NodeDistroID())
	resolvedVersion, err := res.Resolve(ctx, tool, spec)
	if err != nil {
		return "", err
	}

	if s.inventory.HasPackageVersion(name, resolvedVersion) {
		return resolvedVersion, nil
	}

	if err := s.lock.Lock(); err != nil {
		return "", err
	}
	defer s.lock.Unlock()

	if s.inventory.HasPackageVersion(name, resolvedVersion) {
		return resolvedVersion, nil
	}

	doc, err := s.fetcher.FetchRegistryDocument(ctx, name, "")
	if err != nil {
		return "", err
	}
	detail, ok := doc.Versions[resolvedVersion]
	if !ok {
		return "", apperrors.NoVersionMatching(name, resolvedVersion)
	}

	distroURL := detail.Dist.Tarball
	if th := merged.Tools[tool.HookKey()]; th != nil && th.Distro != nil {
		if overridden, err := th.Distro.Resolve(resolvedVersion, defaultDistroFilename(tool, resolvedVersion)); err == nil {
			distroURL = overridden
		}
	}

	imageDir := s.Layout.PackageImageDir(name, resolvedVersion)
	if _, err := s.engine.Fetch(ctx, distribution.Distro{
		Kind:           "packages",
		Name:           name,
		Version:        resolvedVersion,
		RemoteURL:      distroURL,
		ArchiveType:    archive.TypeTarGz,
		ChecksumAlg:    checksum.AlgorithmSHA1,
		ExpectedShasum: detail.Dist.Shasum,
		ImageDir:       imageDir,
	}, s.reporter); err != nil {
		return "", err
	}

	if err := s.writePackageRecords(name, resolvedVersion, imageDir, plat); err != nil {
		return "", err
	}

	return resolvedVersion, nil
}

// writePackageRecords reads the installed package's own manifest for its
// declared "bin" field and writes the PackageConfig plus one BinConfig per
// binary, detecting a Windows script loader for each (§9).
func (s *Session) writePackageRecords(name, resolvedVersion, imageDir string, plat platform.Spec) error {
	pkgManifest, err := manifest.ForDir(imageDir)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to read installed package manifest", err)
	}

	platRecord := inventory.PlatformRecord{Node: plat.Node, Npm: plat.Npm, Yarn: plat.Yarn}

	bins := make([]string, 0, len(pkgManifest.Bin))
	for binName := range pkgManifest.Bin {
		bins = append(bins, binName)
	}

	if err := s.inventory.WritePackageConfig(&inventory.PackageConfig{
		Name:     name,
		Version:  resolvedVersion,
		Platform: platRecord,
		Bins:     bins,
	}); err != nil {
		return err
	}

	for binName, relPath := range pkgManifest.Bin {
		loader, _ := inventory.DetectLoader(filepath.Join(imageDir, relPath))
		if err := s.inventory.WriteBinConfig(&inventory.BinConfig{
			Name:     binName,
			Package:  name,
			Version:  resolvedVersion,
			Path:     relPath,
			Platform: platRecord,
			Loader:   loader,
		}); err != nil {
			return err
		}
	}

	return nil
}

// BundledNpmVersion reads the npm version bundled with an installed node
// image, from the node image directory's own npm-versioned subdirectory
// (e.g. tools/image/node/<v>/<npm>/, per §6).
func (s *Session) BundledNpmVersion(nodeVersion string) (string, error) {
	if npmVersion, ok := s.installedNodeNpm(nodeVersion); ok {
		return npmVersion, nil
	}
	return "", apperrors.Newf(apperrors.CategoryInternal, "node image for %s has no recorded npm version", nodeVersion)
}

// NodeBinDir resolves the bin/ directory of an already-installed node image
// for nodeVersion. Node images are nested by both node and npm version
// (tools/image/node/<node>/<npm>/, per §6), so the npm subdirectory has to
// be discovered the same way installedNodeNpm does rather than assumed.
func (s *Session) NodeBinDir(nodeVersion string) (string, bool) {
	npmVersion, ok := s.installedNodeNpm(nodeVersion)
	if !ok {
		return "", false
	}
	return filepath.Join(s.Layout.NodeImageDir(nodeVersion, npmVersion), "bin"), true
}

// Checkout runs platform.Checkout with this session's EnsureNode/EnsureYarn
// wired in.
func (s *Session) Checkout(ctx context.Context, spec platform.Spec) (platform.Image, error) {
	ensure := func(ctx context.Context, tool, rawVersion string) (string, error) {
		parsedSpec, err := version.Parse(rawVersion)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CategoryVersion, "invalid pinned version", err)
		}
		var resolvedVersion, imageDir string
		switch tool {
		case "node":
			resolvedVersion, imageDir, err = s.EnsureNode(ctx, parsedSpec)
		case "yarn":
			resolvedVersion, imageDir, err = s.EnsureYarn(ctx, parsedSpec)
		default:
			return "", apperrors.Newf(apperrors.CategoryInternal, "unknown checkout tool %q", tool)
		}
		_ = resolvedVersion
		return imageDir, err
	}

	return platform.Checkout(ctx, spec, ensure, s.BundledNpmVersion)
}

// hookPublisher adapts a hooks.PublishTarget to eventlog.Publisher: an HTTP
// POST if a URL is configured, otherwise a bin invocation receiving the
// payload as its sole argument.
type hookPublisher struct {
	target     *hooks.PublishTarget
	httpClient *http.Client
}

func (p *hookPublisher) Publish(payload []byte) error {
	if p.target.URL != "" {
		resp, err := p.httpClient.Post(p.target.URL, "application/json", bytes.NewReader(payload))
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryNetwork, "failed to publish event log", err)
		}
		defer resp.Body.Close()
		return nil
	}
	if p.target.Bin != "" {
		_, err := hooks.ResolveBin(p.target.Bin, string(payload))
		return err
	}
	return nil
}

// Close flushes the event log through the configured publish hook, if any.
func (s *Session) Close() error {
	merged, err := s.Hooks()
	if err != nil || merged == nil || merged.Publish == nil {
		return nil
	}
	return s.eventLog.Flush(&hookPublisher{target: merged.Publish, httpClient: s.HTTPClient})
}
