package distribution

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/archive"
	"github.com/railyard/railyard/internal/checksum"
	"github.com/railyard/railyard/internal/layout"
)

// Distro describes one fetch attempt: a specific archive for a specific
// tool version, and where it should end up once installed.
type Distro struct {
	Kind           string // "node", "yarn", or "packages"
	Name           string
	Version        string
	RemoteURL      string
	ArchiveType    archive.Type
	ChecksumAlg    checksum.Algorithm
	ExpectedShasum string // hex digest; empty means "unknown, verify and record"
	ImageDir       string
}

// FetchOutcome discriminates the three shapes of a fetch result (§4.2
// contract: Fetched = Already | Installed | Now).
type FetchOutcome int

const (
	// Already means the image directory was already fully populated.
	Already FetchOutcome = iota
	// Installed means a cached, checksum-valid tarball was unpacked
	// without a network round-trip.
	Installed
	// Now means a fresh download was required.
	Now
)

// Result is the outcome of one Fetch call.
type Result struct {
	Outcome FetchOutcome
	Shasum  string
}

// Engine runs the fetch→verify→unpack→rename pipeline.
type Engine struct {
	Layout     *layout.Layout
	HTTPClient *http.Client
}

// New builds an Engine.
func New(l *layout.Layout) *Engine {
	return &Engine{Layout: l, HTTPClient: http.DefaultClient}
}

// Fetch runs the full §4.2 algorithm for one distro. Callers are
// responsible for holding the inventory.Lock around this call and for
// writing package/bin configs afterward — this engine only owns the
// image directory's contents.
func (e *Engine) Fetch(ctx context.Context, d Distro, reporter ProgressReporter) (Result, error) {
	if dirIsPopulated(d.ImageDir) {
		return Result{Outcome: Already}, nil
	}

	// A URL with no recognizable archive extension (e.g. a hook template
	// such as .../node/{{version}}) is unpacked as tar.gz, the format of
	// every default distro URL.
	if d.ArchiveType == "" {
		d.ArchiveType = archive.TypeTarGz
	}

	cacheDir := e.Layout.InventoryDir(d.Kind)
	filename := d.Name + "-" + d.Version + "-" + string(d.ArchiveType)
	tarballPath := filepath.Join(cacheDir, filename)
	sidecarPath := tarballPath + ".shasum"

	outcome := Now
	shasum := d.ExpectedShasum

	if cachedShasum, ok := readSidecar(sidecarPath); ok {
		alg := d.ChecksumAlg
		if alg == "" {
			alg = checksum.DetectAlgorithm(cachedShasum)
		}
		if actual, err := checksum.Calculate(tarballPath, alg); err == nil && actual == cachedShasum {
			outcome = Installed
			shasum = cachedShasum
		} else {
			_ = os.Remove(tarballPath)
			_ = os.Remove(sidecarPath)
		}
	}

	if outcome == Now {
		if err := Download(ctx, e.HTTPClient, d.RemoteURL, tarballPath, reporter); err != nil {
			return Result{}, err
		}

		alg := d.ChecksumAlg
		if alg == "" {
			alg = checksum.AlgorithmSHA256
		}
		actual, err := checksum.Calculate(tarballPath, alg)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to checksum downloaded file", err)
		}
		if d.ExpectedShasum != "" && actual != d.ExpectedShasum {
			_ = os.Remove(tarballPath)
			return Result{}, apperrors.Newf(apperrors.CategoryNetwork, "checksum mismatch for %s: expected %s, got %s", d.Name, d.ExpectedShasum, actual)
		}
		shasum = actual
	}

	if err := e.unpackAndInstall(tarballPath, d); err != nil {
		return Result{}, err
	}

	if err := writeSidecar(sidecarPath, shasum); err != nil {
		return Result{}, err
	}

	return Result{Outcome: outcome, Shasum: shasum}, nil
}

func (e *Engine) unpackAndInstall(tarballPath string, d Distro) error {
	tmpDir, err := os.MkdirTemp(e.Layout.TmpDir(), "unpack-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create temp unpack directory", err)
	}
	defer os.RemoveAll(tmpDir)

	f, err := os.Open(tarballPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to open downloaded archive", err)
	}
	defer f.Close()

	extractor, err := archive.NewExtractor(d.ArchiveType)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryConfiguration, "unsupported archive type", err)
	}
	if err := extractor.Extract(f, tmpDir); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to extract archive", err)
	}

	unpackRoot, err := archive.FindUnpackRoot(tmpDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(d.ImageDir), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create image parent directory", err)
	}
	if dirExists(d.ImageDir) {
		if err := os.RemoveAll(d.ImageDir); err != nil {
			return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to remove stale partial image", err)
		}
	}

	if err := os.Rename(unpackRoot, d.ImageDir); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to move unpacked image into place", err)
	}

	if runtime.GOOS != "windows" {
		if err := ensureExecutable(filepath.Join(d.ImageDir, "bin")); err != nil {
			return err
		}
	}

	return nil
}

func dirIsPopulated(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

func dirExists(dir string) bool {
	_, err := os.Stat(dir)
	return err == nil
}

func readSidecar(path string) (string, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(content), true
}

func writeSidecar(path, shasum string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create sidecar directory", err)
	}
	if err := os.WriteFile(path, []byte(shasum), 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to write shasum sidecar", err)
	}
	return nil
}

// ensureExecutable sets the +x bit on every regular file directly inside
// binDir, per §4.2 step 9 ("for Node on Unix, ensure each binary in the
// image has +x bits").
func ensureExecutable(binDir string) error {
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to list image bin directory", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(binDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if err := os.Chmod(path, info.Mode()|0o111); err != nil {
			return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to mark binary executable", err)
		}
	}
	return nil
}
