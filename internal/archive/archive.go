// Package archive extracts the tar.gz, tar.xz, zip and raw-binary archive
// formats that node, npm and yarn distributions are published in. The
// extractors are adapted from the teacher's internal/installer/extract
// package; this version adds the single-top-level-directory detection that
// internal/distribution's engine needs to locate an unpacked image root,
// grounded on volta-core's tool/registry.go find_unpack_dir.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/ulikunitz/xz"
)

// Type identifies a supported archive format.
type Type string

const (
	TypeTarGz Type = "tar.gz"
	TypeTarXz Type = "tar.xz"
	TypeZip   Type = "zip"
	TypeRaw   Type = "raw"
)

// Normalize maps common aliases (tgz, txz) onto their canonical Type.
func Normalize(raw string) Type {
	switch strings.ToLower(raw) {
	case "tar.gz", "tgz":
		return TypeTarGz
	case "tar.xz", "txz":
		return TypeTarXz
	case "zip":
		return TypeZip
	case "raw":
		return TypeRaw
	default:
		return Type(raw)
	}
}

// Detect infers the archive type from a URL or filename's extension.
func Detect(urlOrFilename string) Type {
	base := filepath.Base(urlOrFilename)
	switch {
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		return TypeTarGz
	case strings.HasSuffix(base, ".tar.xz"), strings.HasSuffix(base, ".txz"):
		return TypeTarXz
	case strings.HasSuffix(base, ".zip"):
		return TypeZip
	default:
		return ""
	}
}

// Extractor unpacks an archive body into destDir.
type Extractor interface {
	Extract(r io.Reader, destDir string) error
}

// NewExtractor returns the Extractor for a given archive Type.
func NewExtractor(t Type) (Extractor, error) {
	switch t {
	case TypeTarGz:
		return tarGzExtractor{}, nil
	case TypeTarXz:
		return tarXzExtractor{}, nil
	case TypeZip:
		return zipExtractor{}, nil
	case TypeRaw:
		return rawExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", t)
	}
}

type tarGzExtractor struct{}

func (tarGzExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting tar.gz archive", "dest", destDir)
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()
	return extractTar(gr, destDir)
}

type tarXzExtractor struct{}

func (tarXzExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting tar.xz archive", "dest", destDir)
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}
	return extractTar(xr, destDir)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("invalid file path: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linkTarget := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if !isInsideDir(destDir, linkTarget) {
				return fmt.Errorf("invalid symlink target: %s -> %s", hdr.Name, hdr.Linkname)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
		}
	}
	return nil
}

type zipExtractor struct{}

func (zipExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting zip archive", "dest", destDir)

	ra, ok := r.(io.ReaderAt)
	if !ok {
		return fmt.Errorf("zip extraction requires io.ReaderAt, got %T", r)
	}

	size, err := readerSize(r)
	if err != nil {
		return fmt.Errorf("failed to get reader size: %w", err)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("failed to create zip reader: %w", err)
	}

	for _, f := range zr.File {
		if isOSMetadataPath(f.Name) {
			continue
		}

		target := filepath.Join(destDir, f.Name)
		if !isInsideDir(destDir, target) {
			return fmt.Errorf("invalid file path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open file in archive: %w", err)
		}
		if err := extractFile(rc, target, f.Mode()); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}

	return nil
}

func readerSize(r io.Reader) (int64, error) {
	switch v := r.(type) {
	case *os.File:
		info, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case interface{ Len() int }:
		return int64(v.Len()), nil
	case io.Seeker:
		current, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		size, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		if _, err := v.Seek(current, io.SeekStart); err != nil {
			return 0, err
		}
		return size, nil
	default:
		return 0, fmt.Errorf("cannot determine size for %T", r)
	}
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || name == "__MACOSX/" || strings.HasPrefix(name, "__MACOSX/")
}

func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && len(rel) > 0 && rel[0] != '.'
}

type rawExtractor struct{}

// Extract copies a raw binary download directly into destDir, named after
// destDir's own base name, and marks it executable. Used for distributions
// (rare for node/yarn, common for vendored CLI tools a hook might point at)
// that are published as a single unwrapped binary.
func (rawExtractor) Extract(r io.Reader, destDir string) error {
	slog.Debug("extracting raw binary", "dest", destDir)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	binName := filepath.Base(destDir)
	target := filepath.Join(destDir, binName)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create binary file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write binary file: %w", err)
	}
	return nil
}

// FindUnpackRoot returns the sole top-level entry of dir, which distribution
// images are expected to contain exactly one of (e.g. "node-v20.11.0-linux-x64/").
// Mirrors volta-core's find_unpack_dir: any other shape is a packaging error.
func FindUnpackRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read unpack directory: %w", err)
	}

	visible := entries[:0:0]
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		visible = append(visible, e)
	}

	if len(visible) != 1 {
		return "", apperrors.PackageUnpackError(dir)
	}

	return filepath.Join(dir, visible[0].Name()), nil
}
