package distribution

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/railyard/railyard/internal/apperrors"
)

// progressReader wraps an io.Reader, reporting cumulative bytes read to a
// ProgressReporter as the caller consumes it.
type progressReader struct {
	r        io.Reader
	reporter ProgressReporter
	total    int64
	read     int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.reporter.OnProgress(p.read, p.total)
	}
	return n, err
}

// Download streams url to destPath via a temp file plus atomic rename,
// matching the teacher's httpDownloader.Download shape.
func Download(ctx context.Context, client *http.Client, url, destPath string, reporter ProgressReporter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryNetwork, "failed to build download request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CategoryNetwork, "download of %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.CategoryNetwork, "download of %s failed: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create download directory", err)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to create temp download file", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if reporter == nil {
		reporter = NoopReporter{}
	}
	src := &progressReader{r: resp.Body, reporter: reporter, total: resp.ContentLength}

	if _, err := io.Copy(f, src); err != nil {
		return apperrors.Wrap(apperrors.CategoryNetwork, "failed to write downloaded file", err)
	}

	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to close downloaded file", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to move downloaded file into place", err)
	}

	return nil
}
