// Package distribution implements the §4.2 fetch→verify→unpack→rename
// engine: download a distro tarball, verify its checksum, unpack it to a
// scratch directory under layout.TmpDir(), locate its single top-level
// directory, and atomically rename it onto the target image directory.
// Grounded on the teacher's internal/installer/download.Downloader
// (atomic .tmp+rename download) and internal/installer/extract.Extractor.
package distribution

// ProgressReporter receives byte-count updates during download, per §3.1's
// "Default progress reporter" addition; unpacking reports no progress. The distribution engine
// never renders anything itself; cmd/railyard wires an mpb-based reporter
// and cmd/railyard-shim wires NoopReporter, keeping terminal rendering
// external to the engine as the spec's §1 non-goal requires.
type ProgressReporter interface {
	OnProgress(downloaded, total int64)
}

// NoopReporter discards all progress updates.
type NoopReporter struct{}

// OnProgress implements ProgressReporter by doing nothing.
func (NoopReporter) OnProgress(int64, int64) {}
