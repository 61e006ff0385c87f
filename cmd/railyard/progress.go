package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/railyard/railyard/internal/distribution"
)

// cliReporter renders one mpb progress bar per download, reused across the
// lifetime of a single install invocation. On a non-TTY output (piped,
// redirected) it stays silent rather than spamming line-buffered progress,
// matching the teacher's isTTY gate in cmd/toto's progressManager.
type cliReporter struct {
	mu       sync.Mutex
	w        io.Writer
	isTTY    bool
	progress *mpb.Progress
	bar      *mpb.Bar
	name     string
}

// newCLIReporter builds a reporter labeling its bar with name (e.g.
// "node@20.11.0").
func newCLIReporter(name string) *cliReporter {
	w := os.Stderr
	isTTY := isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())

	r := &cliReporter{w: w, isTTY: isTTY, name: name}
	if isTTY {
		r.progress = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return r
}

// OnProgress implements distribution.ProgressReporter.
func (r *cliReporter) OnProgress(downloaded, total int64) {
	if !r.isTTY {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		r.bar = r.progress.AddBar(0,
			mpb.BarFillerClearOnComplete(),
			mpb.PrependDecorators(decor.Name(r.name, decor.WC{W: 20})),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f"),
				decor.OnComplete(decor.Name(""), " done"),
			),
		)
	}
	if total > 0 {
		r.bar.SetTotal(total, false)
	}
	r.bar.SetCurrent(downloaded)
	if total > 0 && downloaded >= total {
		r.bar.SetTotal(total, true)
	}
}

// Wait blocks until the bar finishes rendering.
func (r *cliReporter) Wait() {
	if r.progress != nil {
		r.progress.Wait()
	}
}

// withReporter runs fn with a fresh cliReporter wired into sess, printing a
// plain line instead of a bar when stderr isn't a TTY.
func withReporter(name string, setReporter func(distribution.ProgressReporter), fn func() error) error {
	r := newCLIReporter(name)
	setReporter(r)
	if !r.isTTY {
		fmt.Fprintf(os.Stderr, "Fetching %s...\n", name)
	}
	err := fn()
	r.Wait()
	return err
}
