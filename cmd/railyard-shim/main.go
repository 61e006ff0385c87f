// Command railyard-shim is the dispatch binary installed under a tool's
// name (node, npm, npx, yarn, or any installed package binary) on the
// user's PATH. It never prints progress or logs by default: every
// invocation is latency-critical, so it wires a no-op reporter and only
// speaks on stderr when dispatch itself fails (§4.5).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/layout"
	"github.com/railyard/railyard/internal/session"
	"github.com/railyard/railyard/internal/shim"
	"github.com/railyard/railyard/internal/toolexec"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := toolexec.InterruptContext()
	defer stop()

	name := filepath.Base(os.Args[0])
	// Windows invokes shims with a .exe/.cmd suffix; strip it so dispatch
	// matches on the bare tool name.
	name = trimExt(name)
	args := os.Args[1:]

	l, err := layout.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "railyard-shim: %v\n", err)
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "railyard-shim: %v\n", err)
		return 1
	}

	sess := session.New(l, wd)
	defer sess.Close()

	finish := sess.EventLog().Start("shim:" + name)

	spec, err := shim.Resolve(ctx, sess, name, args)
	if err != nil {
		finish(apperrors.ExitCodeOf(err))
		fmt.Fprintf(os.Stderr, "railyard-shim: %v\n", err)
		if e, ok := err.(*apperrors.Error); ok && e.Hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", e.Hint)
		}
		return apperrors.ExitCodeOf(err)
	}

	code, err := toolexec.Run(ctx, spec)
	if err != nil {
		finish(apperrors.ExitCodeOf(err))
		fmt.Fprintf(os.Stderr, "railyard-shim: %v\n", err)
		return apperrors.ExitCodeOf(err)
	}

	finish(code)
	return code
}

func trimExt(name string) string {
	switch filepath.Ext(name) {
	case ".exe", ".cmd", ".bat":
		return name[:len(name)-len(filepath.Ext(name))]
	default:
		return name
	}
}
