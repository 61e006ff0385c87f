// Package toolexec builds and runs the final child process a shim or CLI
// command dispatches to, with a derived PATH/environment, connecting its
// stdio directly to the parent's and surfacing its exit status. Grounded on
// the teacher's internal/installer/command.Executor buildCommand/Execute
// shape, simplified: there is no command-line templating here, only a
// fixed binary path and argument vector, since §4.5 dispatch already
// resolved exactly what to run.
package toolexec

import (
	"context"
	"os"
	"os/exec"
	"os/signal"

	"github.com/railyard/railyard/internal/apperrors"
)

// Spec describes one child process to launch.
type Spec struct {
	Path string
	Args []string
	// PATH, if non-empty, replaces the PATH environment variable inherited
	// from os.Environ(); Path is the binary to exec.
	PATH string
}

// Run execs spec's binary, connecting stdin/stdout/stderr to the current
// process, and blocks until it exits. It returns the child's exit code
// (never erroring on a clean non-zero exit — that is a normal outcome the
// caller should os.Exit with) and an *apperrors.Error only for failures to
// even start the child.
func Run(ctx context.Context, spec Spec) (int, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = replacePath(os.Environ(), spec.PATH)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, apperrors.New(apperrors.CategoryExecution, "failed to execute "+spec.Path).
			WithDetail("path", spec.Path).
			WithExitCode(126)
	}

	return 0, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	e, ok := err.(*exec.ExitError)
	if ok {
		*target = e
	}
	return ok
}

// replacePath returns a copy of env with the PATH entry replaced by path
// (or appended if absent).
func replacePath(env []string, path string) []string {
	if path == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	replaced := false
	for _, kv := range env {
		if len(kv) >= 5 && kv[:5] == "PATH=" {
			out = append(out, "PATH="+path)
			replaced = true
			continue
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, "PATH="+path)
	}
	return out
}

// InterruptContext returns a context canceled on SIGINT, per §5's
// cancellation requirement that in-flight network calls abort promptly on
// Ctrl-C. Callers should defer the returned stop function.
func InterruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
