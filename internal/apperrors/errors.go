// Package apperrors provides structured error types for railyard.
// These errors carry rich context information that can be formatted
// for human-readable CLI output and mapped onto the tool's stable exit codes.
package apperrors

import (
	"errors"
	"fmt"
)

// Category classifies an error into one of the taxonomy buckets the top-level
// handler uses to pick an exit code and a user-facing message shape.
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryFilesystem    Category = "filesystem"
	CategoryConfiguration Category = "configuration"
	CategoryVersion       Category = "version"
	CategoryExecution     Category = "execution"
	CategoryEnvironment   Category = "environment"
	CategoryArguments     Category = "arguments"
	CategoryInternal      Category = "internal"
)

// ExitCode returns the stable process exit code for this category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryArguments:
		return 3
	case CategoryVersion:
		return 4
	case CategoryNetwork:
		return 5
	case CategoryEnvironment:
		return 6
	case CategoryFilesystem:
		return 7
	case CategoryConfiguration:
		return 8
	case CategoryInternal:
		return 1
	default:
		return 1
	}
}

// Error is the base error type for railyard.
type Error struct {
	Category Category
	Message  string
	Details  map[string]any
	Hint     string
	Cause    error

	// exitCode overrides the category's default exit code when set (non-zero).
	// Used for errors like BinaryNotFound (127) and the execution failure
	// toolexec.Run reports (126), which don't follow the 1:1 category mapping.
	exitCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by category and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Message == t.Message
}

// ExitCode returns the process exit code for this error.
func (e *Error) ExitCode() int {
	if e.exitCode != 0 {
		return e.exitCode
	}
	return e.Category.ExitCode()
}

// WithHint sets the hint and returns the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithDetail adds a detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithExitCode overrides the exit code and returns the error for chaining.
func (e *Error) WithExitCode(code int) *Error {
	e.exitCode = code
	return e
}

// New creates a new Error with the given category and message.
func New(category Category, message string) *Error {
	return &Error{Category: category, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// Wrapf creates a new Error wrapping an existing error with a formatted message.
func Wrapf(cause error, category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ExitCodeOf extracts the process exit code from any error. Errors that are
// not *Error map to exit code 1 (unknown error), per the spec's exit code table.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if ok := As(err, &e); ok {
		return e.ExitCode()
	}
	return 1
}

// As is a thin wrapper around errors.As kept local so callers only need to
// import this package for the common case of unwrapping an *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Sentinel errors for specific named conditions the spec calls out by name.
// These are ordinary *Error values; callers compare with errors.Is or by
// checking Category+Message via Is().

// NoPinnedNodeVersion is raised when pinning Yarn (or npm) before Node is pinned.
func NoPinnedNodeVersion() *Error {
	return New(CategoryConfiguration, "There is no pinned node version for this project").
		WithHint("Pin a node version first, e.g. `railyard pin node@<version>`")
}

// NoPlatform is raised when an operation requires a platform but none is configured.
func NoPlatform() *Error {
	return New(CategoryConfiguration, "No node platform is configured for this project or user")
}

// BinaryNotFound is raised when the shim cannot resolve an invocation name to anything runnable.
func BinaryNotFound(name string) *Error {
	return New(CategoryExecution, fmt.Sprintf("could not find an executable named %q", name)).
		WithDetail("name", name).
		WithExitCode(127)
}

// NpxNotAvailable is raised when the effective npm version predates npx (< 5.2.0).
func NpxNotAvailable(npmVersion string) *Error {
	return New(CategoryExecution, fmt.Sprintf("npx is not available with npm %s (requires npm >= 5.2.0)", npmVersion)).
		WithDetail("npmVersion", npmVersion).
		WithExitCode(127)
}

// PackageUnpackError is raised when an archive does not unpack to exactly one top-level directory.
func PackageUnpackError(archivePath string) *Error {
	return New(CategoryFilesystem, fmt.Sprintf("could not determine the unpacked root of %s", archivePath)).
		WithDetail("archive", archivePath)
}

// NoVersionMatching is raised when a resolver finds no version satisfying a spec.
func NoVersionMatching(tool, spec string) *Error {
	return New(CategoryVersion, fmt.Sprintf("no version of %s matching %q was found", tool, spec)).
		WithDetail("tool", tool).
		WithDetail("spec", spec)
}

// HookMultipleFieldsSpecified is raised when a hook field defines more than one resolver kind.
func HookMultipleFieldsSpecified(field string) *Error {
	return New(CategoryConfiguration, fmt.Sprintf("hook field %q specifies more than one of template/prefix/bin", field)).
		WithDetail("field", field)
}

// HookNoFieldsSpecified is raised when a hook field defines no resolver kind.
func HookNoFieldsSpecified(field string) *Error {
	return New(CategoryConfiguration, fmt.Sprintf("hook field %q specifies none of template/prefix/bin", field)).
		WithDetail("field", field)
}

// HookLoadError is raised when hook/workspace extension loading fails (including cycles).
func HookLoadError(detail string) *Error {
	return New(CategoryConfiguration, fmt.Sprintf("failed to load hooks: %s", detail))
}
