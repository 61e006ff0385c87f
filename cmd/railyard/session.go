package main

import (
	"os"
	"strings"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/layout"
	"github.com/railyard/railyard/internal/resolver"
	"github.com/railyard/railyard/internal/session"
)

// newSession resolves the railyard root and builds a Session rooted at the
// current working directory, the shape every subcommand starts from.
func newSession() (*session.Session, error) {
	l, err := layout.New()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to resolve railyard home", err)
	}
	if err := l.EnsureDirs(); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryFilesystem, "failed to resolve working directory", err)
	}

	return session.New(l, wd), nil
}

// splitToolSpec splits "tool@spec" into its two halves, e.g.
// "node@20.11.0" or "eslint@^8.0.0". A bare tool name defaults to "latest".
func splitToolSpec(arg string) (tool, spec string) {
	idx := strings.LastIndex(arg, "@")
	if idx <= 0 {
		return arg, "latest"
	}
	return arg[:idx], arg[idx+1:]
}

// resolverTool maps a bare tool name to its resolver.Tool, treating
// anything that isn't node/npm/yarn as an installable package.
func resolverTool(name string) resolver.Tool {
	switch name {
	case "node":
		return resolver.Tool{Kind: resolver.ToolNode}
	case "npm":
		return resolver.Tool{Kind: resolver.ToolNpm}
	case "yarn":
		return resolver.Tool{Kind: resolver.ToolYarn}
	default:
		return resolver.Tool{Kind: resolver.ToolPackage, Name: name}
	}
}
