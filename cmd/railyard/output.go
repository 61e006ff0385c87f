package main

import "github.com/fatih/color"

// outputStyle holds common output styling for CLI commands.
type outputStyle struct {
	successMark string
	path        *color.Color
}

// newOutputStyle creates a new outputStyle with standard colors.
func newOutputStyle() *outputStyle {
	return &outputStyle{
		successMark: color.New(color.FgGreen).Sprint("✓"),
		path:        color.New(color.FgCyan),
	}
}
