package main

import (
	"fmt"
	"os"

	"github.com/railyard/railyard/internal/apperrors"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if e, ok := err.(*apperrors.Error); ok && e.Hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", e.Hint)
		}
		os.Exit(apperrors.ExitCodeOf(err))
	}
}
