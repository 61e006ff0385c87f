package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/shim"
)

var whichCmd = &cobra.Command{
	Use:   "which <bin>",
	Short: "Show which executable a name would dispatch to",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhich,
}

func runWhich(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	spec, err := shim.Resolve(cmd.Context(), sess, args[0], nil)
	if err != nil {
		return err
	}

	cmd.Println(spec.Path)
	return nil
}
