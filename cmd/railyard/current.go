package main

import "github.com/spf13/cobra"

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the platform that would be checked out here",
	Args:  cobra.NoArgs,
	RunE:  runCurrent,
}

func runCurrent(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	sourced, err := sess.CurrentPlatform()
	if err != nil {
		return err
	}
	if sourced == nil {
		cmd.Println("No platform configured; run `railyard setup` or pin a project node version")
		return nil
	}

	cmd.Printf("node %s (%s)\n", sourced.Spec.Node, sourced.Provenance)
	if sourced.Spec.Npm != "" {
		cmd.Printf("npm  %s\n", sourced.Spec.Npm)
	}
	if sourced.Spec.Yarn != "" {
		cmd.Printf("yarn %s\n", sourced.Spec.Yarn)
	}
	return nil
}
