package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/platform"
	"github.com/railyard/railyard/internal/resolver"
	"github.com/railyard/railyard/internal/version"
)

var setupFlags struct {
	node string
	npm  string
	yarn string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the user-wide default platform used outside any project",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupFlags.node, "node", "lts", "Default node version or tag")
	setupCmd.Flags().StringVar(&setupFlags.npm, "npm", "", "Default npm version (defaults to node's bundled npm)")
	setupCmd.Flags().StringVar(&setupFlags.yarn, "yarn", "", "Default yarn version or tag")
}

func runSetup(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	nodeSpec, err := version.Parse(setupFlags.node)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryArguments, "invalid node version spec", err)
	}
	resolvedNode, err := sess.ResolveVersion(cmd.Context(), resolver.Tool{Kind: resolver.ToolNode}, nodeSpec)
	if err != nil {
		return err
	}

	out := platform.Spec{Node: resolvedNode}

	if setupFlags.npm != "" {
		npmSpec, err := version.Parse(setupFlags.npm)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryArguments, "invalid npm version spec", err)
		}
		resolvedNpm, err := sess.ResolveVersion(cmd.Context(), resolver.Tool{Kind: resolver.ToolNpm}, npmSpec)
		if err != nil {
			return err
		}
		out.Npm = resolvedNpm
	}

	if setupFlags.yarn != "" {
		yarnSpec, err := version.Parse(setupFlags.yarn)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryArguments, "invalid yarn version spec", err)
		}
		resolvedYarn, err := sess.ResolveVersion(cmd.Context(), resolver.Tool{Kind: resolver.ToolYarn}, yarnSpec)
		if err != nil {
			return err
		}
		out.Yarn = resolvedYarn
	}

	if err := sess.SetUserDefaultPlatform(out); err != nil {
		return err
	}

	cmd.Printf("Default platform set: node %s", out.Node)
	if out.Npm != "" {
		cmd.Printf(", npm %s", out.Npm)
	}
	if out.Yarn != "" {
		cmd.Printf(", yarn %s", out.Yarn)
	}
	cmd.Println()
	return nil
}
