package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/version"
)

var installCmd = &cobra.Command{
	Use:   "install <tool>@<spec>",
	Short: "Install node, yarn, or an npm package",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	toolName, rawSpec := splitToolSpec(args[0])

	spec, err := version.Parse(rawSpec)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryArguments, "invalid version spec", err)
	}

	sess, err := newSession()
	if err != nil {
		return err
	}

	if toolName == "npm" {
		return apperrors.New(apperrors.CategoryArguments, "npm ships bundled with node; pin an npm version with `railyard pin npm@<spec>` instead of installing it directly")
	}

	var resolved string
	err = withReporter(args[0], sess.SetProgressReporter, func() error {
		var innerErr error
		switch toolName {
		case "node":
			resolved, _, innerErr = sess.EnsureNode(cmd.Context(), spec)
		case "yarn":
			resolved, _, innerErr = sess.EnsureYarn(cmd.Context(), spec)
		default:
			sourced, err := sess.CurrentPlatform()
			if err != nil {
				return err
			}
			if sourced == nil {
				return apperrors.NoPlatform().WithHint("pin a node version first, e.g. `railyard pin node@lts`")
			}
			resolved, innerErr = sess.EnsurePackage(cmd.Context(), toolName, spec, sourced.Spec)
		}
		return innerErr
	})
	if err != nil {
		return err
	}

	style := newOutputStyle()
	cmd.Printf("%s Installed %s\n", style.successMark, style.path.Sprintf("%s@%s", toolName, resolved))
	return nil
}
