package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/apperrors"
	"github.com/railyard/railyard/internal/version"
)

var pinCmd = &cobra.Command{
	Use:   "pin <tool>@<spec>",
	Short: "Pin a node, npm, or yarn version for the current project",
	Args:  cobra.ExactArgs(1),
	RunE:  runPin,
}

func runPin(cmd *cobra.Command, args []string) error {
	toolName, rawSpec := splitToolSpec(args[0])
	if toolName != "node" && toolName != "npm" && toolName != "yarn" {
		return apperrors.Newf(apperrors.CategoryArguments, "pin only supports node, npm, or yarn, got %q", toolName)
	}

	spec, err := version.Parse(rawSpec)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryArguments, "invalid version spec", err)
	}

	sess, err := newSession()
	if err != nil {
		return err
	}

	proj, err := sess.Project()
	if err != nil {
		return err
	}
	if proj == nil {
		return apperrors.New(apperrors.CategoryConfiguration, "no project found in this directory or any parent")
	}

	// Check the pin_node_in_toolchain precondition before resolving a
	// version over the network, so pinning npm/yarn without a node pin
	// fails fast and never touches the registry (§8 scenario 3).
	if toolName != "node" && (proj.Manifest.Pinned == nil || proj.Manifest.Pinned.Node == "") {
		return apperrors.NoPinnedNodeVersion()
	}

	resolved, err := sess.ResolveVersion(cmd.Context(), resolverTool(toolName), spec)
	if err != nil {
		return err
	}

	switch toolName {
	case "node":
		err = proj.PinNode(resolved)
	case "npm":
		err = proj.PinNpm(resolved)
	case "yarn":
		err = proj.PinYarn(resolved)
	}
	if err != nil {
		return err
	}

	style := newOutputStyle()
	cmd.Printf("%s Pinned %s\n", style.successMark, style.path.Sprintf("%s@%s", toolName, resolved))
	return nil
}
