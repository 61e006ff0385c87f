package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/apperrors"
)

var listCmd = &cobra.Command{
	Use:   "list <tool>",
	Short: "List installed versions of a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	toolName := args[0]

	sess, err := newSession()
	if err != nil {
		return err
	}

	if toolName == "node" {
		return listNode(cmd, sess.Layout.Root())
	}

	imageName := toolName
	if toolName != "yarn" {
		imageName = filepath.Join("packages", toolName)
	}
	versions, err := sess.Inventory().ToolVersions(imageName)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		cmd.Printf("No versions of %s installed\n", toolName)
		return nil
	}
	for _, v := range versions {
		cmd.Println(v.String())
	}
	return nil
}

// listNode walks tools/image/node/ directly since node's image directory is
// keyed by both node and npm version, unlike ToolVersions' single-segment
// assumption.
func listNode(cmd *cobra.Command, root string) error {
	nodeRoot := filepath.Join(root, "tools", "image", "node")
	nodeDirs, err := os.ReadDir(nodeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			cmd.Println("No versions of node installed")
			return nil
		}
		return apperrors.Wrap(apperrors.CategoryFilesystem, "failed to list installed node versions", err)
	}

	var lines []string
	for _, nodeDir := range nodeDirs {
		if !nodeDir.IsDir() {
			continue
		}
		npmDirs, err := os.ReadDir(filepath.Join(nodeRoot, nodeDir.Name()))
		if err != nil {
			continue
		}
		for _, npmDir := range npmDirs {
			if !npmDir.IsDir() || npmDir.Name() == "_staging" {
				continue
			}
			lines = append(lines, nodeDir.Name()+" (npm "+npmDir.Name()+")")
		}
	}

	if len(lines) == 0 {
		cmd.Println("No versions of node installed")
		return nil
	}
	sort.Strings(lines)
	for _, l := range lines {
		cmd.Println(l)
	}
	return nil
}
