// Command photox archives photos and videos into a deduplicated,
// date-organized tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "photox",
		Short: "Archive photos and videos with content-based deduplication",
		Long: `photox scans a source tree of photos and videos, groups Live Photo
pairs and editing sidecars, resolves a capture date for each group, and
moves it into a YYYY/MM archive tree — skipping anything whose content
already exists in the archive.`,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newBuildIndexCommand())
	root.AddCommand(newInitCommand())
	root.AddCommand(newStatusCommand())
	return root
}
