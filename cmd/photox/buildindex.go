package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photox/internal/config"
)

func newBuildIndexCommand() *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Rebuild the fingerprint index from the contents of an existing archive",
		Long: `build-index walks the destination archive directly (rather than a
separate source tree), re-fingerprinting every file already in it. Use
this to recover an index lost or corrupted independently of the
archive, or to fold in files that were copied into the archive outside
of photox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(destDir, destDir)
			if err != nil {
				return configErr(err)
			}
			cfg.IncludeDest = true

			p, err := buildPipeline(cfg, "exiftool")
			if err != nil {
				return err
			}
			defer p.close()

			fmt.Printf("Rebuilding index from %s...\n", cfg.Dest)
			if err := p.org.BuildIndex(); err != nil {
				return ioErr(fmt.Errorf("build-index: %w", err))
			}
			printSummary(p.runID, cfg.DryRun, p.sink.Counts())
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Archive directory to re-index (required)")
	cmd.MarkFlagRequired("dest")
	return cmd
}
