package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"photox/internal/config"
	"photox/internal/index"
	"photox/internal/report"
)

func newStatusCommand() *cobra.Command {
	var destDir string
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the fingerprint index size and recent run history for an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(destDir, destDir)
			if err != nil {
				return configErr(err)
			}

			idx, err := index.Open(cfg.IndexPath())
			if err != nil {
				return ioErr(fmt.Errorf("index: %w", err))
			}
			defer idx.Close()

			paths, err := idx.AllPaths()
			if err != nil {
				return ioErr(fmt.Errorf("index: %w", err))
			}
			color.New(color.Bold).Printf("Archive: %s\n", cfg.Dest)
			fmt.Printf("  indexed files: %d\n", len(paths))

			history, err := report.LoadHistory(cfg.RunHistoryPath())
			if err != nil {
				return ioErr(fmt.Errorf("run history: %w", err))
			}
			if len(history) == 0 {
				fmt.Println("  no prior runs recorded")
				return nil
			}

			start := 0
			if recent > 0 && len(history) > recent {
				start = len(history) - recent
			}
			fmt.Println("  recent runs:")
			for _, rec := range history[start:] {
				fmt.Printf("    %-36s moved=%-5d duplicate=%-5d error=%-5d (%s)\n",
					rec.RunID, rec.Counts.Moved, rec.Counts.Duplicate, rec.Counts.Error,
					rec.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Archive directory to inspect (required)")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent runs to display (0 = all)")
	cmd.MarkFlagRequired("dest")
	return cmd
}
