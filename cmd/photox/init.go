package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"photox/internal/config"
	"photox/internal/index"
)

func newInitCommand() *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the archive's data directory and an empty fingerprint index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(destDir, destDir)
			if err != nil {
				return configErr(err)
			}
			if err := cfg.Validate(); err != nil {
				return configErr(fmt.Errorf("config: %w", err))
			}

			idx, err := index.Open(cfg.IndexPath())
			if err != nil {
				return ioErr(fmt.Errorf("index: %w", err))
			}
			defer idx.Close()

			color.New(color.FgGreen, color.Bold).Printf("Initialized archive at %s\n", cfg.Dest)
			fmt.Printf("  index:    %s\n", cfg.IndexPath())
			fmt.Printf("  reports:  %s\n", cfg.ReportDir("<run-id>"))
			fmt.Printf("  history:  %s\n", cfg.RunHistoryPath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Archive directory to initialize (required)")
	cmd.MarkFlagRequired("dest")
	return cmd
}
