package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"photox/internal/applog"
	"photox/internal/config"
	"photox/internal/grouper"
	"photox/internal/pathutil"
	"photox/internal/report"
)

func newRunCommand() *cobra.Command {
	var (
		srcDir, destDir, exiftoolPath string
		dryRun                        bool
		workers, chunkSize, thresholdMB int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the source directory and archive new media into the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(srcDir, destDir)
			if err != nil {
				return configErr(err)
			}
			cfg.DryRun = dryRun
			if workers > 0 {
				cfg.HashWorkers = workers
			}
			if chunkSize > 0 {
				cfg.ExiftoolChunkSize = chunkSize
			}
			if thresholdMB > 0 {
				cfg.HashThresholdMB = thresholdMB
			}

			p, err := buildPipeline(cfg, exiftoolPath)
			if err != nil {
				return err
			}
			defer p.close()

			fmt.Printf("Scanning %s...\n", cfg.Source)
			groups, orphans, err := grouper.Walk(cfg.Source)
			if err != nil {
				return ioErr(fmt.Errorf("scan source: %w", err))
			}
			fmt.Printf("Found %s media groups and %s orphan sidecars.\n",
				humanize.Comma(int64(len(groups))), humanize.Comma(int64(len(orphans))))

			warnIfLowDiskSpace(p, cfg.Dest, groups, orphans)

			bar := progressbar.NewOptions(len(groups)+len(orphans),
				progressbar.OptionSetDescription("Archiving"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetWidth(50),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
			p.org.OnProgress = func() { bar.Add(1) }

			if err := p.org.Run(groups, orphans); err != nil {
				return ioErr(fmt.Errorf("run: %w", err))
			}
			bar.Finish()

			printSummary(p.runID, cfg.DryRun, p.sink.Counts())
			return nil
		},
	}

	cmd.Flags().StringVarP(&srcDir, "src", "s", "", "Source directory to scan (required)")
	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Destination archive directory (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would happen without moving any files")
	cmd.Flags().IntVar(&workers, "workers", 0, "Hashing worker count (default: config default)")
	cmd.Flags().IntVar(&chunkSize, "exiftool-chunk-size", 0, "Paths per exiftool batch invocation")
	cmd.Flags().IntVar(&thresholdMB, "hash-threshold-mb", 0, "Tail-sample threshold in MB")
	cmd.Flags().StringVar(&exiftoolPath, "exiftool-path", "exiftool", "Path to the exiftool binary")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("dest")

	return cmd
}

// warnIfLowDiskSpace is a non-fatal pre-flight check, same spirit as the
// teacher's disk-space guard before a backup run: estimate the bytes this
// run will move and compare against what's actually free at dest, but
// only warn — never abort — since the estimate is necessarily approximate
// (quarantined files still land under dest too) and a false positive
// should not block an otherwise-fine run.
func warnIfLowDiskSpace(p *pipeline, dest string, groups []grouper.MediaGroup, orphans []grouper.MediaFile) {
	var estimated uint64
	for _, g := range groups {
		estimated += uint64(g.Primary.Size)
		for _, sat := range g.Satellites {
			estimated += uint64(sat.Size)
		}
	}
	for _, o := range orphans {
		estimated += uint64(o.Size)
	}

	free, err := pathutil.FreeSpace(dest)
	if err != nil {
		p.log.Warn("could not determine free disk space", applog.String("dest", dest), applog.Err(err))
		return
	}
	if free < estimated {
		color.New(color.FgYellow, color.Bold).Printf(
			"⚠ Low disk space at %s: estimated %s needed, %s available\n",
			dest, humanize.Bytes(estimated), humanize.Bytes(free))
	}
}

func printSummary(runID string, dryRun bool, c report.Counts) {
	label := "Run"
	if dryRun {
		label = "Dry run"
	}
	fmt.Printf("\n%s %s complete.\n", label, runID)
	color.New(color.FgGreen).Printf("Moved: %s  ", humanize.Comma(int64(c.Moved)))
	color.New(color.FgYellow).Printf("Duplicates: %s  DestDuplicates: %s  Orphans: %s  Unrecognized: %s  ",
		humanize.Comma(int64(c.Duplicate)), humanize.Comma(int64(c.DestDuplicate)),
		humanize.Comma(int64(c.OrphanSidecar)), humanize.Comma(int64(c.Unrecognized)))
	color.New(color.FgRed).Printf("Errors: %s\n", humanize.Comma(int64(c.Error)))
}
