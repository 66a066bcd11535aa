package main

import (
	"fmt"

	"photox/internal/applog"
	"photox/internal/config"
	"photox/internal/hasher"
	"photox/internal/index"
	"photox/internal/metaprobe"
	"photox/internal/organizer"
	"photox/internal/report"
	"photox/internal/runid"
)

// pipeline bundles the wired-up components one CLI invocation needs, and
// their teardown.
type pipeline struct {
	cfg   config.Config
	idx   *index.Store
	sink  *report.Sink
	log   *applog.Logger
	org   *organizer.Organizer
	runID string
}

func buildPipeline(cfg config.Config, exiftoolPath string) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, configErr(fmt.Errorf("config: %w", err))
	}

	log, err := applog.New(applog.DefaultConfig(cfg.DataDir))
	if err != nil {
		return nil, ioErr(fmt.Errorf("logger: %w", err))
	}

	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		log.Sync()
		return nil, ioErr(fmt.Errorf("index: %w", err))
	}

	id := runid.New()
	sink, err := report.New(cfg.ReportDir(id), cfg.RunHistoryPath(), id, cfg.DryRun)
	if err != nil {
		idx.Close()
		log.Sync()
		return nil, ioErr(fmt.Errorf("report: %w", err))
	}

	h := hasher.New(cfg.HashWorkers, cfg.HashThresholdBytes())
	prober := metaprobe.New(cfg.ExiftoolChunkSize, exiftoolPath)
	org := organizer.New(cfg, idx, h, prober, sink, log)

	return &pipeline{cfg: cfg, idx: idx, sink: sink, log: log, org: org, runID: id}, nil
}

func (p *pipeline) close() {
	p.sink.Close()
	p.idx.Close()
	p.log.Sync()
}
