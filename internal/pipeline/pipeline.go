// Package pipeline runs one fetch-and-normalize cycle over the universe.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"TWHeatmap/internal/collector"
	"TWHeatmap/internal/model"
	"TWHeatmap/internal/normalizer"
	"TWHeatmap/internal/reference"
)

// Pipeline wires the batch fetcher to the normalizer.
type Pipeline struct {
	Fetcher *collector.BatchFetcher
	Table   *reference.Table
}

// New creates a pipeline.
func New(f *collector.BatchFetcher, t *reference.Table) *Pipeline {
	return &Pipeline{Fetcher: f, Table: t}
}

// Run fetches every batch, waits for all of them, then normalizes the merged
// result. It never fails: every problem is carried in the report.
func (p *Pipeline) Run(ctx context.Context) *model.CycleReport {
	start := time.Now()
	codes := p.Table.Codes()
	report := &model.CycleReport{Requested: len(codes)}

	// The fetcher is shared, so progress goes through a per-run copy.
	f := *p.Fetcher
	upstream := p.Fetcher.Progress
	f.Progress = func(msg string) {
		report.Progress = append(report.Progress, msg)
		if upstream != nil {
			upstream(msg)
		}
	}

	result, failures, batches := f.Fetch(ctx, codes)
	report.Failures = failures
	report.Batches = batches
	report.Snapshot, report.Skips = normalizer.Normalize(result, p.Table)

	for _, s := range report.Skips {
		slog.Debug("instrument skipped", "code", s.Code, "reason", s.Reason, "detail", s.Detail)
	}
	slog.Info("cycle finished",
		"provider", f.Provider.Name(),
		"rows", report.Snapshot.Len(),
		"requested", report.Requested,
		"skipped", len(report.Skips),
		"failed_batches", len(failures),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report
}
