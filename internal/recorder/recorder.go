package recorder

import (
	"context"
	"strings"
	"time"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/snapcache"
)

// CycleRecord is the audit entry of one executed fetch cycle.
type CycleRecord struct {
	CycleID       string
	Status        string
	FetchedAt     time.Time
	AsOf          time.Time
	Duration      time.Duration
	Requested     int
	Batches       int
	FailedBatches int
	Warnings      string
	Rows          []model.MarketRow // stored only for fresh cycles
	Skips         []model.Skip
}

// FromResult converts a cache result into a record.
func FromResult(r snapcache.Result) *CycleRecord {
	rec := &CycleRecord{
		CycleID:   r.CycleID,
		Status:    string(r.Status),
		FetchedAt: r.FetchedAt,
		AsOf:      r.Snapshot.AsOf,
		Duration:  r.Duration,
		Warnings:  strings.Join(r.Warnings, "\n"),
	}
	if r.Status == snapcache.StatusFresh {
		rec.Rows = r.Snapshot.Rows
	}
	if rep := r.Report; rep != nil {
		rec.Requested = rep.Requested
		rec.Batches = rep.Batches
		rec.FailedBatches = len(rep.Failures)
		rec.Skips = rep.Skips
	}
	return rec
}

// Recorder keeps an audit trail of cycles. It is write-only: nothing reads it
// back to serve or restore snapshots.
type Recorder interface {
	RecordCycle(ctx context.Context, rec *CycleRecord) error
	Close() error
}
