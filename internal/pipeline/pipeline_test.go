package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"TWHeatmap/internal/collector"
	"TWHeatmap/internal/model"
	"TWHeatmap/internal/reference"
)

func testTable() *reference.Table {
	return reference.NewTable([]string{"A", "B", "C", "D"}, []model.Instrument{
		{Code: "A", Name: "A", Sector: "X", SizeProxy: 10},
		{Code: "B", Name: "B", Sector: "X", SizeProxy: 20},
		{Code: "C", Name: "C", Sector: "Y", SizeProxy: 30},
		{Code: "D", Name: "D", Sector: "Y", SizeProxy: 40},
	})
}

func TestRun_ReportsFailuresAndSkips(t *testing.T) {
	p := &collector.MockProvider{
		Closes: map[string][]float64{
			"A": {100, 110}, "B": {50, 45}, "C": {1, 2}, "D": {3, 4},
		},
		Fail: map[string]error{"C": errors.New("upstream 500")},
	}
	f := collector.NewBatchFetcher(p, 2)
	f.Retries = 0

	r := New(f, testTable()).Run(context.Background())
	if r.Requested != 4 || r.Batches != 2 {
		t.Errorf("expected 4 requested in 2 batches, got %d/%d", r.Requested, r.Batches)
	}
	if len(r.Failures) != 1 || r.Failures[0].Index != 1 {
		t.Fatalf("expected second batch to fail, got %+v", r.Failures)
	}
	if r.Snapshot.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", r.Snapshot.Len())
	}
	if len(r.Skips) != 2 {
		t.Errorf("expected C and D skipped as missing, got %+v", r.Skips)
	}
	if len(r.Progress) == 0 || !strings.Contains(r.Progress[len(r.Progress)-1], "received 2 of 4") {
		t.Errorf("unexpected progress: %v", r.Progress)
	}
}

func TestRun_DoesNotLeakProgressBetweenRuns(t *testing.T) {
	p := &collector.MockProvider{BasePrice: 100}
	f := collector.NewBatchFetcher(p, 10)
	var upstream int
	f.Progress = func(string) { upstream++ }
	pl := New(f, testTable())

	first := pl.Run(context.Background())
	second := pl.Run(context.Background())
	if len(first.Progress) != len(second.Progress) {
		t.Errorf("progress accumulated across runs: %d vs %d", len(first.Progress), len(second.Progress))
	}
	if upstream != len(first.Progress)+len(second.Progress) {
		t.Errorf("upstream callback saw %d messages", upstream)
	}
	if second.Snapshot.Len() != 4 {
		t.Errorf("expected 4 rows, got %d", second.Snapshot.Len())
	}
}
