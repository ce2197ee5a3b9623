package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"TWHeatmap/internal/model"
)

// BatchFetcher splits the universe into fixed-size batches and asks the
// provider for a trailing window of daily closes per batch. A failed batch is
// logged once and omitted; it never aborts the others.
type BatchFetcher struct {
	Provider     Provider
	BatchSize    int
	LookbackDays int           // calendar days, enough to bridge weekends and holidays
	Timeout      time.Duration // per attempt; 0 disables
	Retries      int           // extra attempts after the first
	RetryDelay   time.Duration
	Workers      int           // concurrent batches; <= 1 runs them in order
	Limiter      *rate.Limiter // paces batch requests; nil disables
	Progress     func(msg string)
	Location     *time.Location
	Now          func() time.Time
}

// NewBatchFetcher creates a fetcher with the defaults used by the dashboard.
func NewBatchFetcher(p Provider, batchSize int) *BatchFetcher {
	return &BatchFetcher{
		Provider:     p,
		BatchSize:    batchSize,
		LookbackDays: 7,
		Timeout:      20 * time.Second,
		Retries:      1,
		RetryDelay:   time.Second,
		Workers:      1,
	}
}

// Split partitions codes into contiguous batches of size; the last batch may
// be shorter. A non-positive size yields a single batch.
func Split(codes []string, size int) [][]string {
	if len(codes) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(codes)
	}
	batches := make([][]string, 0, (len(codes)+size-1)/size)
	for i := 0; i < len(codes); i += size {
		end := min(i+size, len(codes))
		batches = append(batches, codes[i:end])
	}
	return batches
}

// Window returns the trailing range ending today in the fetcher's location.
func (f *BatchFetcher) Window() Window {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now().In(loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
	days := f.LookbackDays
	if days < 2 {
		days = 2
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -days)
	return Window{Start: start, End: end}
}

// Fetch requests every batch and merges the successful ones. It returns the
// merged histories (empty, never nil, when everything failed), one failure per
// omitted batch, and the number of batches issued.
func (f *BatchFetcher) Fetch(ctx context.Context, codes []string) (*model.BatchResult, []model.BatchFailure, int) {
	uniq := dedupe(codes)
	batches := Split(uniq, f.BatchSize)
	merged := model.NewBatchResult()
	if len(batches) == 0 {
		return merged, nil, 0
	}

	w := f.Window()
	results := make([]*model.BatchResult, len(batches))
	errs := make([]error, len(batches))

	var progressMu sync.Mutex
	progress := func(msg string) {
		slog.Debug(msg, "provider", f.Provider.Name())
		if f.Progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		f.Progress(msg)
	}

	var g errgroup.Group
	g.SetLimit(max(f.Workers, 1))
	for i, batch := range batches {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i], errs[i] = nil, fmt.Errorf("provider panicked: %v", r)
				}
			}()
			progress(fmt.Sprintf("requesting batch %d/%d (%d symbols) from %s", i+1, len(batches), len(batch), f.Provider.Name()))
			results[i], errs[i] = f.fetchBatch(ctx, batch, w)
			return nil
		})
	}
	// Normalization must only see fully merged results.
	_ = g.Wait()

	var failures []model.BatchFailure
	for i, batch := range batches {
		if errs[i] != nil {
			slog.Warn("batch fetch failed, omitting batch",
				"provider", f.Provider.Name(),
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"symbols", len(batch),
				"error", errs[i],
			)
			progress(fmt.Sprintf("batch %d/%d failed: %v", i+1, len(batches), errs[i]))
			failures = append(failures, model.BatchFailure{
				Index:   i,
				Symbols: append([]string(nil), batch...),
				Err:     errs[i].Error(),
			})
			continue
		}
		merged.Merge(results[i])
	}
	progress(fmt.Sprintf("received %d of %d symbols (%d/%d batches ok)", merged.Len(), len(uniq), len(batches)-len(failures), len(batches)))
	return merged, failures, len(batches)
}

func (f *BatchFetcher) fetchBatch(ctx context.Context, batch []string, w Window) (*model.BatchResult, error) {
	var out *model.BatchResult
	label := fmt.Sprintf("%s batch of %d", f.Provider.Name(), len(batch))
	err := retry(ctx, f.Retries+1, f.RetryDelay, label, func() error {
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		actx, cancel := ctx, context.CancelFunc(func() {})
		if f.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, f.Timeout)
		}
		defer cancel()

		res, err := f.Provider.FetchBatch(actx, batch, w)
		if err != nil {
			return err
		}
		if res.Len() == 0 {
			return ErrEmptyBatch
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
