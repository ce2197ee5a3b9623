// Package snapcache memoizes fetch cycles and falls back to the last good
// snapshot when a cycle produces nothing.
package snapcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"TWHeatmap/internal/model"
)

// Status describes where a result's snapshot came from.
type Status string

const (
	StatusFresh  Status = "fresh"
	StatusStale  Status = "stale"
	StatusNoData Status = "no_data"
)

const (
	DefaultTTL        = time.Hour
	DefaultFailureTTL = time.Minute
)

// Runner executes one fetch-and-normalize cycle.
type Runner interface {
	Run(ctx context.Context) *model.CycleReport
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) *model.CycleReport

func (f RunnerFunc) Run(ctx context.Context) *model.CycleReport { return f(ctx) }

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	TTL        time.Duration // memo lifetime of a fresh result
	FailureTTL time.Duration // memo lifetime of a stale or no_data result
	Now        func() time.Time
}

// Result is what a caller renders.
type Result struct {
	Snapshot   model.Snapshot
	Status     Status
	Warnings   []string
	CycleID    string
	FetchedAt  time.Time
	LastGoodAt time.Time // zero when no good snapshot exists yet
	Duration   time.Duration
	Memoized   bool
	Report     *model.CycleReport
}

// Stale reports whether the snapshot is an older fallback.
func (r Result) Stale() bool { return r.Status == StatusStale }

type memo struct {
	token   uint64
	result  Result
	expires time.Time
}

// Cache owns the memo and the last good snapshot. Cycles never overlap: a
// caller arriving during a cycle waits for it and then sees its memo.
type Cache struct {
	runner Runner
	opts   Options

	mu         sync.Mutex
	token      uint64
	memo       *memo
	lastGood   *model.Snapshot
	lastGoodAt time.Time
	last       *Result
	observers  []func(Result)
}

// New creates a cache around runner.
func New(runner Runner, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.FailureTTL <= 0 {
		opts.FailureTTL = DefaultFailureTTL
	}
	if opts.FailureTTL > opts.TTL {
		opts.FailureTTL = opts.TTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{runner: runner, opts: opts}
}

// OnCycle registers fn to receive every executed (non-memoized) result.
// Observers run on the caller's goroutine after the cache lock is released.
func (c *Cache) OnCycle(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Get returns the memoized result while it is valid, otherwise runs a cycle.
func (c *Cache) Get(ctx context.Context) Result {
	res, observers := c.get(ctx)
	notify(observers, res)
	return res
}

func (c *Cache) get(ctx context.Context) (Result, []func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.memo; m != nil && m.token == c.token && c.opts.Now().Before(m.expires) {
		res := m.result
		res.Memoized = true
		res.Snapshot = res.Snapshot.Clone()
		return res, nil
	}
	return c.runLocked(ctx)
}

// Refresh discards the memo and runs a cycle. The last good snapshot is kept
// so a failing refresh still falls back to it.
func (c *Cache) Refresh(ctx context.Context) Result {
	res, observers := c.refresh(ctx)
	notify(observers, res)
	return res
}

func (c *Cache) refresh(ctx context.Context) (Result, []func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
	return c.runLocked(ctx)
}

// Invalidate discards the memo without running a cycle.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

// LastGood returns a copy of the most recent non-empty snapshot.
func (c *Cache) LastGood() (model.Snapshot, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastGood == nil {
		return model.Snapshot{}, time.Time{}, false
	}
	return c.lastGood.Clone(), c.lastGoodAt, true
}

// Last returns the result of the most recent executed cycle without running one.
func (c *Cache) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	res := *c.last
	res.Snapshot = res.Snapshot.Clone()
	return res, true
}

func (c *Cache) invalidateLocked() {
	c.token++
	c.memo = nil
}

// runLocked executes one cycle. The cycle is shared by every caller, so it
// runs detached from the cancellation of the caller that started it.
func (c *Cache) runLocked(ctx context.Context) (Result, []func(Result)) {
	start := c.opts.Now()
	report := c.run(context.WithoutCancel(ctx))
	now := c.opts.Now()

	res := Result{
		CycleID:   uuid.NewString(),
		FetchedAt: now,
		Duration:  now.Sub(start),
		Report:    report,
	}
	ttl := c.opts.FailureTTL

	switch {
	case !report.Snapshot.IsEmpty():
		snap := report.Snapshot.Clone()
		c.lastGood = &snap
		c.lastGoodAt = now
		res.Status = StatusFresh
		res.Snapshot = snap.Clone()
		ttl = c.opts.TTL
		if n := snap.Len(); n < report.Requested {
			res.Warnings = append(res.Warnings, fmt.Sprintf("only %d of %d instruments available", n, report.Requested))
		}
	case c.lastGood != nil:
		res.Status = StatusStale
		res.Snapshot = c.lastGood.Clone()
		res.Warnings = append(res.Warnings, fmt.Sprintf("live data unavailable, showing the snapshot from %s", c.lastGoodAt.Format("2006-01-02 15:04:05")))
	default:
		res.Status = StatusNoData
		res.Warnings = append(res.Warnings, "no market data available and no earlier snapshot to show")
	}
	if n := len(report.Failures); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d batches failed", n, report.Batches))
	}
	res.LastGoodAt = c.lastGoodAt

	stored := res
	stored.Snapshot = res.Snapshot.Clone()
	c.memo = &memo{token: c.token, result: stored, expires: now.Add(ttl)}
	c.last = &stored

	slog.Info("snapshot cycle",
		"cycle", res.CycleID,
		"status", res.Status,
		"rows", res.Snapshot.Len(),
		"ttl", ttl,
	)

	observers := make([]func(Result), len(c.observers))
	copy(observers, c.observers)
	return res, observers
}

// run calls the runner, turning a panic into a report without data.
func (c *Cache) run(ctx context.Context) (report *model.CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("snapshot cycle panicked", "panic", r)
			report = &model.CycleReport{
				Batches:  1,
				Failures: []model.BatchFailure{{Err: fmt.Sprintf("cycle panicked: %v", r)}},
			}
		}
	}()
	report = c.runner.Run(ctx)
	if report == nil {
		report = &model.CycleReport{}
	}
	return report
}

func notify(observers []func(Result), res Result) {
	for _, fn := range observers {
		fn(res)
	}
}
