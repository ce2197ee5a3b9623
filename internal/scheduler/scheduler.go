package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TWHeatmap/internal/notifier"
	"TWHeatmap/internal/recorder"
	"TWHeatmap/internal/snapcache"
)

// Scheduler forces refreshes on a cron schedule, answers operator commands
// and reacts to every executed cycle.
type Scheduler struct {
	Cron     *cron.Cron
	Cache    *snapcache.Cache
	Notifier notifier.Notifier // nil disables alerts
	Recorder recorder.Recorder
	Ctx      context.Context

	mu         sync.Mutex
	lastStatus snapcache.Status
	sends      sync.WaitGroup
}

// NewScheduler creates a new Scheduler running cron specs in loc.
func NewScheduler(ctx context.Context, cache *snapcache.Cache, n notifier.Notifier, rec recorder.Recorder, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Cache:    cache,
		Notifier: n,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// Register adds the refresh task and subscribes to cache cycles. An empty
// spec only subscribes.
func (s *Scheduler) Register(refreshCron string) error {
	if strings.TrimSpace(refreshCron) != "" {
		if _, err := s.Cron.AddFunc(refreshCron, s.RefreshNow); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	s.Cache.OnCycle(s.ObserveCycle)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", "entries", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs and pending alerts.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.sends.Wait()
	slog.Info("scheduler stopped")
}

// RefreshNow forces a new cycle.
func (s *Scheduler) RefreshNow() {
	slog.Info("running scheduled refresh")
	s.Cache.Refresh(s.Ctx)
}

// ObserveCycle records the cycle and alerts when the status changes. The
// first fresh cycle after start is not announced.
func (s *Scheduler) ObserveCycle(r snapcache.Result) {
	if err := s.Recorder.RecordCycle(s.Ctx, recorder.FromResult(r)); err != nil {
		slog.Error("record cycle failed", "cycle", r.CycleID, "error", err)
	}

	s.mu.Lock()
	prev := s.lastStatus
	s.lastStatus = r.Status
	s.mu.Unlock()

	if r.Status == prev || (prev == "" && r.Status == snapcache.StatusFresh) {
		return
	}
	s.trySend(notifier.FormatCycleAlert(r))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "強制刷新報價", "/refresh":
		res := s.Cache.Refresh(ctx)
		return notifier.FormatStatus(res, true)
	case "查看狀態", "/status":
		res, ok := s.Cache.Last()
		return notifier.FormatStatus(res, ok)
	default:
		return "可用命令:\n• /refresh 強制刷新報價\n• /status 查看狀態"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		if err := notifier.SendWithRetry(s.Ctx, s.Notifier, text, 3, time.Second); err != nil {
			slog.Error("send notification failed", "error", err)
		}
	}()
}
