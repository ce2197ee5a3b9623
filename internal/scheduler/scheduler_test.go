package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/recorder"
	"TWHeatmap/internal/snapcache"
)

type chanNotifier struct{ ch chan string }

func (n chanNotifier) Send(_ context.Context, text string) error {
	n.ch <- text
	return nil
}

type memRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (m *memRecorder) RecordCycle(_ context.Context, rec *recorder.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, rec.Status)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func reports(rs ...*model.CycleReport) snapcache.RunnerFunc {
	var mu sync.Mutex
	i := 0
	return func(context.Context) *model.CycleReport {
		mu.Lock()
		defer mu.Unlock()
		r := rs[min(i, len(rs)-1)]
		i++
		return r
	}
}

func good() *model.CycleReport {
	return &model.CycleReport{
		Requested: 1,
		Batches:   1,
		Snapshot:  model.Snapshot{Rows: []model.MarketRow{{Code: "A", Size: 1}}},
	}
}

func bad() *model.CycleReport {
	return &model.CycleReport{Requested: 1, Batches: 1, Failures: []model.BatchFailure{{Err: "down"}}}
}

func expectMessage(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case msg := <-ch:
		if !strings.Contains(msg, want) {
			t.Errorf("expected message containing %q, got %q", want, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message containing %q", want)
	}
}

func expectNone(t *testing.T, ch chan string) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Errorf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserveCycle_AlertsOnStatusChange(t *testing.T) {
	ctx := context.Background()
	cache := snapcache.New(reports(good(), bad(), bad(), good()), snapcache.Options{})
	n := chanNotifier{ch: make(chan string, 4)}
	rec := &memRecorder{}
	s := NewScheduler(ctx, cache, n, rec, time.UTC)
	if err := s.Register(""); err != nil {
		t.Fatal(err)
	}

	cache.Get(ctx)
	expectNone(t, n.ch)

	cache.Refresh(ctx)
	expectMessage(t, n.ch, "備援快取")

	cache.Refresh(ctx)
	expectNone(t, n.ch)

	cache.Refresh(ctx)
	expectMessage(t, n.ch, "最新")

	s.Stop()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if got := strings.Join(rec.statuses, ","); got != "fresh,stale,stale,fresh" {
		t.Errorf("unexpected recorded statuses %s", got)
	}
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	cache := snapcache.New(reports(good()), snapcache.Options{})
	s := NewScheduler(ctx, cache, nil, nil, time.UTC)

	if reply := s.HandleCommand(ctx, "/status"); !strings.Contains(reply, "尚未") {
		t.Errorf("expected no-cycle reply, got %q", reply)
	}
	if reply := s.HandleCommand(ctx, "/refresh"); !strings.Contains(reply, "股票數: 1") {
		t.Errorf("unexpected refresh reply %q", reply)
	}
	if reply := s.HandleCommand(ctx, "/status"); !strings.Contains(reply, "快取狀態") {
		t.Errorf("unexpected status reply %q", reply)
	}
	if reply := s.HandleCommand(ctx, "hello"); !strings.Contains(reply, "/refresh") {
		t.Errorf("expected help text, got %q", reply)
	}
}

func TestRegister(t *testing.T) {
	cache := snapcache.New(reports(good()), snapcache.Options{})
	s := NewScheduler(context.Background(), cache, nil, nil, time.UTC)
	if err := s.Register("not a cron"); err == nil {
		t.Error("expected invalid spec error")
	}

	s = NewScheduler(context.Background(), cache, nil, nil, time.UTC)
	if err := s.Register("0 35 13 * * 1-5"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("expected one cron entry, got %d", len(s.Cron.Entries()))
	}
}
