package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"TWHeatmap/internal/collector"
	"TWHeatmap/internal/config"
	"TWHeatmap/internal/logging"
	"TWHeatmap/internal/metrics"
	"TWHeatmap/internal/notifier"
	"TWHeatmap/internal/pipeline"
	"TWHeatmap/internal/recorder"
	"TWHeatmap/internal/reference"
	"TWHeatmap/internal/scheduler"
	"TWHeatmap/internal/server"
	"TWHeatmap/internal/snapcache"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config validation", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		slog.Error("init logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.Info("heatmap starting", "config", cfgPath)

	// Reference tables
	table := reference.Default()
	if cfg.Reference.OverridesPath != "" {
		ovs, err := reference.LoadOverrides(cfg.Reference.OverridesPath)
		if err != nil {
			slog.Error("load reference overrides", "path", cfg.Reference.OverridesPath, "error", err)
			os.Exit(1)
		}
		table = table.WithOverrides(ovs)
		slog.Info("reference overrides applied", "count", len(ovs))
	}

	// Data source
	provider := newProvider(cfg)
	slog.Info("data source", "provider", provider.Name(), "universe", table.Len())

	fetcher := collector.NewBatchFetcher(provider, cfg.Provider.BatchSize)
	fetcher.LookbackDays = cfg.Provider.LookbackDays
	fetcher.Timeout = time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
	fetcher.Retries = cfg.Provider.Retries
	fetcher.Workers = cfg.Provider.Workers
	fetcher.Location = cfg.Location()
	if n := cfg.Provider.BatchesPerMinute; n > 0 {
		fetcher.Limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/n)), 1)
	}

	cache := snapcache.New(pipeline.New(fetcher, table), snapcache.Options{
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		FailureTTL: time.Duration(cfg.Cache.FailureTTLSeconds) * time.Second,
	})
	cache.OnCycle(metrics.ObserveCycle)

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			slog.Warn("init sqlite recorder failed, using noop", "error", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telegram is optional; the interface stays nil when it is not configured.
	var notify notifier.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notify = tn
	}

	sched := scheduler.NewScheduler(ctx, cache, notify, rec, cfg.Location())
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		slog.Error("register cron tasks", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		slog.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		slog.Info("RUN_ON_START enabled, warming the cache")
		go cache.Get(ctx)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(cache, server.Options{
			RootLabel:      cfg.Server.RootLabel,
			Threshold:      cfg.Display.Threshold,
			MaxAutoRetries: cfg.Server.MaxAutoRetries,
			AutoRetryDelay: time.Duration(cfg.Server.AutoRetrySeconds) * time.Second,
			Provider:       provider.Name(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutdown signal received, stopping")
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	cancel()
	slog.Info("heatmap stopped")
}

func newProvider(cfg *config.Config) collector.Provider {
	timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
	switch cfg.Provider.Name {
	case "finmind":
		return collector.NewFinMindProvider(cfg.Provider.BaseURL, cfg.Provider.Token, cfg.Proxy, timeout)
	case "frame":
		return collector.NewFrameProvider(cfg.Provider.BaseURL, cfg.Provider.Token, cfg.Provider.Suffix, cfg.Proxy, timeout)
	case "mock":
		return &collector.MockProvider{BasePrice: 100}
	default:
		return collector.NewYahooProvider(cfg.Provider.BaseURL, cfg.Provider.Suffix, cfg.Proxy, timeout)
	}
}
