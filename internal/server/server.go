// Package server exposes the heatmap page, its JSON API and operational
// endpoints.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TWHeatmap/internal/snapcache"
	"TWHeatmap/internal/treemap"
	"TWHeatmap/internal/view"
)

// Options holds presentation defaults.
type Options struct {
	RootLabel      string
	Threshold      float64
	MaxAutoRetries int
	AutoRetryDelay time.Duration
	Provider       string
}

type server struct {
	cache *snapcache.Cache
	opts  Options
}

// New builds the HTTP handler.
func New(cache *snapcache.Cache, opts Options) http.Handler {
	if opts.RootLabel == "" {
		opts.RootLabel = treemap.DefaultRootLabel
	}
	if !(opts.Threshold > 0) {
		opts.Threshold = treemap.DefaultThreshold
	}
	if opts.AutoRetryDelay <= 0 {
		opts.AutoRetryDelay = 10 * time.Second
	}
	s := &server{cache: cache, opts: opts}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Taiwan 50 Heatmap API", "1.0.0")
	api := humachi.New(router, cfg)
	registerSnapshotHandlers(api, s)

	router.Get("/", s.handlePage)
	router.Post("/refresh", s.handleRefresh)
	router.Get("/api/snapshot/export.parquet", s.handleExport)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// params reads the presentation controls from a query string.
func (s *server) params(q url.Values) view.Params {
	p := view.Params{
		Sectors:   splitSectors(q["sector"]),
		Sort:      view.SortKey(q.Get("sort")),
		Ascending: q.Get("order") == "asc",
	}
	if v, err := strconv.ParseFloat(q.Get("threshold"), 64); err == nil && v > 0 {
		p.Threshold = v
	} else {
		p.Threshold = s.opts.Threshold
	}
	return p.Normalized()
}

// splitSectors accepts both repeated and comma-separated sector values.
func splitSectors(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if res, ok := s.cache.Last(); ok {
		status = string(res.Status)
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"ok":true,"cache":"` + status + `"}`)); err != nil {
		slog.Debug("healthz write failed", "error", err)
	}
}
