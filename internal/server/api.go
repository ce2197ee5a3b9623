package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/snapcache"
	"TWHeatmap/internal/treemap"
	"TWHeatmap/internal/view"
)

type viewInput struct {
	Sectors   []string `query:"sector" doc:"Sectors to keep; empty keeps all"`
	Sort      string   `query:"sort" enum:"size,change" default:"size"`
	Order     string   `query:"order" enum:"asc,desc" default:"desc"`
	Threshold float64  `query:"threshold" minimum:"0" doc:"Colour saturation in percent; 0 uses the configured default"`
}

func (in *viewInput) params(s *server) view.Params {
	p := view.Params{
		Sectors:   splitSectors(in.Sectors),
		Sort:      view.SortKey(in.Sort),
		Ascending: in.Order == "asc",
		Threshold: in.Threshold,
	}
	if !(p.Threshold > 0) {
		p.Threshold = s.opts.Threshold
	}
	return p.Normalized()
}

type snapshotBody struct {
	Status     snapcache.Status     `json:"status"`
	Stale      bool                 `json:"stale"`
	CycleID    string               `json:"cycle_id"`
	FetchedAt  time.Time            `json:"fetched_at"`
	AsOf       time.Time            `json:"as_of"`
	LastGoodAt *time.Time           `json:"last_good_at,omitempty"`
	Memoized   bool                 `json:"memoized"`
	Warnings   []string             `json:"warnings"`
	View       view.Model           `json:"view"`
	Skips      []model.Skip         `json:"skips"`
	Failures   []model.BatchFailure `json:"failures"`
	Progress   []string             `json:"progress"`
}

type snapshotOutput struct {
	Body snapshotBody
}

func newSnapshotBody(res snapcache.Result, p view.Params) snapshotBody {
	b := snapshotBody{
		Status:    res.Status,
		Stale:     res.Stale(),
		CycleID:   res.CycleID,
		FetchedAt: res.FetchedAt,
		AsOf:      res.Snapshot.AsOf,
		Memoized:  res.Memoized,
		Warnings:  append([]string{}, res.Warnings...),
		View:      view.Build(res.Snapshot, p),
	}
	if !res.LastGoodAt.IsZero() {
		t := res.LastGoodAt
		b.LastGoodAt = &t
	}
	if rep := res.Report; rep != nil {
		b.Skips = rep.Skips
		b.Failures = rep.Failures
		b.Progress = rep.Progress
	}
	return b
}

type tileBody struct {
	Label     string  `json:"label"`
	Code      string  `json:"code,omitempty"`
	Depth     int     `json:"depth"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
	Value     float64 `json:"value"`
	ChangePct float64 `json:"change_pct"`
	Color     string  `json:"color"`
}

type treemapOutput struct {
	Body struct {
		Status snapcache.Status `json:"status"`
		Empty  view.EmptyState  `json:"empty,omitempty"`
		Width  float64          `json:"width"`
		Height float64          `json:"height"`
		Tiles  []tileBody       `json:"tiles"`
	}
}

func registerSnapshotHandlers(api huma.API, s *server) {
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/snapshot", Summary: "Get the current snapshot with presentation controls applied", Tags: []string{"Snapshot"}},
		func(ctx context.Context, input *viewInput) (*snapshotOutput, error) {
			res := s.cache.Get(ctx)
			return &snapshotOutput{Body: newSnapshotBody(res, input.params(s))}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-snapshot", Method: http.MethodPost, Path: "/api/refresh", Summary: "Force a new fetch cycle", Tags: []string{"Snapshot"}},
		func(ctx context.Context, input *viewInput) (*snapshotOutput, error) {
			res := s.cache.Refresh(ctx)
			return &snapshotOutput{Body: newSnapshotBody(res, input.params(s))}, nil
		})

	type treemapInput struct {
		viewInput
		Width  float64 `query:"width" minimum:"100" maximum:"4000" default:"1200"`
		Height float64 `query:"height" minimum:"100" maximum:"4000" default:"700"`
	}
	huma.Register(api, huma.Operation{OperationID: "get-treemap", Method: http.MethodGet, Path: "/api/treemap", Summary: "Get laid-out treemap tiles", Tags: []string{"Snapshot"}},
		func(ctx context.Context, input *treemapInput) (*treemapOutput, error) {
			res := s.cache.Get(ctx)
			p := input.params(s)
			m := view.Build(res.Snapshot, p)

			out := &treemapOutput{}
			out.Body.Status = res.Status
			out.Body.Empty = m.Empty
			out.Body.Width, out.Body.Height = input.Width, input.Height
			out.Body.Tiles = []tileBody{}
			if m.Empty != view.EmptyNone {
				return out, nil
			}
			tiles := s.layout(view.Filtered(res.Snapshot, p), input.Width, input.Height)
			scale := treemap.ColorScale{Threshold: p.Threshold}
			for _, t := range tiles {
				tb := tileBody{
					Label:     t.Node.Label,
					Depth:     t.Depth,
					X:         t.Rect.X,
					Y:         t.Rect.Y,
					W:         t.Rect.W,
					H:         t.Rect.H,
					Value:     t.Node.Value,
					ChangePct: t.Node.ChangePct,
					Color:     scale.Hex(t.Node.ChangePct),
				}
				if t.Node.IsLeaf() {
					tb.Code = t.Node.Row.Code
				}
				out.Body.Tiles = append(out.Body.Tiles, tb)
			}
			return out, nil
		})
}

func (s *server) layout(rows []model.MarketRow, width, height float64) []treemap.Tile {
	root := treemap.Build(rows, s.opts.RootLabel)
	return treemap.Layout(root, treemap.Rect{W: width, H: height}, treemap.LayoutOptions{Header: 22, Padding: 2})
}
