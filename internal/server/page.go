package server

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/snapcache"
	"TWHeatmap/internal/treemap"
	"TWHeatmap/internal/view"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"px": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
}).ParseFS(templateFS, "templates/page.html"))

const (
	chartWidth  = 1200
	chartHeight = 700
)

type pageTile struct {
	treemap.Tile
	Fill     string
	Text     string
	Caption  []string
	Tooltip  string
	ShowText bool
	TextX    float64
	TextY    float64
}

type pageData struct {
	RootLabel   string
	Result      snapcache.Result
	View        view.Model
	Params      view.Params
	Query       string
	Tiles       []pageTile
	Width       int
	Height      int
	Banner      string
	BannerKind  string
	LastGoodAgo string
	Retry       int
	RetryURL    string
	RetryNext   int
	RetryDelay  int
	Universe    int
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := s.params(q)

	// An empty page reloads itself a bounded number of times; each reload
	// re-runs the cycle instead of serving the memoized failure. A retry URL
	// opened while data is available just renders it.
	retry, _ := strconv.Atoi(q.Get("retry"))
	if retry > 0 && retry <= s.opts.MaxAutoRetries {
		if last, ok := s.cache.Last(); ok && last.Status == snapcache.StatusNoData {
			s.cache.Invalidate()
		}
	}
	res := s.cache.Get(r.Context())

	data := pageData{
		RootLabel:  s.opts.RootLabel,
		Result:     res,
		View:       view.Build(res.Snapshot, p),
		Params:     p,
		Query:      presentationQuery(p),
		Width:      chartWidth,
		Height:     chartHeight,
		Retry:      retry,
		RetryDelay: int(s.opts.AutoRetryDelay.Seconds()),
	}
	if res.Report != nil {
		data.Universe = res.Report.Requested
	}
	if !res.LastGoodAt.IsZero() {
		data.LastGoodAgo = humanize.Time(res.LastGoodAt)
	}

	switch res.Status {
	case snapcache.StatusFresh:
		data.BannerKind = "ok"
		data.Banner = "成功顯示 " + strconv.Itoa(res.Snapshot.Len()) + " 檔股票數據。"
		if len(res.Warnings) > 0 {
			data.BannerKind = "warn"
		}
	case snapcache.StatusStale:
		data.BannerKind = "warn"
		data.Banner = "無法獲取最新報價，顯示上次成功快取的資料。"
	default:
		data.BannerKind = "error"
		data.Banner = "目前沒有任何快取或最新資料可用，無法繪製熱力圖。"
		if retry < s.opts.MaxAutoRetries {
			v := url.Values{}
			v.Set("retry", strconv.Itoa(retry+1))
			data.RetryNext = retry + 1
			data.RetryURL = "/?" + v.Encode()
			if data.Query != "" {
				data.RetryURL += "&" + data.Query
			}
		}
	}

	if data.View.Empty == view.EmptyNone {
		data.Tiles = s.pageTiles(view.Filtered(res.Snapshot, p), p.Threshold)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		slog.Error("render page failed", "error", err)
	}
}

func (s *server) pageTiles(rows []model.MarketRow, threshold float64) []pageTile {
	scale := treemap.ColorScale{Threshold: threshold}
	tiles := s.layout(rows, chartWidth, chartHeight)
	out := make([]pageTile, 0, len(tiles))
	for _, t := range tiles {
		pt := pageTile{
			Tile:    t,
			Caption: lines(t.Node.Label),
			TextX:   t.Rect.X + 4,
			TextY:   t.Rect.Y + 15,
		}
		if t.Depth == 0 {
			pt.Fill, pt.Text = "#f4f4f4", "#333333"
		} else {
			pt.Fill = scale.Hex(t.Node.ChangePct)
			pt.Text = scale.TextColor(t.Node.ChangePct)
		}
		if t.Node.IsLeaf() {
			pt.ShowText = t.Rect.W > 48 && t.Rect.H > 30
		} else {
			pt.Caption = pt.Caption[:1]
			pt.ShowText = t.Rect.W > 40
		}
		pt.Tooltip = fmt.Sprintf("%s\n實際市值(百萬): %s\n漲跌幅: %.2f%%",
			strings.ReplaceAll(t.Node.Label, "\n", " "), view.FormatSize(t.Node.Value), t.Node.ChangePct)
		out = append(out, pt)
	}
	return out
}

func lines(s string) []string { return strings.Split(s, "\n") }

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	res := s.cache.Refresh(r.Context())
	slog.Info("forced refresh", "cycle", res.CycleID, "status", res.Status)

	target := "/"
	if q := presentationQuery(s.params(r.Form)); q != "" {
		target += "?" + q
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// presentationQuery encodes the controls that survive a refresh.
func presentationQuery(p view.Params) string {
	v := url.Values{}
	for _, sec := range p.Sectors {
		v.Add("sector", sec)
	}
	if p.Sort != view.SortSize {
		v.Set("sort", string(p.Sort))
	}
	if p.Ascending {
		v.Set("order", "asc")
	}
	v.Set("threshold", strconv.FormatFloat(p.Threshold, 'f', -1, 64))
	return v.Encode()
}
