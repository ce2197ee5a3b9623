package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/snapcache"
)

type countingRunner struct {
	mu     sync.Mutex
	calls  int
	report func(call int) *model.CycleReport
}

func (c *countingRunner) Run(context.Context) *model.CycleReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.report(c.calls)
}

func (c *countingRunner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func sampleReport() *model.CycleReport {
	return &model.CycleReport{
		Requested: 4,
		Batches:   1,
		Snapshot: model.Snapshot{
			AsOf: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			Rows: []model.MarketRow{
				{Code: "2330", Name: "台積電", Sector: "半導體", Price: 1085, ChangePct: 1.5, Size: 28134050, Label: "台積電\n1085.00 (+1.50%)"},
				{Code: "2454", Name: "聯發科", Sector: "半導體", Price: 1320, ChangePct: -2.25, Size: 2110000, Label: "聯發科\n1320.00 (-2.25%)"},
				{Code: "2881", Name: "富邦金", Sector: "金融保險", Price: 92.3, ChangePct: -0.8, Size: 1290000, Label: "富邦金\n92.30 (-0.80%)"},
			},
		},
		Skips: []model.Skip{{Code: "2884", Reason: model.SkipLookupMiss}},
	}
}

func emptyReport() *model.CycleReport {
	return &model.CycleReport{Requested: 4, Batches: 1, Failures: []model.BatchFailure{{Index: 0, Err: "down"}}}
}

func newTestServer(t *testing.T, report func(int) *model.CycleReport) (*httptest.Server, *countingRunner) {
	t.Helper()
	runner := &countingRunner{report: report}
	cache := snapcache.New(runner, snapcache.Options{})
	srv := httptest.NewServer(New(cache, Options{MaxAutoRetries: 3, AutoRetryDelay: time.Second}))
	t.Cleanup(srv.Close)
	return srv, runner
}

func always(r func() *model.CycleReport) func(int) *model.CycleReport {
	return func(int) *model.CycleReport { return r() }
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestSnapshotAPI(t *testing.T) {
	srv, runner := newTestServer(t, always(sampleReport))

	var body snapshotBody
	getJSON(t, srv.URL+"/api/snapshot", &body)
	if body.Status != snapcache.StatusFresh || body.Stale {
		t.Errorf("expected fresh, got %s", body.Status)
	}
	if len(body.View.Rows) != 3 || body.View.Rows[0].Code != "2330" {
		t.Errorf("unexpected rows %+v", body.View.Rows)
	}
	if len(body.Skips) != 1 || body.Skips[0].Reason != model.SkipLookupMiss {
		t.Errorf("expected skip list, got %+v", body.Skips)
	}
	if len(body.Warnings) != 1 {
		t.Errorf("expected partial coverage warning, got %v", body.Warnings)
	}

	getJSON(t, srv.URL+"/api/snapshot?sector="+url.QueryEscape("金融保險")+"&sort=change&order=asc", &body)
	if len(body.View.Rows) != 1 || body.View.Rows[0].Code != "2881" {
		t.Errorf("sector filter not applied: %+v", body.View.Rows)
	}
	if !body.Memoized || runner.Calls() != 1 {
		t.Errorf("filtering must not refetch, calls=%d", runner.Calls())
	}

	getJSON(t, srv.URL+"/api/snapshot?sector="+url.QueryEscape("航運"), &body)
	if body.View.Empty != "filter_empty" {
		t.Errorf("expected filter_empty, got %q", body.View.Empty)
	}

	resp, err := http.Get(srv.URL + "/api/snapshot?sort=volume")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for invalid sort, got %d", resp.StatusCode)
	}
}

func TestRefreshAPI_FallsBack(t *testing.T) {
	srv, runner := newTestServer(t, func(call int) *model.CycleReport {
		if call == 1 {
			return sampleReport()
		}
		return emptyReport()
	})

	var first snapshotBody
	getJSON(t, srv.URL+"/api/snapshot", &first)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var second snapshotBody
	if err := json.NewDecoder(resp.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if runner.Calls() != 2 {
		t.Errorf("expected a second cycle, got %d", runner.Calls())
	}
	if second.Status != snapcache.StatusStale || !second.Stale {
		t.Errorf("expected stale, got %s", second.Status)
	}
	if len(second.View.Rows) != len(first.View.Rows) || second.AsOf != first.AsOf {
		t.Error("stale result should carry the last good snapshot")
	}
	if len(second.Failures) != 1 {
		t.Errorf("expected batch failure in body, got %+v", second.Failures)
	}
}

func TestTreemapAPI(t *testing.T) {
	srv, _ := newTestServer(t, always(sampleReport))

	var body struct {
		Status string     `json:"status"`
		Tiles  []tileBody `json:"tiles"`
	}
	getJSON(t, srv.URL+"/api/treemap?width=800&height=600", &body)
	// root + 2 sectors + 3 instruments
	if len(body.Tiles) != 6 {
		t.Fatalf("expected 6 tiles, got %d", len(body.Tiles))
	}
	if body.Tiles[0].Depth != 0 || body.Tiles[0].W != 800 {
		t.Errorf("unexpected root tile %+v", body.Tiles[0])
	}
	leaves := 0
	for _, tile := range body.Tiles {
		if tile.Code != "" {
			leaves++
			if tile.Color == "" || tile.W <= 0 || tile.H <= 0 {
				t.Errorf("bad leaf tile %+v", tile)
			}
		}
	}
	if leaves != 3 {
		t.Errorf("expected 3 leaves, got %d", leaves)
	}
}

func TestPage_RendersChartAndTable(t *testing.T) {
	srv, _ := newTestServer(t, always(sampleReport))

	page := getBody(t, srv.URL+"/?threshold=2")
	for _, want := range []string{"<svg", "台積電", "1,085.00", "查看詳細數據表", `value="2"`, "強制刷新報價"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "setTimeout") {
		t.Error("a page with data must not auto-retry")
	}
}

func TestPage_ColdStartRetriesAreBounded(t *testing.T) {
	srv, runner := newTestServer(t, always(emptyReport))

	page := getBody(t, srv.URL+"/")
	if !strings.Contains(page, "目前沒有任何快取或最新資料可用") {
		t.Error("expected no-data message")
	}
	if !strings.Contains(page, "retry=1") {
		t.Error("expected an auto-retry to retry=1")
	}

	getBody(t, srv.URL+"/?retry=1")
	if runner.Calls() != 2 {
		t.Errorf("a retry must re-run the cycle, calls=%d", runner.Calls())
	}

	last := getBody(t, srv.URL+"/?retry=3")
	if strings.Contains(last, "setTimeout") {
		t.Error("retries must stop at the configured maximum")
	}

	getBody(t, srv.URL+"/?retry=9")
	if runner.Calls() != 3 {
		t.Errorf("retries past the maximum must not refetch, calls=%d", runner.Calls())
	}
}

func TestPage_FilterEmptyState(t *testing.T) {
	srv, _ := newTestServer(t, always(sampleReport))
	page := getBody(t, srv.URL+"/?sector="+url.QueryEscape("航運"))
	if !strings.Contains(page, "沒有符合篩選條件的股票") {
		t.Error("expected filter-empty message")
	}
	if strings.Contains(page, "<svg") {
		t.Error("no chart expected when the filter matches nothing")
	}
}

func TestRefreshForm_RedirectsWithControls(t *testing.T) {
	srv, runner := newTestServer(t, always(sampleReport))
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	form := url.Values{"sector": {"半導體"}, "threshold": {"4"}}
	resp, err := client.PostForm(srv.URL+"/refresh", form)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Query().Get("sector") != "半導體" || loc.Query().Get("threshold") != "4" {
		t.Errorf("controls not preserved: %s", loc)
	}

	getBody(t, srv.URL+"/")
	if runner.Calls() != 1 {
		t.Errorf("page after refresh should use the refreshed memo, calls=%d", runner.Calls())
	}
}

func TestExportParquet(t *testing.T) {
	srv, _ := newTestServer(t, always(sampleReport))

	resp, err := http.Get(srv.URL + "/api/snapshot/export.parquet?sector=" + url.QueryEscape("半導體"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "tw50-20250110.parquet") {
		t.Errorf("unexpected disposition %q", cd)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := parquet.Read[model.MarketRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(rows) != 2 || rows[0].Code != "2330" || rows[1].Code != "2454" {
		t.Errorf("unexpected exported rows %+v", rows)
	}
}

func TestExportParquet_NoData(t *testing.T) {
	srv, _ := newTestServer(t, always(emptyReport))
	resp, err := http.Get(srv.URL + "/api/snapshot/export.parquet")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, always(sampleReport))

	if body := getBody(t, srv.URL+"/healthz"); !strings.Contains(body, `"cache":"starting"`) {
		t.Errorf("unexpected health before first cycle: %s", body)
	}
	getBody(t, srv.URL+"/api/snapshot")
	if body := getBody(t, srv.URL+"/healthz"); !strings.Contains(body, `"cache":"fresh"`) {
		t.Errorf("unexpected health after cycle: %s", body)
	}
	if body := getBody(t, srv.URL+"/metrics"); !strings.Contains(body, "heatmap_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestPage_RetryURLWithDataDoesNotRefetch(t *testing.T) {
	srv, runner := newTestServer(t, always(sampleReport))

	getBody(t, srv.URL+"/")
	for i := 0; i < 3; i++ {
		getBody(t, srv.URL+"/?retry=1")
	}
	if runner.Calls() != 1 {
		t.Errorf("a retry URL must not refetch while data is available, calls=%d", runner.Calls())
	}
}
