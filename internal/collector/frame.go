package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TWHeatmap/internal/model"
)

// FrameProvider implements Provider against a download sidecar that returns
// a table in pandas "split" orientation, with columns keyed by
// (field, ticker) pairs such as ["Close", "2330.TW"] and ["Adj Close", "2330.TW"].
type FrameProvider struct {
	BaseURL string
	APIKey  string
	Suffix  string
	Client  *http.Client
}

// NewFrameProvider creates a new provider with optional proxy support.
func NewFrameProvider(baseURL, apiKey, suffix, proxyURL string, timeout time.Duration) *FrameProvider {
	if suffix == "" {
		suffix = ".TW"
	}
	return &FrameProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Suffix:  suffix,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (p *FrameProvider) Name() string { return "frame" }

// splitFrame is the JSON shape of DataFrame.to_json(orient="split") for a
// frame with a two-level column index.
type splitFrame struct {
	Columns [][]string          `json:"columns"`
	Index   []json.RawMessage   `json:"index"`
	Data    [][]json.RawMessage `json:"data"`
}

func (p *FrameProvider) FetchBatch(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error) {
	tickers := make([]string, len(symbols))
	for i, s := range symbols {
		tickers[i] = s + p.Suffix
	}
	q := url.Values{}
	q.Set("symbols", strings.Join(tickers, ","))
	q.Set("start", w.Start.Format("2006-01-02"))
	q.Set("end", w.End.Format("2006-01-02"))
	q.Set("interval", "1d")
	endpoint := p.BaseURL + "/history?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: frame status %d, body: %s", ErrProvider, resp.StatusCode, truncate(body, 200))
	}

	var frame splitFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return p.parseFrame(&frame)
}

func (p *FrameProvider) parseFrame(frame *splitFrame) (*model.BatchResult, error) {
	dates := make([]time.Time, len(frame.Index))
	for i, raw := range frame.Index {
		d, err := parseFrameIndex(raw)
		if err != nil {
			return nil, fmt.Errorf("frame index %d: %w", i, err)
		}
		dates[i] = d
	}

	histories := make(map[string]*model.PriceHistory)
	points := make(map[string]map[int]*model.PricePoint)
	for col, key := range frame.Columns {
		if len(key) != 2 {
			return nil, fmt.Errorf("frame column %d: expected (field, ticker), got %v", col, key)
		}
		field, ticker := key[0], key[1]
		if field != "Close" && field != "Adj Close" {
			continue
		}
		code := strings.TrimSuffix(ticker, p.Suffix)
		if _, ok := histories[code]; !ok {
			histories[code] = &model.PriceHistory{Code: code}
			points[code] = make(map[int]*model.PricePoint)
		}
		for row := range frame.Data {
			if col >= len(frame.Data[row]) || row >= len(dates) {
				continue
			}
			v, ok := parseFrameValue(frame.Data[row][col])
			if !ok {
				continue // NaN cells are serialized as null
			}
			pt, exists := points[code][row]
			if !exists {
				pt = &model.PricePoint{Date: dates[row]}
				points[code][row] = pt
			}
			if field == "Close" {
				pt.Close = v
			} else {
				pt.AdjClose = v
			}
		}
	}

	result := model.NewBatchResult()
	for code, h := range histories {
		for _, pt := range points[code] {
			if pt.Close == 0 {
				continue // adjusted close without a plain close
			}
			h.Points = append(h.Points, *pt)
		}
		if len(h.Points) == 0 {
			continue
		}
		h.SortPoints()
		result.Put(h)
	}
	if result.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	return result, nil
}

// parseFrameIndex accepts epoch milliseconds (the pandas default) or a date string.
func parseFrameIndex(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("unsupported index value %s", string(raw))
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseFrameValue(raw json.RawMessage) (float64, bool) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}
