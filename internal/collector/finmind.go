package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TWHeatmap/internal/model"
)

const defaultFinMindBaseURL = "https://api.finmindtrade.com"

// FinMindProvider implements Provider using the FinMind open-data API
// (TaiwanStockPrice dataset). FinMind answers one stock per request, so a
// batch is a sequence of calls; the batch fails only when every call fails.
// Batches should stay small so the sequence fits inside the batch timeout.
type FinMindProvider struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewFinMindProvider creates a provider with optional proxy support.
func NewFinMindProvider(baseURL, token, proxyURL string, timeout time.Duration) *FinMindProvider {
	if baseURL == "" {
		baseURL = defaultFinMindBaseURL
	}
	return &FinMindProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (p *FinMindProvider) Name() string { return "finmind" }

// finMindResponse is the v4 data envelope.
type finMindResponse struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	Data   []struct {
		Date    string  `json:"date"`
		StockID string  `json:"stock_id"`
		Close   float64 `json:"close"`
	} `json:"data"`
}

func (p *FinMindProvider) FetchBatch(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error) {
	result := model.NewBatchResult()
	var errs []error
	for _, code := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h, err := p.fetchOne(ctx, code, w)
		if err != nil {
			slog.Debug("finmind symbol failed", "code", code, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
			continue
		}
		result.Put(h)
	}
	// Symbols fetched before a deadline are kept; the rest are left to the
	// normalizer as missing histories.
	if ctx.Err() != nil && result.Len() > 0 {
		slog.Warn("finmind batch cut short, keeping partial result",
			"fetched", result.Len(), "symbols", len(symbols), "error", ctx.Err())
	}
	if result.Len() == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrEmptyBatch
	}
	return result, nil
}

func (p *FinMindProvider) fetchOne(ctx context.Context, code string, w Window) (*model.PriceHistory, error) {
	q := url.Values{}
	q.Set("dataset", "TaiwanStockPrice")
	q.Set("data_id", code)
	q.Set("start_date", w.Start.Format("2006-01-02"))
	q.Set("end_date", w.End.Format("2006-01-02"))
	endpoint := p.BaseURL + "/api/v4/data?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finmind fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("finmind read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: finmind status %d, body: %s", ErrProvider, resp.StatusCode, truncate(body, 200))
	}

	var fr finMindResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("finmind decode: %w", err)
	}
	// FinMind reports quota and token problems in the envelope with HTTP 200.
	if fr.Status != 0 && fr.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: finmind status %d: %s", ErrProvider, fr.Status, fr.Msg)
	}

	h := &model.PriceHistory{Code: code}
	for _, row := range fr.Data {
		if row.StockID != "" && row.StockID != code {
			continue
		}
		day, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, fmt.Errorf("finmind date %q: %w", row.Date, err)
		}
		h.Points = append(h.Points, model.PricePoint{Date: day, Close: row.Close})
	}
	if len(h.Points) == 0 {
		return nil, ErrEmptyBatch
	}
	h.SortPoints()
	return h, nil
}
