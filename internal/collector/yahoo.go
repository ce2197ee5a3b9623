package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TWHeatmap/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// yahooSparkLimit is the most tickers the spark endpoint accepts per request.
const yahooSparkLimit = 20

// YahooProvider implements Provider using the Yahoo Finance spark API, which
// returns daily closes for many tickers in one request.
type YahooProvider struct {
	BaseURL string
	Suffix  string // exchange suffix appended to codes, ".TW" for TWSE listings
	Client  *http.Client
	// SymbolMap overrides the suffix rule for individual codes (OTC listings use ".TWO").
	SymbolMap map[string]string
}

// NewYahooProvider creates a new Yahoo Finance provider.
func NewYahooProvider(baseURL, suffix, proxyURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	if suffix == "" {
		suffix = ".TW"
	}
	return &YahooProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Suffix:    suffix,
		Client:    newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{},
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) ticker(code string) string {
	if mapped, ok := p.SymbolMap[code]; ok {
		return mapped
	}
	return code + p.Suffix
}

// yahooSpark is the response structure from the spark endpoint. Closes are
// pointers because Yahoo reports holidays and halts as null.
type yahooSpark struct {
	Spark struct {
		Result []struct {
			Symbol   string `json:"symbol"`
			Response []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
					AdjClose []struct {
						AdjClose []*float64 `json:"adjclose"`
					} `json:"adjclose"`
				} `json:"indicators"`
			} `json:"response"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"spark"`
}

// sparkRange picks the smallest Yahoo range covering the window.
func sparkRange(w Window) string {
	days := int(w.End.Sub(w.Start).Hours()/24) + 1
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	default:
		return "3mo"
	}
}

// FetchBatch requests the batch in spark-sized chunks. The batch fails only
// when no chunk returns data.
func (p *YahooProvider) FetchBatch(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error) {
	result := model.NewBatchResult()
	var errs []error
	for _, chunk := range Split(symbols, yahooSparkLimit) {
		res, err := p.fetchSpark(ctx, chunk, w)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result.Merge(res)
	}
	if result.Len() == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrEmptyBatch
	}
	return result, nil
}

func (p *YahooProvider) fetchSpark(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error) {
	byTicker := make(map[string]string, len(symbols))
	tickers := make([]string, 0, len(symbols))
	for _, code := range symbols {
		t := p.ticker(code)
		byTicker[t] = code
		tickers = append(tickers, t)
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(tickers, ","))
	q.Set("range", sparkRange(w))
	q.Set("interval", "1d")
	u := p.BaseURL + "/v7/finance/spark?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo status %d, body: %s", ErrProvider, resp.StatusCode, truncate(body, 200))
	}

	var spark yahooSpark
	if err := json.Unmarshal(body, &spark); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if spark.Spark.Error != nil {
		return nil, fmt.Errorf("%w: yahoo api error: %s", ErrProvider, spark.Spark.Error.Description)
	}

	result := model.NewBatchResult()
	for _, r := range spark.Spark.Result {
		code, ok := byTicker[r.Symbol]
		if !ok || len(r.Response) == 0 {
			continue
		}
		data := r.Response[0]
		if len(data.Indicators.Quote) == 0 {
			continue
		}
		closes := data.Indicators.Quote[0].Close
		var adj []*float64
		if len(data.Indicators.AdjClose) > 0 {
			adj = data.Indicators.AdjClose[0].AdjClose
		}

		h := &model.PriceHistory{Code: code}
		for i, ts := range data.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue // skip null bars (holidays etc.)
			}
			day := time.Unix(ts, 0)
			if day.Before(w.Start) || day.After(w.End) {
				continue
			}
			pt := model.PricePoint{Date: day, Close: *closes[i]}
			if i < len(adj) && adj[i] != nil {
				pt.AdjClose = *adj[i]
			}
			h.Points = append(h.Points, pt)
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

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
