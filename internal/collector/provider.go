package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"TWHeatmap/internal/model"
)

var (
	// ErrEmptyBatch is returned when a provider answers without any usable history.
	ErrEmptyBatch = errors.New("provider returned no data")
	// ErrProvider marks an error reported by the upstream API itself.
	ErrProvider = errors.New("provider error")
)

// Window is the trailing date range requested for each batch.
type Window struct {
	Start time.Time
	End   time.Time
}

// Provider fetches daily history for a batch of instrument codes. Each
// implementation adapts one upstream response shape to model.BatchResult.
type Provider interface {
	FetchBatch(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error)
	Name() string
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
