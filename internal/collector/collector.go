package collector

import (
	"context"
	"sync"
	"time"

	"TWHeatmap/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	// Closes maps code to closing prices, oldest first. Codes without an entry
	// get a generated series around BasePrice when BasePrice > 0.
	Closes    map[string][]float64
	BasePrice float64
	// Fail makes any batch containing one of these codes fail with the error.
	Fail map[string]error

	mu    sync.Mutex
	calls int
}

func (m *MockProvider) Name() string { return "mock" }

// Calls reports how many batches were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) FetchBatch(ctx context.Context, symbols []string, w Window) (*model.BatchResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, s := range symbols {
		if err, ok := m.Fail[s]; ok {
			return nil, err
		}
	}

	result := model.NewBatchResult()
	for _, s := range symbols {
		closes, ok := m.Closes[s]
		if !ok {
			if m.BasePrice <= 0 {
				continue
			}
			closes = generateMockCloses(m.BasePrice, 5)
		}
		result.Put(mockHistory(s, closes, w.End))
	}
	if result.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	return result, nil
}

func mockHistory(code string, closes []float64, end time.Time) *model.PriceHistory {
	if end.IsZero() {
		end = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	}
	h := &model.PriceHistory{Code: code, Points: make([]model.PricePoint, len(closes))}
	for i, c := range closes {
		h.Points[i] = model.PricePoint{
			Date:  end.AddDate(0, 0, -(len(closes) - 1 - i)),
			Close: c,
		}
	}
	return h
}

func generateMockCloses(basePrice float64, count int) []float64 {
	closes := make([]float64, count)
	for i := 0; i < count; i++ {
		closes[i] = basePrice * (1 + float64(i-count/2)*0.001)
	}
	return closes
}
