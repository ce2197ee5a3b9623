package model

import (
	"math"
	"sort"
	"time"
)

// PricePoint is one daily close. AdjClose is 0 when the source does not provide it.
type PricePoint struct {
	Date     time.Time
	Close    float64
	AdjClose float64
}

// PriceHistory holds the trailing-window closes of one instrument, oldest first.
type PriceHistory struct {
	Code   string
	Points []PricePoint
}

// SortPoints orders the points chronologically.
func (h *PriceHistory) SortPoints() {
	sort.SliceStable(h.Points, func(i, j int) bool { return h.Points[i].Date.Before(h.Points[j].Date) })
}

// Closes returns the finite closing prices in date order.
func (h *PriceHistory) Closes() []float64 {
	out := make([]float64, 0, len(h.Points))
	for _, p := range h.Points {
		if isFinite(p.Close) {
			out = append(out, p.Close)
		}
	}
	return out
}

// AdjCloses returns the finite, positive adjusted closes in date order.
func (h *PriceHistory) AdjCloses() []float64 {
	out := make([]float64, 0, len(h.Points))
	for _, p := range h.Points {
		if isFinite(p.AdjClose) && p.AdjClose > 0 {
			out = append(out, p.AdjClose)
		}
	}
	return out
}

// LastDate returns the date of the most recent point, or the zero time.
func (h *PriceHistory) LastDate() time.Time {
	if len(h.Points) == 0 {
		return time.Time{}
	}
	return h.Points[len(h.Points)-1].Date
}

// BatchResult is the merged output of one or more provider requests, keyed by
// instrument code (without exchange suffix).
type BatchResult struct {
	histories map[string]*PriceHistory
}

// NewBatchResult returns an empty result.
func NewBatchResult() *BatchResult {
	return &BatchResult{histories: make(map[string]*PriceHistory)}
}

// Put stores the history for its code, replacing any previous entry.
func (r *BatchResult) Put(h *PriceHistory) {
	if h == nil || h.Code == "" {
		return
	}
	r.histories[h.Code] = h
}

// Get returns the history for code.
func (r *BatchResult) Get(code string) (*PriceHistory, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.histories[code]
	return h, ok
}

// Len reports how many instruments carry a history.
func (r *BatchResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.histories)
}

// Merge copies every history of other into r.
func (r *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	for _, h := range other.histories {
		r.Put(h)
	}
}

// Codes returns the instrument codes in sorted order.
func (r *BatchResult) Codes() []string {
	if r == nil {
		return nil
	}
	codes := make([]string, 0, len(r.histories))
	for c := range r.histories {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
