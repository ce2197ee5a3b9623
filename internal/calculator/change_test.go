package calculator

import (
	"math"
	"testing"
)

func TestChangePct(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   float64
	}{
		{"rise", []float64{100, 110}, 10},
		{"fall", []float64{50, 45}, -10},
		{"uses last two", []float64{1, 200, 210}, 5},
		{"single observation", []float64{100}, 0},
		{"empty", nil, 0},
		{"zero previous", []float64{0, 10}, 0},
		{"negative previous", []float64{-5, 10}, 0},
	}
	for _, tt := range tests {
		if got := ChangePct(tt.series); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: expected %.4f, got %.4f", tt.name, tt.want, got)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.235, 1.24}, // stored as 1.23500000000000009...
		{-1.235, -1.24},
		{2.675, 2.67}, // stored as 2.67499999999999982...
		{0.125, 0.12}, // exact tie rounds to even
		{0.375, 0.38},
		{-0.125, -0.12},
		{10.000000000000002, 10},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestSizeMetric(t *testing.T) {
	if got, err := SizeMetric(110, 10); err != nil || got != 1100 {
		t.Errorf("expected 1100, got %v (%v)", got, err)
	}
	for _, proxy := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := SizeMetric(100, proxy); err == nil {
			t.Errorf("proxy %v: expected error", proxy)
		}
	}
	if _, err := SizeMetric(0, 10); err == nil {
		t.Error("zero price must not produce a size")
	}
}

func TestLabel(t *testing.T) {
	if got := Label("台積電", 1050, 1.5); got != "台積電\n1050.00 (+1.50%)" {
		t.Errorf("unexpected label %q", got)
	}
	if got := Label("A", 45, -10); got != "A\n45.00 (-10.00%)" {
		t.Errorf("unexpected label %q", got)
	}
}
