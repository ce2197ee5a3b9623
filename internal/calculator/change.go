package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ChangePct returns the percent change of the last value over the one before
// it. Fewer than two values, or a non-positive previous value, yield 0.
func ChangePct(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	current, previous := series[len(series)-1], series[len(series)-2]
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Round2 rounds the exact binary value of v to two decimal places, ties to
// even. 2.675 is stored as 2.67499... and becomes 2.67; 0.125 is an exact
// tie and becomes 0.12.
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloatWithExponent(v, -60).RoundBank(2).InexactFloat64()
}

// SizeMetric returns price × proxy, or an error when the result cannot be
// drawn as an area.
func SizeMetric(price, proxy float64) (float64, error) {
	if !finite(proxy) || proxy <= 0 {
		return 0, errors.New("size proxy must be positive")
	}
	size := price * proxy
	if !finite(size) || size <= 0 {
		return 0, fmt.Errorf("size %.4f is not positive", size)
	}
	return size, nil
}

// Label is the treemap caption: name, price and signed change.
func Label(name string, price, changePct float64) string {
	return fmt.Sprintf("%s\n%.2f (%+.2f%%)", name, price, changePct)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
