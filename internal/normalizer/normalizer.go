// Package normalizer turns merged provider histories into a Snapshot.
package normalizer

import (
	"fmt"
	"math"
	"time"

	"TWHeatmap/internal/calculator"
	"TWHeatmap/internal/model"
)

// Lookup is the part of the reference table the normalizer needs.
type Lookup interface {
	Codes() []string
	Lookup(code string) (model.Instrument, bool)
}

// Normalize builds one row per instrument of the universe that has usable
// history and a positive size, in universe order. Every excluded instrument
// is reported as a Skip. It has no side effects: the same input always
// produces an equal snapshot.
func Normalize(result *model.BatchResult, table Lookup) (model.Snapshot, []model.Skip) {
	var snap model.Snapshot
	var skips []model.Skip
	if result.Len() == 0 {
		return snap, nil
	}

	for _, code := range table.Codes() {
		row, asOf, skip := normalizeOne(code, result, table)
		if skip != nil {
			skips = append(skips, *skip)
			continue
		}
		snap.Rows = append(snap.Rows, row)
		if asOf.After(snap.AsOf) {
			snap.AsOf = asOf
		}
	}
	return snap, skips
}

func normalizeOne(code string, result *model.BatchResult, table Lookup) (row model.MarketRow, asOf time.Time, skip *model.Skip) {
	defer func() {
		if r := recover(); r != nil {
			skip = &model.Skip{Code: code, Reason: model.SkipMalformedValue, Detail: fmt.Sprint(r)}
		}
	}()

	h, ok := result.Get(code)
	if !ok || h == nil {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipMissingHistory}
	}
	closes := h.Closes()
	if len(closes) == 0 {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipNoObservations}
	}
	price := closes[len(closes)-1]

	// Adjusted closes absorb ex-dividend gaps, so prefer them for the change.
	series := closes
	if adj := h.AdjCloses(); len(adj) >= 2 {
		series = adj
	}
	change := calculator.ChangePct(series)
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipMalformedValue, Detail: "change is not finite"}
	}

	inst, ok := table.Lookup(code)
	if !ok {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipLookupMiss, Detail: "no size proxy"}
	}
	if math.IsNaN(inst.SizeProxy) || math.IsInf(inst.SizeProxy, 0) || inst.SizeProxy <= 0 {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipLookupMiss, Detail: fmt.Sprintf("size proxy %v", inst.SizeProxy)}
	}
	size, err := calculator.SizeMetric(price, inst.SizeProxy)
	if err != nil {
		return row, asOf, &model.Skip{Code: code, Reason: model.SkipNonPositiveSize, Detail: err.Error()}
	}

	change = calculator.Round2(change)
	row = model.MarketRow{
		Code:      code,
		Name:      inst.Name,
		Sector:    inst.Sector,
		Price:     price,
		ChangePct: change,
		Size:      size,
		Label:     calculator.Label(inst.Name, price, change),
	}
	return row, h.LastDate(), nil
}
