package model

import "time"

// Instrument is one entry of the reference table.
type Instrument struct {
	Code      string
	Name      string
	Sector    string
	SizeProxy float64 // shares outstanding, millions
}

// MarketRow is one normalized instrument. Size is always > 0.
type MarketRow struct {
	Code      string  `json:"code" parquet:"code"`
	Name      string  `json:"name" parquet:"name"`
	Sector    string  `json:"sector" parquet:"sector"`
	Price     float64 `json:"price" parquet:"price"`
	ChangePct float64 `json:"change_pct" parquet:"change_pct"`
	Size      float64 `json:"size" parquet:"size"`
	Label     string  `json:"label" parquet:"label"`
}

// Snapshot is the set of rows produced by one successful cycle.
type Snapshot struct {
	Rows []MarketRow `json:"rows"`
	AsOf time.Time   `json:"as_of"`
}

func (s Snapshot) Len() int { return len(s.Rows) }

func (s Snapshot) IsEmpty() bool { return len(s.Rows) == 0 }

// Equal reports whether both snapshots carry identical rows in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if !s.AsOf.Equal(o.AsOf) || len(s.Rows) != len(o.Rows) {
		return false
	}
	for i := range s.Rows {
		if s.Rows[i] != o.Rows[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no row storage with s.
func (s Snapshot) Clone() Snapshot {
	rows := make([]MarketRow, len(s.Rows))
	copy(rows, s.Rows)
	return Snapshot{Rows: rows, AsOf: s.AsOf}
}

// SkipReason classifies why an instrument is absent from a snapshot.
type SkipReason string

const (
	SkipMissingHistory  SkipReason = "missing_history"
	SkipNoObservations  SkipReason = "no_observations"
	SkipLookupMiss      SkipReason = "lookup_miss"
	SkipNonPositiveSize SkipReason = "non_positive_size"
	SkipMalformedValue  SkipReason = "malformed_value"
)

// Skip records one excluded instrument.
type Skip struct {
	Code   string     `json:"code"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// BatchFailure records one omitted request batch.
type BatchFailure struct {
	Index   int      `json:"index"`
	Symbols []string `json:"symbols"`
	Err     string   `json:"error"`
}

// CycleReport is everything one fetch-and-normalize pass produced.
type CycleReport struct {
	Snapshot  Snapshot
	Skips     []Skip
	Failures  []BatchFailure
	Batches   int
	Requested int
	Progress  []string
}
