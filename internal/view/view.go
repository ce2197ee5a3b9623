// Package view turns a snapshot into what the page and API render: filtered,
// sorted, formatted rows plus the empty state to show.
package view

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/treemap"
)

// SortKey selects the detail-table ordering.
type SortKey string

const (
	SortSize   SortKey = "size"
	SortChange SortKey = "change"
)

// EmptyState distinguishes "nothing fetched" from "nothing matches".
type EmptyState string

const (
	EmptyNone   EmptyState = ""
	EmptyNoData EmptyState = "no_data"
	EmptyFilter EmptyState = "filter_empty"
)

// Params are the presentation controls. They never trigger a fetch.
type Params struct {
	Sectors   []string
	Sort      SortKey
	Ascending bool
	Threshold float64
}

// Normalized fills defaults and drops blank sectors.
func (p Params) Normalized() Params {
	if p.Sort != SortChange {
		p.Sort = SortSize
	}
	if !(p.Threshold > 0) {
		p.Threshold = treemap.DefaultThreshold
	}
	var sectors []string
	for _, s := range p.Sectors {
		if s = strings.TrimSpace(s); s != "" {
			sectors = append(sectors, s)
		}
	}
	p.Sectors = sectors
	return p
}

// Row is a MarketRow with display strings.
type Row struct {
	model.MarketRow
	PriceText  string `json:"price_text"`
	ChangeText string `json:"change_text"`
	SizeText   string `json:"size_text"`
	Color      string `json:"color"`
}

// SectorOption is one entry of the sector multi-select.
type SectorOption struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
}

// Model is the rendered state of the page.
type Model struct {
	Rows      []Row          `json:"rows"`
	Sectors   []SectorOption `json:"sectors"`
	Empty     EmptyState     `json:"empty,omitempty"`
	Message   string         `json:"message,omitempty"`
	Total     int            `json:"total"`
	Threshold float64        `json:"threshold"`
}

// Filter keeps rows whose sector is selected. No selection keeps everything.
func Filter(rows []model.MarketRow, sectors []string) []model.MarketRow {
	if len(sectors) == 0 {
		return append([]model.MarketRow(nil), rows...)
	}
	want := make(map[string]bool, len(sectors))
	for _, s := range sectors {
		want[s] = true
	}
	var out []model.MarketRow
	for _, r := range rows {
		if want[r.Sector] {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders rows in place, largest first unless ascending. Ties keep code order.
func Sort(rows []model.MarketRow, key SortKey, ascending bool) {
	value := func(r model.MarketRow) float64 {
		if key == SortChange {
			return r.ChangePct
		}
		return r.Size
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := value(rows[i]), value(rows[j])
		if a == b {
			return rows[i].Code < rows[j].Code
		}
		if ascending {
			return a < b
		}
		return a > b
	})
}

// Build applies p to snap.
func Build(snap model.Snapshot, p Params) Model {
	p = p.Normalized()
	m := Model{Total: snap.Len(), Threshold: p.Threshold}
	m.Sectors = sectorOptions(snap.Rows, p.Sectors)

	if snap.IsEmpty() {
		m.Empty = EmptyNoData
		m.Message = "目前沒有任何快取或最新資料可用，無法繪製熱力圖。"
		return m
	}

	rows := Filter(snap.Rows, p.Sectors)
	if len(rows) == 0 {
		m.Empty = EmptyFilter
		m.Message = "沒有符合篩選條件的股票。"
		return m
	}
	Sort(rows, p.Sort, p.Ascending)

	scale := treemap.ColorScale{Threshold: p.Threshold}
	m.Rows = make([]Row, len(rows))
	for i, r := range rows {
		m.Rows[i] = Row{
			MarketRow:  r,
			PriceText:  FormatPrice(r.Price),
			ChangeText: FormatChange(r.ChangePct),
			SizeText:   FormatSize(r.Size),
			Color:      scale.Hex(r.ChangePct),
		}
	}
	return m
}

// Filtered returns the rows of snap that p selects, without formatting.
func Filtered(snap model.Snapshot, p Params) []model.MarketRow {
	return Filter(snap.Rows, p.Normalized().Sectors)
}

// FormatPrice renders a price with thousands separators and two decimals.
func FormatPrice(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// FormatChange renders a signed percentage.
func FormatChange(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// FormatSize renders the size metric in millions, without decimals.
func FormatSize(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

func sectorOptions(rows []model.MarketRow, selected []string) []SectorOption {
	sel := make(map[string]bool, len(selected))
	for _, s := range selected {
		sel[s] = true
	}
	idx := make(map[string]int)
	var out []SectorOption
	for _, r := range rows {
		i, ok := idx[r.Sector]
		if !ok {
			i = len(out)
			idx[r.Sector] = i
			out = append(out, SectorOption{Name: r.Sector, Selected: sel[r.Sector]})
		}
		out[i].Count++
	}
	return out
}
