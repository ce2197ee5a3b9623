package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"TWHeatmap/internal/model"
	"TWHeatmap/internal/view"
)

// handleExport writes the filtered, sorted detail table as a Parquet file.
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	p := s.params(r.URL.Query())
	res := s.cache.Get(r.Context())
	if res.Snapshot.IsEmpty() {
		http.Error(w, "no data available", http.StatusServiceUnavailable)
		return
	}

	rows := view.Filtered(res.Snapshot, p)
	view.Sort(rows, p.Sort, p.Ascending)

	var buf bytes.Buffer
	if err := writeParquet(&buf, rows); err != nil {
		slog.Error("parquet export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	name := "tw50"
	if !res.Snapshot.AsOf.IsZero() {
		name += "-" + res.Snapshot.AsOf.Format("20060102")
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.parquet"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Snapshot-Status", string(res.Status))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("export write failed", "error", err)
	}
}

func writeParquet(buf *bytes.Buffer, rows []model.MarketRow) error {
	return parquet.Write(buf, rows)
}
