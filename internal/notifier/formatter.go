package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"TWHeatmap/internal/snapcache"
)

var statusLabel = map[snapcache.Status]string{
	snapcache.StatusFresh:  "✅ 最新",
	snapcache.StatusStale:  "⚠️ 備援快取",
	snapcache.StatusNoData: "❌ 無資料",
}

// FormatCycleAlert describes a cycle whose status changed.
func FormatCycleAlert(r snapcache.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>台灣 50 熱力圖</b> | %s\n\n", statusLabel[r.Status])
	writeSummary(&b, r)
	return b.String()
}

// FormatStatus answers the /status command.
func FormatStatus(r snapcache.Result, ok bool) string {
	if !ok {
		return "尚未執行任何抓取週期。"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>快取狀態</b> | %s\n\n", statusLabel[r.Status])
	writeSummary(&b, r)
	fmt.Fprintf(&b, "週期: <code>%s</code>\n", r.CycleID)
	return b.String()
}

func writeSummary(b *strings.Builder, r snapcache.Result) {
	fmt.Fprintf(b, "股票數: %d\n", r.Snapshot.Len())
	if rep := r.Report; rep != nil {
		fmt.Fprintf(b, "請求: %d 檔 / %d 批，失敗 %d 批，略過 %d 檔\n",
			rep.Requested, rep.Batches, len(rep.Failures), len(rep.Skips))
	}
	if !r.Snapshot.AsOf.IsZero() {
		fmt.Fprintf(b, "資料日期: %s\n", r.Snapshot.AsOf.Format("2006-01-02"))
	}
	if !r.LastGoodAt.IsZero() {
		fmt.Fprintf(b, "上次成功: %s\n", humanize.Time(r.LastGoodAt))
	}
	fmt.Fprintf(b, "抓取時間: %s\n", r.FetchedAt.Format("2006-01-02 15:04:05"))
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "• %s\n", html.EscapeString(w))
	}
}
