package commands

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wonny/consolidator/internal/pipeline"
	"github.com/wonny/consolidator/internal/publish"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════"
	ruleLight = "───────────────────────────────────────────────────────────"
)

// PrintHeader prints a formatted command header
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	fmt.Println(ruleHeavy)
	fmt.Printf("  %s\n", title)
	if len(lines) > 0 {
		fmt.Println(ruleLight)
		for _, l := range lines {
			fmt.Printf("  %s\n", l)
		}
	}
	fmt.Println(ruleLight)
}

// PrintRunSummary prints the outcome of one consolidation
func PrintRunSummary(res *pipeline.Result) {
	fmt.Println()
	fmt.Printf("  Run ID    : %s\n", res.RunID)
	fmt.Printf("  Years     : %s\n", formatYears(res.Years))
	fmt.Printf("  Artifacts : %d\n", len(res.Artifacts))
	for _, a := range res.Artifacts {
		fmt.Printf("    - %-36s %10s\n", a.RemoteName, humanize.Bytes(uint64(a.SizeBytes)))
	}
	fmt.Printf("  Anomalies : %s\n", humanize.Comma(int64(res.Report.TotalAnomalies())))

	if len(res.Report.Errors) > 0 {
		fmt.Println()
		fmt.Println("  ❌ Critical errors:")
		for _, e := range res.Report.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	if len(res.TaskErrors) > 0 {
		fmt.Println()
		fmt.Println("  ⚠️  Failed tasks:")
		for _, e := range res.TaskErrors {
			fmt.Printf("    - %s\n", e.Error())
		}
	}
}

// PrintPublishSummary prints the outcome of a publish pass
func PrintPublishSummary(s *publish.Summary) {
	if s == nil {
		return
	}
	fmt.Println()
	fmt.Printf("  Published : %d to %s (%s)\n", len(s.Uploaded), s.Sink, formatDuration(s.Duration))
	for _, f := range s.Failed {
		fmt.Printf("    ✗ %s: %s\n", f.RemoteName, f.Error)
	}
}

// PrintCompletion prints the closing line
func PrintCompletion(start time.Time, ok bool) {
	fmt.Println()
	if ok {
		fmt.Printf("✅ Completed in %s\n", formatDuration(time.Since(start)))
	} else {
		fmt.Printf("⚠️  Completed with errors in %s\n", formatDuration(time.Since(start)))
	}
	fmt.Println(ruleHeavy)
}

// PrintCodeRecords prints one code's normalized shard rows as a table
func PrintCodeRecords(c *pipeline.CodeRecords) {
	fmt.Println()
	if c.Len() == 0 {
		fmt.Println("  (no rows)")
		return
	}

	switch {
	case len(c.Market) > 0:
		fmt.Printf("  %-10s %10s %10s %10s %10s %16s %8s %4s\n", "date", "open", "high", "low", "close", "volume", "pctChg", "ST")
		for _, r := range c.Market {
			fmt.Printf("  %-10s %10s %10s %10s %10s %16s %8s %4d\n",
				r.Date, formatNull(r.Open), formatNull(r.High), formatNull(r.Low), formatNull(r.Close),
				formatCount(r.Volume), formatNull(r.PctChg), r.IsST)
		}
	case len(c.Flow) > 0:
		// 단위: 만 원
		fmt.Printf("  %-10s %14s %14s %14s %14s %14s %14s\n", "date", "net", "main", "super", "large", "medium", "small")
		for _, r := range c.Flow {
			fmt.Printf("  %-10s %14s %14s %14s %14s %14s %14s\n", r.Date,
				humanize.Commaf(r.NetAmount), humanize.Commaf(r.MainNet), humanize.Commaf(r.SuperNet),
				humanize.Commaf(r.LargeNet), humanize.Commaf(r.MediumNet), humanize.Commaf(r.SmallNet))
		}
	case len(c.Sector) > 0:
		fmt.Printf("  %-10s %-16s %-10s %10s %16s\n", "date", "name", "type", "close", "volume")
		for _, r := range c.Sector {
			fmt.Printf("  %-10s %-16s %-10s %10s %16s\n", r.Date, r.Name, r.Type, formatNull(r.Close), formatCount(r.Volume))
		}
	default:
		fmt.Printf("  %-10s %-10s %-16s %-10s\n", "sector", "stock", "sector_name", "date")
		for _, r := range c.Constituents {
			fmt.Printf("  %-10s %-10s %-16s %-10s\n", r.SectorCode, r.StockCode, r.SectorName, r.Date)
		}
	}

	fmt.Println(ruleLight)
	fmt.Printf("  %d rows\n", c.Len())
}

// formatNull renders a nullable price/ratio; missing → "-"
func formatNull[T float32 | float64](v sql.Null[T]) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", float64(v.V))
}

func formatCount(v sql.Null[float64]) string {
	if !v.Valid {
		return "-"
	}
	return humanize.Commaf(v.V)
}

func formatYears(years []int) string {
	switch len(years) {
	case 0:
		return "-"
	case 1:
		return fmt.Sprintf("%d", years[0])
	default:
		return fmt.Sprintf("%d ~ %d (%d)", years[0], years[len(years)-1], len(years))
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
