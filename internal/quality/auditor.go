// Package quality computes per-artifact statistics and anomaly counts and
// folds them into the run's QualityReport.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/logger"
)

// Anomaly kinds
const (
	AnomalyHighLtLow = "high_lt_low"
	AnomalyNegVolume = "neg_volume"
	nullPrefix       = "null_"
)

// NullAnomaly returns the anomaly kind for missing values in a critical column
func NullAnomaly(col string) string {
	return nullPrefix + col
}

// Auditor inspects finished artifacts. It never fails on malformed cells:
// anomalies are counted, not thrown.
type Auditor struct {
	logger *logger.Logger
}

// NewAuditor creates an auditor
func NewAuditor(log *logger.Logger) *Auditor {
	return &Auditor{logger: log}
}

// Audit records the statistics of one artifact into rep. An empty frame adds
// "<name> is empty!" to rep.Errors and records no stats entry.
// Must be called from the goroutine that owns rep.
func (a *Auditor) Audit(rep *contracts.QualityReport, name string, frame contracts.Frame, sizeBytes int64, critical []string) {
	if frame.Empty() {
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s is empty!", name))
		a.logger.WithField("artifact", name).Warn("Artifact is empty")
		return
	}

	stats := Check(frame, critical)
	stats.FileSizeBytes = sizeBytes
	stats.FileSizeMB = SizeMB(sizeBytes)
	rep.Stats[name] = stats

	log := a.logger.WithFields(map[string]interface{}{
		"artifact":  name,
		"rows":      stats.TotalRows,
		"codes":     stats.UniqueCodes,
		"anomalies": stats.AnomalyCount,
	})
	if stats.AnomalyCount > 0 {
		log.WithField("types", stats.AnomalyTypes).Warn("Artifact audited with anomalies")
		return
	}
	log.Info("Artifact audited")
}

// Check computes statistics and anomalies of a non-empty frame
func Check(frame contracts.Frame, critical []string) contracts.ArtifactStats {
	stats := contracts.ArtifactStats{
		TotalRows:    frame.Len(),
		Columns:      append([]string(nil), frame.Columns...),
		Anomalies:    make(map[string]int),
		AnomalyTypes: []string{},
	}

	if idx, ok := frame.ColumnIndex("code"); ok {
		stats.UniqueCodes = uniqueCount(frame, idx)
	}
	if idx, ok := frame.ColumnIndex("date"); ok {
		stats.StartDate, stats.EndDate = dateRange(frame, idx)
	}

	hi, hasHigh := frame.ColumnIndex("high")
	lo, hasLow := frame.ColumnIndex("low")
	vol, hasVolume := frame.ColumnIndex("volume")

	nullCols := make(map[int]string)
	for _, col := range critical {
		if idx, ok := frame.ColumnIndex(col); ok {
			nullCols[idx] = NullAnomaly(col)
		}
	}

	for _, row := range frame.Rows {
		// 고가/저가 0 은 거래정지로 간주하고 제외
		if hasHigh && hasLow {
			h, okH := numeric(cell(row, hi))
			l, okL := numeric(cell(row, lo))
			if okH && okL && h > 0 && l > 0 && h < l {
				stats.Anomalies[AnomalyHighLtLow]++
			}
		}

		if hasVolume {
			if v, ok := numeric(cell(row, vol)); ok && v < 0 {
				stats.Anomalies[AnomalyNegVolume]++
			}
		}

		for idx, kind := range nullCols {
			if missing(cell(row, idx)) {
				stats.Anomalies[kind]++
			}
		}
	}

	Tally(&stats)
	return stats
}

// Tally derives AnomalyCount and the sorted AnomalyTypes from Anomalies
func Tally(stats *contracts.ArtifactStats) {
	stats.AnomalyCount = 0
	stats.AnomalyTypes = make([]string, 0, len(stats.Anomalies))
	for kind, n := range stats.Anomalies {
		stats.AnomalyCount += n
		stats.AnomalyTypes = append(stats.AnomalyTypes, kind)
	}
	sort.Strings(stats.AnomalyTypes)
}

// SizeMB converts a byte size to megabytes rounded to two decimals
func SizeMB(size int64) float64 {
	return math.Round(float64(size)/1024/1024*100) / 100
}

func cell(row []any, idx int) any {
	if idx < len(row) {
		return row[idx]
	}
	return nil
}

func missing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// numeric accepts only numeric cells; anything else is ignored by detectors
func numeric(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func uniqueCount(frame contracts.Frame, idx int) int {
	seen := make(map[string]struct{})
	for _, row := range frame.Rows {
		v := cell(row, idx)
		if v == nil {
			continue
		}
		seen[fmt.Sprint(v)] = struct{}{}
	}
	return len(seen)
}

func dateRange(frame contracts.Frame, idx int) (string, string) {
	var start, end string
	for _, row := range frame.Rows {
		d := dateText(cell(row, idx))
		if d == "" {
			continue
		}
		if start == "" || d < start {
			start = d
		}
		if end == "" || d > end {
			end = d
		}
	}
	return start, end
}

func dateText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}
