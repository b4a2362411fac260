package contracts

import (
	"sort"
	"time"
)

// QualityReport is the process-wide QC accumulator of one consolidation run.
// Created once per run, mutated only by the pipeline goroutine, serialized once.
// ⭐ SSOT: 품질 리포트 구조는 여기서만 정의
type QualityReport struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	ConfigHash  string                   `json:"config_hash,omitempty"`
	Errors      []string                 `json:"errors"`
	Stats       map[string]ArtifactStats `json:"stats"`
}

// ArtifactStats holds per-artifact statistics and anomaly counts
type ArtifactStats struct {
	TotalRows     int            `json:"total_rows"`
	Columns       []string       `json:"columns"`
	UniqueCodes   int            `json:"unique_codes,omitempty"`
	StartDate     string         `json:"start_date,omitempty"`
	EndDate       string         `json:"end_date,omitempty"`
	FileSizeBytes int64          `json:"file_size_bytes"`
	FileSizeMB    float64        `json:"file_size_mb"`
	Anomalies     map[string]int `json:"anomalies"`
	AnomalyCount  int            `json:"anomaly_count"`
	AnomalyTypes  []string       `json:"anomaly_types"`
}

// NewQualityReport creates an empty report for a run
func NewQualityReport(runID string, now time.Time) *QualityReport {
	return &QualityReport{
		RunID:       runID,
		GeneratedAt: now.UTC(),
		Errors:      []string{},
		Stats:       make(map[string]ArtifactStats),
	}
}

// ArtifactNames returns the audited artifact names in sorted order
func (r *QualityReport) ArtifactNames() []string {
	names := make([]string, 0, len(r.Stats))
	for name := range r.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalAnomalies sums anomaly counts over all artifacts
func (r *QualityReport) TotalAnomalies() int {
	total := 0
	for _, s := range r.Stats {
		total += s.AnomalyCount
	}
	return total
}

// HasErrors reports whether any fatal (empty-dataset) error was recorded
func (r *QualityReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// DateRange renders "start ~ end", or "-" when unknown
func (s ArtifactStats) DateRange() string {
	if s.StartDate == "" && s.EndDate == "" {
		return "-"
	}
	return s.StartDate + " ~ " + s.EndDate
}
