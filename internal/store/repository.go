package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/quality"
	"github.com/wonny/consolidator/pkg/database"
)

// ErrNotFound is returned when no run has been persisted yet
var ErrNotFound = errors.New("qc run not found")

// schemaDDL creates the audit tables on first use
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS audit;

CREATE TABLE IF NOT EXISTS audit.qc_runs (
	run_id         TEXT PRIMARY KEY,
	generated_at   TIMESTAMPTZ NOT NULL,
	config_hash    TEXT NOT NULL DEFAULT '',
	errors         JSONB NOT NULL DEFAULT '[]',
	artifact_count INTEGER NOT NULL,
	anomaly_count  INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit.qc_artifacts (
	run_id          TEXT NOT NULL REFERENCES audit.qc_runs (run_id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	total_rows      BIGINT NOT NULL,
	unique_codes    INTEGER NOT NULL,
	start_date      TEXT NOT NULL DEFAULT '',
	end_date        TEXT NOT NULL DEFAULT '',
	file_size_bytes BIGINT NOT NULL,
	columns         JSONB NOT NULL,
	anomalies       JSONB NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS qc_runs_generated_at_idx ON audit.qc_runs (generated_at DESC);
`

// RunSummary is one row of audit.qc_runs
type RunSummary struct {
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	ConfigHash    string    `json:"config_hash"`
	ErrorCount    int       `json:"error_count"`
	ArtifactCount int       `json:"artifact_count"`
	AnomalyCount  int       `json:"anomaly_count"`
}

// ReportRepository persists QC reports
// ⭐ SSOT: QC 리포트 저장/조회
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureSchema creates the audit tables if missing
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure qc schema: %w", err)
	}
	return nil
}

// SaveRun upserts the run header and replaces its artifact rows
func (r *ReportRepository) SaveRun(ctx context.Context, rep *contracts.QualityReport) error {
	errorsJSON, err := json.Marshal(rep.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO audit.qc_runs (
				run_id, generated_at, config_hash, errors, artifact_count, anomaly_count
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (run_id) DO UPDATE SET
				generated_at = EXCLUDED.generated_at,
				config_hash = EXCLUDED.config_hash,
				errors = EXCLUDED.errors,
				artifact_count = EXCLUDED.artifact_count,
				anomaly_count = EXCLUDED.anomaly_count
		`
		if _, err := tx.Exec(ctx, query,
			rep.RunID,
			rep.GeneratedAt,
			rep.ConfigHash,
			errorsJSON,
			len(rep.Stats),
			rep.TotalAnomalies(),
		); err != nil {
			return fmt.Errorf("upsert qc run: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM audit.qc_artifacts WHERE run_id = $1`, rep.RunID); err != nil {
			return fmt.Errorf("clear qc artifacts: %w", err)
		}

		batch := &pgx.Batch{}
		for _, name := range rep.ArtifactNames() {
			s := rep.Stats[name]
			columnsJSON, err := json.Marshal(s.Columns)
			if err != nil {
				return fmt.Errorf("marshal columns: %w", err)
			}
			anomaliesJSON, err := json.Marshal(s.Anomalies)
			if err != nil {
				return fmt.Errorf("marshal anomalies: %w", err)
			}
			batch.Queue(`
				INSERT INTO audit.qc_artifacts (
					run_id, name, total_rows, unique_codes, start_date, end_date,
					file_size_bytes, columns, anomalies
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, rep.RunID, name, s.TotalRows, s.UniqueCodes, s.StartDate, s.EndDate,
				s.FileSizeBytes, columnsJSON, anomaliesJSON)
		}
		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert qc artifacts: %w", err)
		}
		return nil
	})
}

// LatestRun rebuilds the most recent persisted report
func (r *ReportRepository) LatestRun(ctx context.Context) (*contracts.QualityReport, error) {
	var runID string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT run_id FROM audit.qc_runs
		ORDER BY generated_at DESC
		LIMIT 1
	`).Scan(&runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest qc run: %w", err)
	}
	return r.GetRun(ctx, runID)
}

// GetRun rebuilds one persisted report
func (r *ReportRepository) GetRun(ctx context.Context, runID string) (*contracts.QualityReport, error) {
	var (
		generatedAt time.Time
		configHash  string
		errorsJSON  []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT generated_at, config_hash, errors
		FROM audit.qc_runs
		WHERE run_id = $1
	`, runID).Scan(&generatedAt, &configHash, &errorsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query qc run: %w", err)
	}

	rep := contracts.NewQualityReport(runID, generatedAt)
	rep.ConfigHash = configHash
	if err := json.Unmarshal(errorsJSON, &rep.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if rep.Errors == nil {
		rep.Errors = []string{}
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, total_rows, unique_codes, start_date, end_date,
			file_size_bytes, columns, anomalies
		FROM audit.qc_artifacts
		WHERE run_id = $1
		ORDER BY name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query qc artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name          string
			s             contracts.ArtifactStats
			totalRows     int64
			columnsJSON   []byte
			anomaliesJSON []byte
		)
		if err := rows.Scan(&name, &totalRows, &s.UniqueCodes, &s.StartDate, &s.EndDate,
			&s.FileSizeBytes, &columnsJSON, &anomaliesJSON); err != nil {
			return nil, fmt.Errorf("scan qc artifact: %w", err)
		}
		s.TotalRows = int(totalRows)
		if err := json.Unmarshal(columnsJSON, &s.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
		if err := json.Unmarshal(anomaliesJSON, &s.Anomalies); err != nil {
			return nil, fmt.Errorf("unmarshal anomalies: %w", err)
		}
		if s.Columns == nil {
			s.Columns = []string{}
		}
		if s.Anomalies == nil {
			s.Anomalies = map[string]int{}
		}
		s.FileSizeMB = quality.SizeMB(s.FileSizeBytes)
		quality.Tally(&s)
		rep.Stats[name] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qc artifacts: %w", err)
	}

	return rep, nil
}

// ListRuns returns the most recent run headers, newest first
func (r *ReportRepository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT run_id, generated_at, config_hash, jsonb_array_length(errors),
			artifact_count, anomaly_count
		FROM audit.qc_runs
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query qc runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[RunSummary])
	if err != nil {
		return nil, fmt.Errorf("collect qc runs: %w", err)
	}
	return runs, nil
}
