package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cast"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/report"
	"github.com/wonny/consolidator/internal/store"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// RunStore reads persisted runs (internal/store.ReportRepository)
type RunStore interface {
	LatestRun(ctx context.Context) (*contracts.QualityReport, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// QCHandler serves QC reports
// ⭐ SSOT: QC 리포트 API 핸들러는 이 구조체에서만
type QCHandler struct {
	outputDir string
	cache     *redis.Cache
	runs      RunStore // nil when DATABASE_URL is unset
	logger    *logger.Logger
}

// NewQCHandler creates a new QC handler
func NewQCHandler(outputDir string, cache *redis.Cache, runs RunStore, log *logger.Logger) *QCHandler {
	return &QCHandler{
		outputDir: outputDir,
		cache:     cache,
		runs:      runs,
		logger:    log,
	}
}

// GetLatest returns the report of the last run in the output directory
// GET /api/qc/latest[?format=markdown]
func (h *QCHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rep, err := h.latest(ctx)
	if errors.Is(err, os.ErrNotExist) {
		respondError(w, http.StatusNotFound, "No QC report yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load QC report")
		respondError(w, http.StatusInternalServerError, "Failed to load QC report")
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		var buf bytes.Buffer
		if err := report.WriteMarkdown(&buf, rep); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to render QC report")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

// latest reads through the cache; the runner refreshes it after every run
func (h *QCHandler) latest(ctx context.Context) (*contracts.QualityReport, error) {
	var rep contracts.QualityReport
	if hit, err := h.cache.Get(ctx, redis.LatestReportKey(), &rep); err == nil && hit {
		return &rep, nil
	}

	loaded, err := report.LoadFile(filepath.Join(h.outputDir, report.JSONFile))
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, redis.LatestReportKey(), loaded, redis.TTLShort); err != nil {
		h.logger.WithError(err).Warn("Failed to cache QC report")
	}
	return loaded, nil
}

// GetLatestRun returns the newest persisted run
// GET /api/qc/runs/latest
func (h *QCHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Report store not configured")
		return
	}

	rep, err := h.runs.LatestRun(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No persisted runs")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

// ListRuns returns recent run headers
// GET /api/qc/runs?limit=20
func (h *QCHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Report store not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
