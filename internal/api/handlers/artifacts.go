package handlers

import (
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wonny/consolidator/pkg/logger"
)

// ArtifactInfo is one finished file in the output directory
type ArtifactInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	Size       string    `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ArtifactHandler lists output artifacts
type ArtifactHandler struct {
	outputDir string
	logger    *logger.Logger
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(outputDir string, log *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{outputDir: outputDir, logger: log}
}

// List returns the parquet artifacts sorted by name. Hidden temp files of an
// in-flight run are not listed.
// GET /api/artifacts
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.outputDir)
	if err != nil && !os.IsNotExist(err) {
		h.logger.WithError(err).Error("Failed to read output dir")
		respondError(w, http.StatusInternalServerError, "Failed to list artifacts")
		return
	}

	artifacts := make([]ArtifactInfo, 0, len(entries))
	var total int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, ArtifactInfo{
			Name:       name,
			SizeBytes:  info.Size(),
			Size:       humanize.Bytes(uint64(info.Size())),
			ModifiedAt: info.ModTime().UTC(),
		})
		total += info.Size()
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"artifacts":  artifacts,
		"count":      len(artifacts),
		"total_size": humanize.Bytes(uint64(total)),
	})
}
