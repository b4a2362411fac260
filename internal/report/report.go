// Package report renders a QualityReport as qc_report.json and qc_summary.md
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wonny/consolidator/internal/contracts"
)

// Output file names
const (
	JSONFile     = "qc_report.json"
	MarkdownFile = "qc_summary.md"
)

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, rep *contracts.QualityReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// ReadJSON decodes a report previously written by WriteJSON
func ReadJSON(r io.Reader) (*contracts.QualityReport, error) {
	var rep contracts.QualityReport
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if rep.Stats == nil {
		rep.Stats = make(map[string]contracts.ArtifactStats)
	}
	if rep.Errors == nil {
		rep.Errors = []string{}
	}
	return &rep, nil
}

// LoadFile reads a qc_report.json file
func LoadFile(path string) (*contracts.QualityReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

// WriteMarkdown writes the human-readable summary. Critical errors come
// first; the artifact table headers are always emitted.
func WriteMarkdown(w io.Writer, rep *contracts.QualityReport) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Data Quality Report\n\n")
	if rep.RunID != "" {
		fmt.Fprintf(bw, "- **Run**: `%s`\n", rep.RunID)
	}
	if !rep.GeneratedAt.IsZero() {
		fmt.Fprintf(bw, "- **Generated**: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(bw, "- **Artifacts**: %d, **Anomalies**: %s\n\n", len(rep.Stats), humanize.Comma(int64(rep.TotalAnomalies())))

	if rep.HasErrors() {
		fmt.Fprintf(bw, "## Critical Errors\n\n")
		for _, e := range rep.Errors {
			fmt.Fprintf(bw, "- %s\n", e)
		}
		fmt.Fprintf(bw, "\n")
	}

	fmt.Fprintf(bw, "## Statistics\n\n")
	fmt.Fprintf(bw, "| Name | Rows | Codes | Date Range | Size (MB) | Anomalies | Columns |\n")
	fmt.Fprintf(bw, "|------|-----:|------:|------------|----------:|----------:|---------|\n")

	names := rep.ArtifactNames()
	for _, name := range names {
		s := rep.Stats[name]
		fmt.Fprintf(bw, "| %s | %s | %s | %s | %.2f | %s | %s |\n",
			name,
			humanize.Comma(int64(s.TotalRows)),
			humanize.Comma(int64(s.UniqueCodes)),
			s.DateRange(),
			s.FileSizeMB,
			humanize.Comma(int64(s.AnomalyCount)),
			strings.Join(s.Columns, ", "),
		)
	}

	var flagged []string
	for _, name := range names {
		if rep.Stats[name].AnomalyCount > 0 {
			flagged = append(flagged, name)
		}
	}

	if len(flagged) > 0 {
		fmt.Fprintf(bw, "\n## Anomalies\n\n")
		for _, name := range flagged {
			s := rep.Stats[name]
			fmt.Fprintf(bw, "### %s\n", name)
			for _, kind := range s.AnomalyTypes {
				fmt.Fprintf(bw, "- %s: %s\n", kind, humanize.Comma(int64(s.Anomalies[kind])))
			}
		}
	}

	return bw.Flush()
}

// Paths are the two written report files
type Paths struct {
	JSON     string
	Markdown string
}

// Emit writes both report files into dir
func Emit(dir string, rep *contracts.QualityReport) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create report dir: %w", err)
	}

	paths := Paths{
		JSON:     filepath.Join(dir, JSONFile),
		Markdown: filepath.Join(dir, MarkdownFile),
	}

	if err := writeFile(paths.JSON, func(w io.Writer) error { return WriteJSON(w, rep) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Markdown, func(w io.Writer) error { return WriteMarkdown(w, rep) }); err != nil {
		return Paths{}, err
	}

	return paths, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := render(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
