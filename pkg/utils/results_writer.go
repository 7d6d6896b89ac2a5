/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: results_writer.go
Description: Writes analysis results to the output directory as timestamped JSON, an HTML
dashboard, or a pair of CSV tables (fields and comparisons). Ensures directories exist.
*/

package utils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/reporting"
	"github.com/kleascm/bitlayout-analyzer/pkg/results"
)

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// WriteResults writes res under dir in the given format and returns the files written.
func WriteResults(dir, name, format string, res *results.AnalysisResults) ([]string, error) {
	switch format {
	case FormatJSON, "":
		path, err := WriteJSONResult(dir, name, res)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	case FormatCSV:
		return WriteCSVResults(dir, name, res)
	case FormatHTML:
		path, err := reporting.NewDashboardGenerator(dir, nil).GenerateDashboard(baseName(name), res)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// baseName builds names like 2024-06-11_01-30-00_bc1
func baseName(name string) string {
	return fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02_15-04-05"), name)
}

// WriteJSONResult writes any result value as indented JSON
func WriteJSONResult(dir, name string, result interface{}) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	filePath := filepath.Join(dir, baseName(name)+".json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return filePath, nil
}

// WriteCSVResults writes one table of field metrics and one of comparison layouts.
func WriteCSVResults(dir, name string, res *results.AnalysisResults) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(dir, baseName(name))
	codecs := codecColumns(res)

	fieldsPath := base + "_fields.csv"
	fieldRows := [][]string{append([]string{
		"path", "depth", "bits", "bit_order", "count", "skipped", "distinct_values",
		"entropy", "lz_matches", "zstd_size", "estimated_size", "original_size",
	}, codecs...)}
	fieldRows = append(fieldRows, append([]string{
		"<record>", "", "", "", strconv.FormatUint(res.Entries, 10), "", "",
	}, metricCells(res.Record, codecs)...))
	for _, f := range res.Fields {
		row := []string{
			f.Path,
			strconv.Itoa(f.Depth),
			strconv.Itoa(f.Bits),
			f.BitOrder,
			strconv.FormatUint(f.Count, 10),
			strconv.FormatUint(f.Skipped, 10),
			strconv.Itoa(f.DistinctValues),
		}
		fieldRows = append(fieldRows, append(row, metricCells(f.Metrics, codecs)...))
	}
	if err := writeCSV(fieldsPath, fieldRows); err != nil {
		return nil, err
	}

	comparisonsPath := base + "_comparisons.csv"
	cmpRows := [][]string{append([]string{
		"comparison", "kind", "layout", "size_delta", "estimated_size_delta",
		"entropy", "lz_matches", "zstd_size", "estimated_size", "original_size",
	}, codecs...)}
	for _, c := range res.Comparisons {
		layouts := append([]results.LayoutMetrics{c.Baseline}, c.Comparisons...)
		for _, l := range layouts {
			row := []string{
				c.Name,
				c.Kind,
				l.Name,
				strconv.Itoa(l.SizeDelta),
				strconv.FormatFloat(l.EstimatedSizeDelta, 'f', 2, 64),
			}
			cmpRows = append(cmpRows, append(row, metricCells(l.Metrics, codecs)...))
		}
	}
	if err := writeCSV(comparisonsPath, cmpRows); err != nil {
		return nil, err
	}
	return []string{fieldsPath, comparisonsPath}, nil
}

func codecColumns(res *results.AnalysisResults) []string {
	seen := make(map[string]bool)
	for name := range res.Record.CodecSizes {
		seen[name] = true
	}
	for _, f := range res.Fields {
		for name := range f.Metrics.CodecSizes {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func metricCells(m compression.Metrics, codecs []string) []string {
	cells := []string{
		strconv.FormatFloat(m.Entropy, 'f', 4, 64),
		strconv.Itoa(m.LZMatches),
		strconv.Itoa(m.CompressedSize),
		strconv.FormatFloat(m.EstimatedSize, 'f', 2, 64),
		strconv.Itoa(m.OriginalSize),
	}
	for _, name := range codecs {
		cells = append(cells, strconv.Itoa(m.CodecSizes[name]))
	}
	return cells
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
