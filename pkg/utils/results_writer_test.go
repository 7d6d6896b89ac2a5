/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: results_writer_test.go
Description: Tests for the JSON and CSV result writers.
*/

package utils

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *results.AnalysisResults {
	return &results.AnalysisResults{
		RunID:   "run",
		Schema:  "bc1",
		Entries: 4,
		Record:  compression.Metrics{Entropy: 3.5, CompressedSize: 10, OriginalSize: 32, CodecSizes: map[string]int{"lz4": 12}},
		Fields: []results.FieldMetrics{
			{Path: "colors.color0", Depth: 1, Bits: 16, BitOrder: "msb", Count: 4, Metrics: compression.Metrics{OriginalSize: 8, CodecSizes: map[string]int{"lz4": 6}}},
			{Path: "indices", Bits: 32, BitOrder: "lsb", Count: 4, Metrics: compression.Metrics{OriginalSize: 16}},
		},
		Comparisons: []results.ComparisonResult{{
			Name:        "split",
			Kind:        results.KindSplit,
			Baseline:    results.LayoutMetrics{Name: "group_1", Metrics: compression.Metrics{CompressedSize: 9}},
			Comparisons: []results.LayoutMetrics{{Name: "group_2", SizeDelta: -2, Metrics: compression.Metrics{CompressedSize: 7}}},
		}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteResults(dir, "bc1", FormatJSON, sampleResults())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], "_bc1.json"))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var decoded results.AnalysisResults
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run", decoded.RunID)
	assert.Len(t, decoded.Fields, 2)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteResults(dir, "bc1", FormatCSV, sampleResults())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	fields := readCSV(t, paths[0])
	require.Len(t, fields, 4)
	assert.Equal(t, "path", fields[0][0])
	assert.Equal(t, "lz4", fields[0][len(fields[0])-1])
	assert.Equal(t, "<record>", fields[1][0])
	assert.Equal(t, "12", fields[1][len(fields[1])-1])
	assert.Equal(t, "colors.color0", fields[2][0])
	assert.Equal(t, "6", fields[2][len(fields[2])-1])
	assert.Equal(t, "0", fields[3][len(fields[3])-1])

	cmps := readCSV(t, paths[1])
	require.Len(t, cmps, 3)
	assert.Equal(t, []string{"split", "split", "group_1", "0"}, cmps[1][:4])
	assert.Equal(t, []string{"split", "split", "group_2", "-2"}, cmps[2][:4])
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteResults(dir, "bc1", FormatHTML, sampleResults())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], "_bc1.html"))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "colors.color0")
}

func TestWriteUnknownFormat(t *testing.T) {
	_, err := WriteResults(t.TempDir(), "x", "xml", sampleResults())
	assert.Error(t, err)
}
