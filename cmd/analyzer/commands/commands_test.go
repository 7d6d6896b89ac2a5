/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: commands_test.go
Description: Tests for the per-file pipeline, parallel directory analysis and file listing.
*/

package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/logging"
	"github.com/kleascm/bitlayout-analyzer/pkg/monitoring"
	"github.com/kleascm/bitlayout-analyzer/pkg/results"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Files starting with "BL" carry a 4 byte header; anything else starts at the default offset.
const nibbleSchema = `
version: '1.0'
metadata:
  name: nibbles
conditional_offsets:
  - offset: 4
    conditions:
      - byte_offset: 0
        bits: 16
        value: 0x424C
root:
  fields:
    hi: 4
    lo: 4
`

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLoggerTo(&logging.LoggerConfig{
		Level:  logging.LogLevelError,
		Format: logging.LogFormatText,
	}, io.Discard)
	require.NoError(t, err)
	return logger
}

func testSetup(t *testing.T) (*schema.Schema, *compression.Provider) {
	t.Helper()
	s, err := schema.Load([]byte(nibbleSchema))
	require.NoError(t, err)
	p, err := compression.NewProvider(compression.DefaultOptions())
	require.NoError(t, err)
	return s, p
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestAnalyzeFileUsesConditionalOffset(t *testing.T) {
	s, p := testSetup(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte{'B', 'L', 0xFF, 0xFF, 0x12, 0x34, 0x12})

	res, err := AnalyzeFile(context.Background(), s, path, 0, p, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, uint64(3), res.Entries)
	assert.Equal(t, []string{path}, res.Sources)
	hi, ok := res.Field("hi")
	require.True(t, ok)
	assert.Equal(t, uint64(3), hi.Count)
	assert.Equal(t, 2, hi.DistinctValues)
}

func TestAnalyzeFileDefaultOffset(t *testing.T) {
	s, p := testSetup(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "b.bin", []byte{0x00, 0x11, 0x22, 0x33, 0x44})

	res, err := AnalyzeFile(context.Background(), s, path, 2, p, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Entries)

	_, err = AnalyzeFile(context.Background(), s, path, 6, p, testLogger(t))
	assert.Error(t, err)
}

func TestAnalyzeFilesCollectsFailures(t *testing.T) {
	s, p := testSetup(t)
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.bin", []byte{'B', 'L', 0, 0, 0x12, 0x34, 0x12, 0x34}),
		writeFile(t, dir, "b.bin", []byte{0x12, 0x56, 0x9A}),
		// header matches but the file ends before the data start
		writeFile(t, dir, "c.bin", []byte{'B', 'L'}),
		filepath.Join(dir, "missing.bin"),
	}

	mc := monitoring.NewMetricsCollector(logrus.New(), len(files))
	out, err := AnalyzeFiles(context.Background(), s, files, 0, p, testLogger(t), 2, mc)
	require.Error(t, err)

	run := mc.Snapshot()
	assert.Equal(t, int64(2), run.FilesDone)
	assert.Equal(t, int64(2), run.FilesFailed)
	assert.Equal(t, int64(7), run.Records)
	assert.Contains(t, err.Error(), "c.bin")
	assert.Contains(t, err.Error(), "missing.bin")

	require.Len(t, out, 2)
	assert.Equal(t, []string{files[0]}, out[0].Sources)
	assert.Equal(t, []string{files[1]}, out[1].Sources)

	merged, err := results.Merge(out...)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), merged.Entries)
	assert.Equal(t, files[:2], merged.Sources)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.bin", nil)
	writeFile(t, dir, "a.bin", nil)
	writeFile(t, dir, "notes.txt", nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	writeFile(t, filepath.Join(dir, "nested"), "c.bin", nil)

	files, err := listFiles(dir, "*.bin")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.bin"),
		filepath.Join(dir, "b.bin"),
		filepath.Join(dir, "nested", "c.bin"),
	}, files)

	_, err = listFiles(dir, "[")
	assert.Error(t, err)
}

func TestResultName(t *testing.T) {
	s, _ := testSetup(t)
	assert.Equal(t, "nibbles_a", resultName(s, "/data/a.bin"))
	s.Metadata.Name = "my schema"
	assert.Equal(t, "my_schema_dir", resultName(s, "/data/dir"))
}
