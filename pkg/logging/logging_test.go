/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logging_test.go
Description: Tests for the logging system: config validation, formats, file output,
analysis helpers, rotation and log scanning.
*/

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggerConfigValidate tests config validation
func TestLoggerConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultLoggerConfig().Validate())

	cfg := DefaultLoggerConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoggerConfig()
	cfg.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoggerConfig()
	cfg.OutputDir = t.TempDir()
	cfg.MaxFiles = 0
	assert.Error(t, cfg.Validate())
}

// TestLogFormats tests that every format writes the message
func TestLogFormats(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON, LogFormatCustom} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultLoggerConfig()
			cfg.Format = format
			cfg.Colors = false
			logger, err := NewLoggerTo(cfg, &buf)
			require.NoError(t, err)
			defer logger.Close()

			logger.Info("Hello layouts", map[string]interface{}{"key": "value"})
			assert.Contains(t, buf.String(), "Hello layouts")
			assert.Contains(t, buf.String(), "value")
		})
	}
}

// TestLogLevelFilter tests that debug output is dropped at info level
func TestLogLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Colors = false
	logger, err := NewLoggerTo(cfg, &buf)
	require.NoError(t, err)

	logger.Debug("hidden", nil)
	logger.Warning("shown", nil)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

// TestAnalysisHelpers tests the analysis-specific helpers and prefixes
func TestAnalysisHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Format = LogFormatCustom
	cfg.Colors = false
	cfg.Timestamp = false
	logger, err := NewLoggerTo(cfg, &buf)
	require.NoError(t, err)

	logger.LogSchemaLoaded("bc1.yaml", "BC1", 3, 64)
	logger.LogFileAnalyzed("a.dds", 128, time.Second, nil)
	logger.LogComparison("split", "group_2", 100, 90)
	logger.LogRunSummary("run-1", 2, 0, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "[SCHEMA] INFO Schema loaded"))
	assert.Contains(t, lines[0], "record_bits=64")
	assert.True(t, strings.HasPrefix(lines[1], "[FILE]"))
	assert.Contains(t, lines[1], "duration=1s")
	assert.Contains(t, lines[2], "size_delta=-10")
	assert.True(t, strings.HasPrefix(lines[3], "[SUMMARY]"))
}

// TestCustomFormatterSortsFields tests deterministic field order
func TestCustomFormatterSortsFields(t *testing.T) {
	f := &CustomFormatter{}
	out, err := f.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"b": 2, "a": 1, "c": []byte{0xAB}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INFO m a=1 b=2 c=ab\n", string(out))
}

// TestFileOutputAndScan tests log file creation and the log scanner
func TestFileOutputAndScan(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLoggerConfig()
	cfg.OutputDir = dir
	cfg.Colors = false
	var console bytes.Buffer
	logger, err := NewLoggerTo(cfg, &console)
	require.NoError(t, err)

	logger.LogFileAnalyzed("a.bin", 4, time.Millisecond, nil)
	logger.LogComparison("c", "l", 10, 12)
	logger.Error("boom", nil)
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	analysis, err := NewLogManager(dir, 5, 1024, false).AnalyzeLogs()
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.LogFiles)
	assert.Equal(t, int64(1), analysis.FilesAnalyzed)
	assert.Equal(t, int64(1), analysis.Comparisons)
	assert.Equal(t, int64(1), analysis.ErrorCount)
	assert.Contains(t, analysis.Summary(), "Files Analyzed: 1")
}

// TestRotationWithCompression tests rotating an oversized log into a gzip file
func TestRotationWithCompression(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFilePrefix+"2024-01-01_00-00-00.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("line\n"), 100), 0644))

	lm := NewLogManager(dir, 5, 64, true)
	require.NoError(t, lm.RotateLogs())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	stats, err := lm.GetLogStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.CompressedFiles)
}

// TestFormatBytes tests byte count rendering
func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 MiB", FormatBytes(2*1024*1024))
}
