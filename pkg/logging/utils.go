/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Log file management: size based rotation with optional gzip compression,
retention cleanup, log file statistics and a scanner that summarizes analysis events.
*/

package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// LogManager provides log rotation and retention
type LogManager struct {
	logDir   string
	maxFiles int
	maxSize  int64
	compress bool
}

// NewLogManager creates a new log manager
func NewLogManager(logDir string, maxFiles int, maxSize int64, compress bool) *LogManager {
	return &LogManager{
		logDir:   logDir,
		maxFiles: maxFiles,
		maxSize:  maxSize,
		compress: compress,
	}
}

func (lm *LogManager) glob(suffix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(lm.logDir, logFilePrefix+"*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}
	return files, nil
}

// RotateLogs rotates log files that exceed the size limit
func (lm *LogManager) RotateLogs() error {
	files, err := lm.glob(".log")
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := lm.rotateFile(file); err != nil {
			return fmt.Errorf("failed to rotate file %s: %w", file, err)
		}
	}
	return nil
}

// rotateFile rotates a single log file
func (lm *LogManager) rotateFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() < lm.maxSize {
		return nil
	}

	rotatedPath := fmt.Sprintf("%s.%s", path, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.Rename(path, rotatedPath); err != nil {
		return err
	}
	if lm.compress {
		return lm.compressFile(rotatedPath)
	}
	return nil
}

// compressFile gzips a log file and removes the original
func (lm *LogManager) compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	compressed, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer compressed.Close()

	gz := gzip.NewWriter(compressed)
	if _, err := io.Copy(gz, source); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// CleanupOldLogs removes the oldest log files beyond the retention count
func (lm *LogManager) CleanupOldLogs() error {
	files, err := lm.glob(".log*")
	if err != nil {
		return err
	}
	if len(files) <= lm.maxFiles {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		statI, _ := os.Stat(files[i])
		statJ, _ := os.Stat(files[j])
		return statI.ModTime().Before(statJ.ModTime())
	})
	for _, f := range files[:len(files)-lm.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove file %s: %w", f, err)
		}
	}
	return nil
}

// GetLogStats returns statistics about log files
func (lm *LogManager) GetLogStats() (*LogStats, error) {
	files, err := lm.glob(".log*")
	if err != nil {
		return nil, err
	}

	stats := &LogStats{
		TotalFiles: len(files),
		OldestFile: time.Now(),
	}
	for _, file := range files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSize += stat.Size()
		if stat.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = stat.ModTime()
		}
		if stat.ModTime().After(stats.NewestFile) {
			stats.NewestFile = stat.ModTime()
		}
		if strings.HasSuffix(file, ".gz") {
			stats.CompressedFiles++
		} else {
			stats.UncompressedFiles++
		}
	}
	return stats, nil
}

// LogStats holds statistics about log files
type LogStats struct {
	TotalFiles        int       `json:"total_files"`
	TotalSize         int64     `json:"total_size"`
	CompressedFiles   int       `json:"compressed_files"`
	UncompressedFiles int       `json:"uncompressed_files"`
	OldestFile        time.Time `json:"oldest_file"`
	NewestFile        time.Time `json:"newest_file"`
}

// LogAnalysis counts levels and analysis events found in log files
type LogAnalysis struct {
	LogFiles      int   `json:"log_files"`
	TotalLines    int64 `json:"total_lines"`
	DebugCount    int64 `json:"debug_count"`
	InfoCount     int64 `json:"info_count"`
	WarningCount  int64 `json:"warning_count"`
	ErrorCount    int64 `json:"error_count"`
	FilesAnalyzed int64 `json:"files_analyzed"`
	Comparisons   int64 `json:"comparisons"`
	SchemasLoaded int64 `json:"schemas_loaded"`
	RunsCompleted int64 `json:"runs_completed"`
}

// AnalyzeLogs scans the uncompressed log files
func (lm *LogManager) AnalyzeLogs() (*LogAnalysis, error) {
	files, err := lm.glob(".log")
	if err != nil {
		return nil, err
	}
	analysis := &LogAnalysis{LogFiles: len(files)}
	for _, file := range files {
		if err := analyzeFile(file, analysis); err != nil {
			return nil, fmt.Errorf("failed to analyze file %s: %w", file, err)
		}
	}
	return analysis, nil
}

func analyzeFile(path string, analysis *LogAnalysis) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		analysis.countLine(scanner.Text())
	}
	return scanner.Err()
}

func (a *LogAnalysis) countLine(line string) {
	a.TotalLines++

	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "DEBU"):
		a.DebugCount++
	case strings.Contains(upper, "INFO"):
		a.InfoCount++
	case strings.Contains(upper, "WARN"):
		a.WarningCount++
	case strings.Contains(upper, "ERRO"):
		a.ErrorCount++
	}

	switch {
	case strings.Contains(line, "File analyzed"):
		a.FilesAnalyzed++
	case strings.Contains(line, "Comparison measured"):
		a.Comparisons++
	case strings.Contains(line, "Schema loaded"):
		a.SchemasLoaded++
	case strings.Contains(line, "Run complete"):
		a.RunsCompleted++
	}
}

// Summary returns a short human readable summary
func (a *LogAnalysis) Summary() string {
	return fmt.Sprintf(
		"Log Analysis Summary:\n"+
			"  Files: %d\n"+
			"  Total Lines: %d\n"+
			"  Warnings: %d\n"+
			"  Errors: %d\n"+
			"  Files Analyzed: %d\n"+
			"  Comparisons: %d",
		a.LogFiles, a.TotalLines, a.WarningCount, a.ErrorCount, a.FilesAnalyzed, a.Comparisons,
	)
}
