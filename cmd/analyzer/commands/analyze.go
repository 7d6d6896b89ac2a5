/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyze.go
Description: analyze-file and analyze-directory commands. Each file gets its own analyzer;
directories are processed with a bounded errgroup and per-file failures are collected with
multierr so one bad file does not hide the others.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kleascm/bitlayout-analyzer/pkg/analyzer"
	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/logging"
	"github.com/kleascm/bitlayout-analyzer/pkg/monitoring"
	"github.com/kleascm/bitlayout-analyzer/pkg/offset"
	"github.com/kleascm/bitlayout-analyzer/pkg/results"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/kleascm/bitlayout-analyzer/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// RunAnalyzeFile analyzes a single file
func RunAnalyzeFile(cmd *cobra.Command, args []string) error {
	logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := loadSchema(args[0], logger)
	if err != nil {
		return err
	}
	provider, err := compression.NewProvider(compressionOptions())
	if err != nil {
		return fmt.Errorf("invalid compression options: %w", err)
	}
	defOffset, _ := cmd.Flags().GetUint64("offset")

	ctx, cancel := signalContext()
	defer cancel()

	res, err := AnalyzeFile(ctx, s, args[1], defOffset, provider, logger)
	if err != nil {
		return err
	}
	logComparisons(logger, res)

	paths, err := utils.WriteResults(viper.GetString("output_dir"), resultName(s, args[1]), viper.GetString("format"), res)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	printSummary(res, paths)
	logger.LogRunSummary(res.RunID, 1, 0, nil)
	return nil
}

// RunAnalyzeDirectory analyzes every matching file in a directory
func RunAnalyzeDirectory(cmd *cobra.Command, args []string) error {
	logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := loadSchema(args[0], logger)
	if err != nil {
		return err
	}
	provider, err := compression.NewProvider(compressionOptions())
	if err != nil {
		return fmt.Errorf("invalid compression options: %w", err)
	}
	defOffset, _ := cmd.Flags().GetUint64("offset")

	pattern := viper.GetString("pattern")
	if pattern == "" {
		pattern = "*"
	}
	files, err := listFiles(args[1], pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files matching %q in %s", pattern, args[1])
	}

	ctx, cancel := signalContext()
	defer cancel()

	mc := monitoring.NewMetricsCollector(logger.GetLogger(), len(files))
	if err := mc.Start(ctx); err != nil {
		return err
	}
	perFile, failures := AnalyzeFiles(ctx, s, files, defOffset, provider, logger, concurrencyLimit(), mc)
	run, _ := mc.Stop()
	if len(perFile) == 0 {
		return fmt.Errorf("every file failed: %w", failures)
	}

	outDir := viper.GetString("output_dir")
	format := viper.GetString("format")
	if viper.GetBool("per_file") {
		for _, res := range perFile {
			if _, err := utils.WriteResults(outDir, resultName(s, res.Sources[0]), format, res); err != nil {
				failures = multierr.Append(failures, err)
			}
		}
	}

	merged, err := results.Merge(perFile...)
	if err != nil {
		return fmt.Errorf("failed to merge results: %w", err)
	}
	logComparisons(logger, merged)

	paths, err := utils.WriteResults(outDir, resultName(s, args[1]), format, merged)
	if err != nil {
		return multierr.Append(failures, fmt.Errorf("failed to write results: %w", err))
	}
	printSummary(merged, paths)

	fmt.Printf("⏱️  %d files in %s (%.1f files/s, %s/s, peak heap %s)\n",
		run.FilesDone, run.Uptime.Round(time.Millisecond), run.FilesPerSecond,
		logging.FormatBytes(int64(run.BytesPerSecond)), logging.FormatBytes(int64(run.PeakHeap)))

	errs := multierr.Errors(failures)
	logger.LogRunSummary(merged.RunID, len(files), len(errs), map[string]interface{}{
		"records":   run.Records,
		"bytes":     run.Bytes,
		"peak_heap": run.PeakHeap,
	})
	for _, e := range errs {
		logger.Error("File failed", map[string]interface{}{"error": e.Error()})
	}
	if failures != nil {
		return fmt.Errorf("%d of %d files failed: %w", len(errs), len(files), failures)
	}
	return nil
}

// AnalyzeFile runs the whole pipeline for one file: offset, ingestion and metrics.
func AnalyzeFile(ctx context.Context, s *schema.Schema, path string, defOffset uint64, provider *compression.Provider, logger *logging.Logger) (*results.AnalysisResults, error) {
	start := time.Now()

	dataStart, matched, err := offset.TryEvaluateFile(s.ConditionalOffsets, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !matched {
		dataStart = defOffset
	}
	logger.LogOffsetResolved(path, dataStart, matched)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if dataStart > uint64(len(data)) {
		return nil, fmt.Errorf("%s: data offset %d beyond file size %d", path, dataStart, len(data))
	}

	records := data[dataStart:]
	if rem := len(records) % s.TotalBytes(); rem != 0 {
		logger.Warning("Ignoring trailing partial record", map[string]interface{}{
			"file":  path,
			"bytes": rem,
		})
		records = records[:len(records)-rem]
	}
	a, err := analyzer.New(s, analyzer.Options{
		Compression:     provider.Options(),
		Logger:          logger.GetLogger().WithField("file", filepath.Base(path)),
		ExpectedEntries: len(records) / s.TotalBytes(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := a.AddEntries(records); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	res, err := results.Compute(ctx, a, provider)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Sources = []string{path}

	logger.LogFileAnalyzed(path, a.Entries(), time.Since(start), map[string]interface{}{
		"size":      logging.FormatBytes(int64(len(data))),
		"zstd_size": res.Record.CompressedSize,
	})
	return res, nil
}

// AnalyzeFiles analyzes files in parallel. Results come back in file order;
// failed files are left out and reported in the combined error. mc may be nil.
func AnalyzeFiles(ctx context.Context, s *schema.Schema, files []string, defOffset uint64, provider *compression.Provider, logger *logging.Logger, limit int, mc *monitoring.MetricsCollector) ([]*results.AnalysisResults, error) {
	slots := make([]*results.AnalysisResults, len(files))
	var (
		mu       sync.Mutex
		failures error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := AnalyzeFile(ctx, s, path, defOffset, provider, logger)
			if err != nil {
				if mc != nil {
					mc.RecordFailure()
				}
				mu.Lock()
				failures = multierr.Append(failures, err)
				mu.Unlock()
				return nil
			}
			if mc != nil {
				mc.RecordFile(res.Entries, int64(res.Record.OriginalSize))
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failures = multierr.Append(failures, err)
	}

	out := make([]*results.AnalysisResults, 0, len(files))
	for _, res := range slots {
		if res != nil {
			out = append(out, res)
		}
	}
	return out, failures
}

func listFiles(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func resultName(s *schema.Schema, source string) string {
	name := s.Metadata.Name
	if name == "" {
		name = "schema"
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return strings.ReplaceAll(name+"_"+base, " ", "_")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func logComparisons(logger *logging.Logger, res *results.AnalysisResults) {
	for _, c := range res.Comparisons {
		for _, l := range c.Comparisons {
			logger.LogComparison(c.Name, l.Name, c.Baseline.Metrics.CompressedSize, l.Metrics.CompressedSize)
		}
	}
}

func printSummary(res *results.AnalysisResults, paths []string) {
	fmt.Println()
	fmt.Printf("📊 %s: %d records from %d file(s)\n", res.Schema, res.Entries, len(res.Sources))
	fmt.Printf("   records  %8d -> %8d bytes (ratio %.3f, entropy %.3f)\n",
		res.Record.OriginalSize, res.Record.CompressedSize, res.Record.Ratio(), res.Record.Entropy)
	for _, f := range res.Fields {
		fmt.Printf("   %-24s %3d bits  %8d -> %8d bytes  entropy %.3f\n",
			f.Path, f.Bits, f.Metrics.OriginalSize, f.Metrics.CompressedSize, f.Metrics.Entropy)
	}
	for _, c := range res.Comparisons {
		fmt.Printf("\n🔀 %s (%s)\n", c.Name, c.Kind)
		fmt.Printf("   %-24s %8d bytes\n", c.Baseline.Name, c.Baseline.Metrics.CompressedSize)
		for _, l := range c.Comparisons {
			fmt.Printf("   %-24s %8d bytes (%+d)\n", l.Name, l.Metrics.CompressedSize, l.SizeDelta)
		}
	}
	fmt.Println()
	for _, p := range paths {
		fmt.Printf("✨ Results written to %s\n", p)
	}
}
