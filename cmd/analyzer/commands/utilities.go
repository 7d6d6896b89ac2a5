/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utilities.go
Description: Small informational commands: available codecs and a summary of the log directory.
*/

package commands

import (
	"fmt"
	"time"

	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ListCodecs prints the codecs available for --codecs
func ListCodecs(cmd *cobra.Command, args []string) {
	fmt.Println("🗜️  Available codecs:")
	for _, name := range compression.CodecNames() {
		note := ""
		if name == "zstd" {
			note = " (always measured, level from --zstd-level)"
		}
		fmt.Printf("   %s%s\n", name, note)
	}
}

// RunLogSummary prints statistics of the log directory and counts the analysis events logged there
func RunLogSummary(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	dir := viper.GetString("log_dir")
	if dir == "" {
		return fmt.Errorf("no log directory configured (use --log-dir)")
	}

	lm := logging.NewLogManager(dir, viper.GetInt("log_max_files"), viper.GetInt64("log_max_size"), viper.GetBool("log_compress"))
	stats, err := lm.GetLogStats()
	if err != nil {
		return err
	}
	fmt.Printf("📁 %s: %d log files, %s (%d compressed)\n",
		dir, stats.TotalFiles, logging.FormatBytes(stats.TotalSize), stats.CompressedFiles)
	if stats.TotalFiles > 0 {
		fmt.Printf("   oldest %s, newest %s\n",
			stats.OldestFile.Format(time.RFC3339), stats.NewestFile.Format(time.RFC3339))
	}

	analysis, err := lm.AnalyzeLogs()
	if err != nil {
		return err
	}
	fmt.Println(analysis.Summary())
	fmt.Printf("  Schemas Loaded: %d\n  Runs Completed: %d\n", analysis.SchemasLoaded, analysis.RunsCompleted)
	return nil
}
