/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for the bit layout analyzer. Loads a schema, ingests the
records of one file or a whole directory and reports per-field and per-layout compression
metrics. Flags are bound to viper so every option can also come from a config file or a
BITLAYOUT_ environment variable.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/bitlayout-analyzer/cmd/analyzer/commands"
	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string

	// Logging configuration
	logLevel    string
	logFormat   string
	logDir      string
	logMaxFiles int
	logMaxSize  int64
	logCompress bool

	// Compression configuration
	zstdLevel         int
	lzMatchMultiplier float64
	entropyMultiplier float64
	codecs            []string

	// Output configuration
	outputDir    string
	outputFormat string
	concurrency  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bitlayout-analyzer",
		Short: "Bit layout analyzer - measure how field arrangements compress",
		Long: `Bit layout analyzer reads fixed-size binary records described by a YAML schema,
splits them into fields and measures how well each field, the raw records and any
alternate layouts declared in the schema compress.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Log output directory (empty logs to the console only)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	rootCmd.PersistentFlags().BoolVar(&logCompress, "log-compress", false, "Compress rotated log files")

	rootCmd.PersistentFlags().IntVar(&zstdLevel, "zstd-level", compression.DefaultZstdLevel, "zstd level used for compressed sizes (1-22)")
	rootCmd.PersistentFlags().Float64Var(&lzMatchMultiplier, "lz-match-multiplier", compression.DefaultLZMatchMultiplier, "Bytes saved per LZ match in the size estimate")
	rootCmd.PersistentFlags().Float64Var(&entropyMultiplier, "entropy-multiplier", compression.DefaultEntropyMultiplier, "Entropy scale in the size estimate")
	rootCmd.PersistentFlags().StringSliceVar(&codecs, "codecs", nil, "Extra codecs to measure (see list-codecs)")

	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "./results", "Directory for result files")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "Result format (json, csv, html)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Files analyzed in parallel (0 = number of CPUs)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))
	viper.BindPFlag("log_compress", rootCmd.PersistentFlags().Lookup("log-compress"))
	viper.BindPFlag("zstd_level", rootCmd.PersistentFlags().Lookup("zstd-level"))
	viper.BindPFlag("lz_match_multiplier", rootCmd.PersistentFlags().Lookup("lz-match-multiplier"))
	viper.BindPFlag("entropy_multiplier", rootCmd.PersistentFlags().Lookup("entropy-multiplier"))
	viper.BindPFlag("codecs", rootCmd.PersistentFlags().Lookup("codecs"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))

	analyzeFileCmd := &cobra.Command{
		Use:   "analyze-file <schema.yaml> <file>",
		Short: "Analyze the records of a single file",
		Long: `Resolve the schema's conditional offsets against the file, ingest every record from
the data start onwards and write field and comparison metrics to the output directory.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunAnalyzeFile,
	}
	analyzeFileCmd.Flags().Uint64("offset", 0, "Data start used when no conditional offset matches")
	rootCmd.AddCommand(analyzeFileCmd)

	analyzeDirCmd := &cobra.Command{
		Use:   "analyze-directory <schema.yaml> <dir>",
		Short: "Analyze every file in a directory and merge the results",
		Long: `Analyze each regular file under a directory in parallel, one analyzer per file, then
merge the per-file metrics into one result. Files that fail are reported together at the end.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunAnalyzeDirectory,
	}
	analyzeDirCmd.Flags().Uint64("offset", 0, "Data start used when no conditional offset matches")
	analyzeDirCmd.Flags().String("pattern", "*", "Glob matched against file names")
	analyzeDirCmd.Flags().Bool("per-file", false, "Also write the result of every file")
	viper.BindPFlag("pattern", analyzeDirCmd.Flags().Lookup("pattern"))
	viper.BindPFlag("per_file", analyzeDirCmd.Flags().Lookup("per-file"))
	rootCmd.AddCommand(analyzeDirCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-schema <schema.yaml>",
		Short: "Validate a schema and print its fields and comparisons",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunCheckSchema,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "offset <schema.yaml> <file>",
		Short: "Evaluate the schema's conditional offsets against a file",
		Args:  cobra.ExactArgs(2),
		RunE:  commands.RunOffset,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list-codecs",
		Short: "List the codecs that can be measured",
		Run: func(cmd *cobra.Command, args []string) {
			commands.ListCodecs(cmd, args)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "log-summary",
		Short: "Summarize the log files in --log-dir",
		Args:  cobra.NoArgs,
		RunE:  commands.RunLogSummary,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
