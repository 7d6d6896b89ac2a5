/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared helpers for the analyzer commands: configuration loading, logger setup,
compression options and schema loading.
*/

package commands

import (
	"fmt"
	"runtime"

	"github.com/kleascm/bitlayout-analyzer/pkg/compression"
	"github.com/kleascm/bitlayout-analyzer/pkg/logging"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override, e.g. BITLAYOUT_ZSTD_LEVEL.
const envPrefix = "BITLAYOUT"

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	return nil
}

// SetupLogging builds the logger described by the configuration
func SetupLogging() (*logging.Logger, error) {
	cfg := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    logging.LogFormat(viper.GetString("log_format")),
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Colors:    true,
		Compress:  viper.GetBool("log_compress"),
	}
	if cfg.Level == "" {
		cfg.Level = logging.LogLevelInfo
	}
	if cfg.Format == "" {
		cfg.Format = logging.LogFormatText
	}
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.OutputDir != "" {
		lm := logging.NewLogManager(cfg.OutputDir, cfg.MaxFiles, cfg.MaxSize, cfg.Compress)
		if err := lm.RotateLogs(); err != nil {
			logger.Warning("Log rotation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return logger, nil
}

// setup runs LoadConfig and SetupLogging
func setup() (*logging.Logger, error) {
	if err := LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// compressionOptions reads the compression settings
func compressionOptions() compression.Options {
	opts := compression.DefaultOptions()
	if viper.IsSet("zstd_level") {
		opts.ZstdLevel = viper.GetInt("zstd_level")
	}
	if viper.IsSet("lz_match_multiplier") {
		opts.LZMatchMultiplier = viper.GetFloat64("lz_match_multiplier")
	}
	if viper.IsSet("entropy_multiplier") {
		opts.EntropyMultiplier = viper.GetFloat64("entropy_multiplier")
	}
	opts.Codecs = viper.GetStringSlice("codecs")
	return opts
}

// concurrencyLimit returns the configured number of parallel files
func concurrencyLimit() int {
	if n := viper.GetInt("concurrency"); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// loadSchema loads and logs a schema file
func loadSchema(path string, logger *logging.Logger) (*schema.Schema, error) {
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	logger.LogSchemaLoaded(path, s.Metadata.Name, len(s.Leaves()), s.TotalBits())
	return s, nil
}
