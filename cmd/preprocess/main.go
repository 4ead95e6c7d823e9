// Command preprocess is an illustrative harness showing how the
// preprocessing core is wired up by an external collaborator: it loads
// configuration, sets up logging and a progress bar, and runs the full
// pipeline. Fetching, importing, validating, merging, and simplifying the
// underlying transit dataset are a separate concern this harness does not
// implement; it runs the pipeline on an empty PreprocessingInput and reads
// no fixture or dataset from disk.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"

	"github.com/antigravity/raptorprep"
	"github.com/antigravity/raptorprep/config"
	"github.com/antigravity/raptorprep/input"
	"github.com/antigravity/raptorprep/orchestrator"
)

// progressBarSink adapts schollz/progressbar to orchestrator.ProgressSink.
type progressBarSink struct{}

func (progressBarSink) Add(total int) orchestrator.ProgressHandle {
	bar := progressbar.Default(int64(total), "preprocessing stops")
	return progressBarHandle{bar: bar}
}

type progressBarHandle struct {
	bar *progressbar.ProgressBar
}

func (h progressBarHandle) Inc(n int) {
	_ = h.bar.Add(n)
}

func (h progressBarHandle) FinishWithMessage(msg string) {
	_ = h.bar.Finish()
	fmt.Fprintln(os.Stderr, msg)
}

func loadConfig() config.Config {
	cfg := config.Default()

	v := viper.New()
	v.SetConfigName("raptorprep")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetDefault("CHUNK_SIZE", cfg.ChunkSize)
	v.SetDefault("RANGE_WINDOW_MS", int64(cfg.DefaultRangeWindow))
	v.SetDefault("EARLIEST_DEPARTURE_MS", int64(cfg.DefaultEarliestDeparture))
	v.SetDefault("MAX_SPEED_KMH", cfg.MaxSpeedKmh)
	v.SetDefault("STRICT_VALIDATION", cfg.StrictValidation)
	v.SetDefault("MAX_ROUNDS", cfg.MaxRounds)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			slog.Warn("failed to read config file, using defaults", "error", err)
		}
	}

	decoded, err := config.Decode(v.AllSettings())
	if err != nil {
		slog.Warn("failed to decode config, using defaults", "error", err)
		return cfg
	}
	return decoded
}

func run() error {
	logger := slog.Default().With(slog.String("component", "preprocess"))
	cfg := loadConfig()

	fixture := input.PreprocessingInput{}

	ctx := context.Background()
	result, err := raptorprep.PreprocessTransferPatterns(ctx, fixture, cfg, progressBarSink{}, logger)
	if err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}

	logger.Info("preprocessing complete",
		"stops", len(result.Raptor.Stops),
		"origins_with_patterns", len(result.Patterns),
	)
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("preprocess failed", "error", err)
		os.Exit(1)
	}
}
