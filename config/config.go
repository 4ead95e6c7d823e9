// Package config defines the preprocessing core's constructor-time knobs.
// Loading these values from a file or environment is an external
// collaborator's responsibility (see spec.md §6): this package only
// defines the shape, via mapstructure tags a Viper-based loader can decode
// into directly, and a set of sensible defaults.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/antigravity/raptorprep/types"
)

// Config holds every tunable named in the spec's configuration table.
type Config struct {
	// ChunkSize is the number of stops per orchestrator task.
	ChunkSize int `mapstructure:"CHUNK_SIZE"`

	// DefaultRangeWindow is the query horizon per stop, in milliseconds.
	DefaultRangeWindow types.Duration `mapstructure:"RANGE_WINDOW_MS"`

	// DefaultEarliestDeparture is the query floor instant.
	DefaultEarliestDeparture types.Instant `mapstructure:"EARLIEST_DEPARTURE_MS"`

	// MaxSpeedKmh is the crow-fly provider's vehicle speed ceiling.
	MaxSpeedKmh float64 `mapstructure:"MAX_SPEED_KMH"`

	// StrictValidation runs raptorindex.CheckInvariants during Build.
	StrictValidation bool `mapstructure:"STRICT_VALIDATION"`

	// MaxRounds bounds the number of rounds (rides) a range query considers.
	MaxRounds int `mapstructure:"MAX_ROUNDS"`
}

// Default returns the spec's defaults: CHUNK_SIZE=5, a one-week range
// window starting at epoch 0, MAX_SPEED=500 km/h.
func Default() Config {
	return Config{
		ChunkSize:                5,
		DefaultRangeWindow:       types.Duration(types.MillisPerWeek),
		DefaultEarliestDeparture: 0,
		MaxSpeedKmh:              500,
		StrictValidation:         true,
		MaxRounds:                8,
	}
}

// Decode fills a copy of Default() from a raw key/value map — the shape a
// collaborator's config loader (environment variables, a parsed config
// file) hands off in. Unknown keys are ignored; present keys must match
// the field's mapstructure tag and decode to the field's type.
func Decode(raw map[string]any) (Config, error) {
	cfg := Default()
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
