// Package config loads and validates the engine's tunable surface:
// scoring weights and thresholds, precedent decay, deliberation
// tuning, audit cadence, and storage selection. Every field has a
// default mirroring the engine's built-in constants, so an empty file
// and no file at all both yield a working configuration.
package config

import (
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calyptra/ace-go/pkg/errors"
)

// Config is the complete engine configuration.
type Config struct {
	Scoring      ScoringConfig      `yaml:"scoring,omitempty" validate:"omitempty"`
	Precedent    PrecedentConfig    `yaml:"precedent,omitempty" validate:"omitempty"`
	Deliberation DeliberationConfig `yaml:"deliberation,omitempty" validate:"omitempty"`
	Audit        AuditConfig        `yaml:"audit,omitempty" validate:"omitempty"`
	Storage      StorageConfig      `yaml:"storage,omitempty" validate:"omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty" validate:"omitempty"`
}

// ScoringConfig tunes the composite score and its tier thresholds.
type ScoringConfig struct {
	Weights    WeightsConfig    `yaml:"weights,omitempty"`
	Thresholds ThresholdsConfig `yaml:"thresholds,omitempty"`
}

// WeightsConfig blends the three factors; the three must sum to 1.
type WeightsConfig struct {
	Reversibility float64 `yaml:"reversibility" validate:"gte=0,lte=1"`
	Precedent     float64 `yaml:"precedent" validate:"gte=0,lte=1"`
	BlastRadius   float64 `yaml:"blast_radius" validate:"gte=0,lte=1"`
}

// ThresholdsConfig sets the tier boundaries. Act must sit above
// Deliberate.
type ThresholdsConfig struct {
	Act        float64 `yaml:"act" validate:"gte=0,lte=1"`
	Deliberate float64 `yaml:"deliberate" validate:"gte=0,lte=1"`
}

// PrecedentConfig tunes score movement and decay.
type PrecedentConfig struct {
	PositiveDelta       float64 `yaml:"positive_delta" validate:"gte=0,lte=1"`
	NegativeDelta       float64 `yaml:"negative_delta" validate:"gte=0,lte=1"`
	DecayHalfLifeDays   float64 `yaml:"decay_half_life_days" validate:"gt=0"`
	PropagationFraction float64 `yaml:"propagation_fraction" validate:"gte=0,lte=1"`
}

// Duration accepts Go duration strings ("90m", "2h") in yaml.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrap(err, errors.InvalidInput, "invalid duration "+value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DeliberationConfig tunes the five-step review.
type DeliberationConfig struct {
	LowPrecedent   float64  `yaml:"low_precedent" validate:"gte=0,lte=1"`
	DemoteConcerns int      `yaml:"demote_concerns" validate:"gte=1"`
	ConcernPenalty float64  `yaml:"concern_penalty" validate:"gte=0,lte=1"`
	UrgencyHorizon Duration `yaml:"urgency_horizon" validate:"gt=0"`
}

// AuditConfig tunes the longitudinal safety net.
type AuditConfig struct {
	RubberStampThreshold int     `yaml:"rubber_stamp_threshold" validate:"gte=1"`
	IntervalDays         int     `yaml:"interval_days" validate:"gte=1"`
	DriftWarnRate        float64 `yaml:"drift_warn_rate" validate:"gt=0,lte=1"`
	LogPath              string  `yaml:"log_path,omitempty"`
}

// StorageConfig selects the precedent backend.
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig selects log severity and output.
type LoggingConfig struct {
	Severity string `yaml:"severity" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=console json"`
	Path     string `yaml:"path,omitempty"`
}

// DefaultConfig returns the engine's built-in tuning.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				Reversibility: 0.30,
				Precedent:     0.35,
				BlastRadius:   0.35,
			},
			Thresholds: ThresholdsConfig{
				Act:        0.75,
				Deliberate: 0.40,
			},
		},
		Precedent: PrecedentConfig{
			PositiveDelta:       0.15,
			NegativeDelta:       0.20,
			DecayHalfLifeDays:   30,
			PropagationFraction: 0.5,
		},
		Deliberation: DeliberationConfig{
			LowPrecedent:   0.30,
			DemoteConcerns: 3,
			ConcernPenalty: 0.10,
			UrgencyHorizon: Duration(time.Hour),
		},
		Audit: AuditConfig{
			RubberStampThreshold: 10,
			IntervalDays:         7,
			DriftWarnRate:        0.3,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Severity: "info",
			Format:   "console",
		},
	}
}

// Load reads a yaml file over the defaults and validates the result.
// A missing path is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return cfg, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.StorageUnavailable, "cannot read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.InvalidInput, "cannot parse config file")
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// weightsSumTo1 is the cross-field rule struct tags cannot express.
func weightsSumTo1(w WeightsConfig) bool {
	sum := w.Reversibility + w.Precedent + w.BlastRadius
	return math.Abs(sum-1.0) < 1e-9
}
