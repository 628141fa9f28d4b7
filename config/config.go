// Package config loads and validates the YAML configuration shared by
// the daemon and the CLI. Omitted keys keep their defaults, so a config
// file only needs the values that differ.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	// Project tags recordings and detection runs.
	Project string `yaml:"project"`

	// ReferencesDir holds the cue waveform files.
	ReferencesDir string `yaml:"references_dir"`

	// DatabasePath is the SQLite file for recordings and runs.
	DatabasePath string `yaml:"database_path"`

	// ShutdownTimeoutS bounds graceful shutdown of the daemon.
	ShutdownTimeoutS float64 `yaml:"shutdown_timeout_s"`

	Transport TransportConfig `yaml:"transport"`
	Detection DetectionConfig `yaml:"detection"`
	Planner   PlannerConfig   `yaml:"planner"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig locates the MQTT bridge.
type TransportConfig struct {
	BrokerURL      string  `yaml:"broker_url"`
	ClientID       string  `yaml:"client_id"`
	TopicPrefix    string  `yaml:"topic_prefix"`
	Username       string  `yaml:"username"`
	Password       string  `yaml:"password"`
	MaxRetries     int     `yaml:"max_retries"`
	RetryDelayS    float64 `yaml:"retry_delay_s"`
	MaxRetryDelayS float64 `yaml:"max_retry_delay_s"`
}

// RetryDelay returns the initial backoff as a duration.
func (t TransportConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayS * float64(time.Second))
}

// MaxRetryDelay returns the backoff cap as a duration.
func (t TransportConfig) MaxRetryDelay() time.Duration {
	return time.Duration(t.MaxRetryDelayS * float64(time.Second))
}

// DetectionConfig tunes the cue detector and its batch pool.
type DetectionConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MinGapS        float64 `yaml:"min_gap_s"`
	BandPass       bool    `yaml:"band_pass"`
	BandLowHz      float64 `yaml:"band_low_hz"`
	BandHighHz     float64 `yaml:"band_high_hz"`
	Workers        int     `yaml:"workers"`
	MaxRefsPerKind int     `yaml:"max_refs_per_kind"`
}

// PlannerConfig sets cut-planning defaults.
type PlannerConfig struct {
	BarsPerCut    int     `yaml:"bars_per_cut"`
	SlotOverrideS float64 `yaml:"slot_override_s"`
}

// LoggingConfig selects log verbosity and output shape.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SlogLevel maps the configured level name onto slog.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfig is the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		ReferencesDir:    "./references",
		DatabasePath:     "./loopsync.sqlite",
		ShutdownTimeoutS: 5,
		Transport: TransportConfig{
			BrokerURL:      "tcp://127.0.0.1:1883",
			TopicPrefix:    "loopsync",
			MaxRetries:     5,
			RetryDelayS:    1,
			MaxRetryDelayS: 30,
		},
		Detection: DetectionConfig{
			Threshold:  0.20,
			MinGapS:    1.0,
			BandPass:   true,
			BandLowHz:  800,
			BandHighHz: 3500,
		},
		Planner: PlannerConfig{
			BarsPerCut: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutS * float64(time.Second))
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	if c.Transport.BrokerURL == "" {
		return fmt.Errorf("transport.broker_url is required")
	}
	if c.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s %f is negative", c.ShutdownTimeoutS)
	}
	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("transport.max_retries %d is negative", c.Transport.MaxRetries)
	}
	if c.Transport.RetryDelayS < 0 || c.Transport.MaxRetryDelayS < 0 {
		return fmt.Errorf("transport retry delays must not be negative")
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		return fmt.Errorf("detection.threshold %f outside [0, 1]", c.Detection.Threshold)
	}
	if c.Detection.MinGapS <= 0 {
		return fmt.Errorf("detection.min_gap_s %f must be positive", c.Detection.MinGapS)
	}
	if c.Detection.BandPass && c.Detection.BandLowHz >= c.Detection.BandHighHz {
		return fmt.Errorf("detection band [%f, %f] is inverted",
			c.Detection.BandLowHz, c.Detection.BandHighHz)
	}
	if c.Planner.BarsPerCut < 0 {
		return fmt.Errorf("planner.bars_per_cut %d is negative", c.Planner.BarsPerCut)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is unknown", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is unknown", c.Logging.Format)
	}
	return nil
}
