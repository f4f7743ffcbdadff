// Package config loads the primeline configuration file. All settings
// have working defaults; the file and the command line only override
// them.
package config

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
)

const (
	// DefaultFileName is looked up in the working directory when no
	// --config flag is given.
	DefaultFileName = "primeline.yaml"

	// FileVersion is the current config schema version.
	FileVersion = "1.0"

	fileVersionConstraint = ">= 1.0, < 2.0"
)

// Config is the full primeline configuration.
type Config struct {
	Version    string            `yaml:"version"`
	SessionDir string            `yaml:"session_dir"`
	OneBased   bool              `yaml:"one_based"`
	LogLevel   string            `yaml:"log_level"`
	LogLevels  map[string]string `yaml:"log_levels"`
	Relations  map[string]uint64 `yaml:"relations"`
	Analysis   AnalysisConfig    `yaml:"analysis"`
	Watch      WatchConfig       `yaml:"watch"`
	Export     ExportConfig      `yaml:"export"`
	Tracing    TracingConfig     `yaml:"tracing"`
}

// AnalysisConfig tunes the analysis pipeline. Zero values fall back to
// each analyzer's default.
type AnalysisConfig struct {
	Samples  int     `yaml:"samples"`
	Modes    int     `yaml:"modes"`
	Sigma    float64 `yaml:"sigma"`
	TopN     int     `yaml:"top"`
	BinWidth float64 `yaml:"bin_width"`
}

// WatchConfig tunes the artifact watcher daemon.
type WatchConfig struct {
	DebounceMillis int    `yaml:"debounce_ms"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// ExportConfig tunes the export command.
type ExportConfig struct {
	ElasticIndex string `yaml:"elastic_index"`
}

// TracingConfig holds the OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:    FileVersion,
		SessionDir: "./sessions",
		LogLevel:   "info",
		Watch: WatchConfig{
			DebounceMillis: 500,
			MetricsAddr:    ":9464",
		},
		Export: ExportConfig{
			ElasticIndex: "primeline",
		},
	}
}

// Validate checks the configuration for contract violations.
func (c *Config) Validate() error {
	if c.Version != "" {
		v, err := version.NewVersion(c.Version)
		if err != nil {
			return NewConfigError("invalid config version %q: %v", c.Version, err)
		}
		constraint, err := version.NewConstraint(fileVersionConstraint)
		if err != nil {
			return fmt.Errorf("invalid version constraint %q: %w", fileVersionConstraint, err)
		}
		if !constraint.Check(v) {
			return NewConfigError("unsupported config version %q, supported range is %q",
				c.Version, fileVersionConstraint)
		}
	}

	if c.SessionDir == "" {
		return NewConfigError("session_dir must not be empty")
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return NewConfigError("invalid log_level: %v", err)
		}
	}
	for pkg, level := range c.LogLevels {
		if _, err := logging.ParseLevel(level); err != nil {
			return NewConfigError("invalid log level for package %q: %v", pkg, err)
		}
	}

	byPrime := make(map[uint64]string, len(c.Relations))
	for kind, prime := range c.Relations {
		if !codec.IsPrime(prime) {
			return NewConfigError("relation %q maps to %d, which is not prime", kind, prime)
		}
		if other, dup := byPrime[prime]; dup {
			return NewConfigError("relations %q and %q share prime %d", other, kind, prime)
		}
		byPrime[prime] = kind
	}

	if c.Analysis.Samples < 0 {
		return NewConfigError("analysis.samples must not be negative")
	}
	if c.Analysis.Modes < 0 {
		return NewConfigError("analysis.modes must not be negative")
	}
	if c.Analysis.Sigma < 0 {
		return NewConfigError("analysis.sigma must not be negative")
	}
	if c.Analysis.TopN < 0 {
		return NewConfigError("analysis.top must not be negative")
	}
	if c.Analysis.BinWidth < 0 {
		return NewConfigError("analysis.bin_width must not be negative")
	}
	if c.Watch.DebounceMillis < 0 {
		return NewConfigError("watch.debounce_ms must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}
