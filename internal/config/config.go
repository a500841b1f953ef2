package config

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the optional txengine.yaml configuration.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Rejects RejectsConfig `yaml:"rejects"`
}

// OutputConfig controls how balances are displayed.
type OutputConfig struct {
	Precision int32 `yaml:"precision"` // decimal places, banker's rounding
}

// LogConfig controls the diagnostic logger on stderr.
type LogConfig struct {
	Level  string `yaml:"level"`  // zap level name
	Format string `yaml:"format"` // "console" or "json"
}

// RejectsConfig controls the reject log.
type RejectsConfig struct {
	Path string `yaml:"path,omitempty"` // empty = disabled
}

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Load reads a YAML config file from disk. Fields absent from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Precision: 4,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: FormatConsole,
		},
	}
}

// Validate checks values that would otherwise fail later in the run.
func (c *Config) Validate() error {
	if c.Output.Precision < 0 {
		return fmt.Errorf("invalid config: output.precision must be >= 0, got %d", c.Output.Precision)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("invalid config: log.format must be %q or %q, got %q", FormatConsole, FormatJSON, c.Log.Format)
	}
	return nil
}
