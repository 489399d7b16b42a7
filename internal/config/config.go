// Package config loads the ambient defaults a taskolib deployment tunes: the
// CommChannel queue capacity and default step/sequence timeouts applied
// when a Step or Sequence doesn't set its own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written in a YAML config file
// either as a Go duration string ("5s", "250ms") or a bare integer number
// of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asMillis int64
	if err := value.Decode(&asMillis); err == nil {
		*d = Duration(asMillis) * Duration(time.Millisecond)
		return nil
	}

	var asString string
	if err := value.Decode(&asString); err != nil {
		return fmt.Errorf("config: duration must be a string or a number of milliseconds: %w", err)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", asString, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds taskolib's ambient defaults.
type Config struct {
	// QueueCapacity is the CommChannel's bounded queue size. Zero means
	// comm.DefaultCapacity.
	QueueCapacity int `yaml:"queue_capacity"`

	// DefaultStepTimeout is applied to a Step whose own timeout is
	// step.NoTimeout. Zero means no default is applied (the step runs
	// unbounded).
	DefaultStepTimeout Duration `yaml:"default_step_timeout"`

	// DefaultSequenceTimeout is applied to a Sequence whose own
	// MaxDuration is zero.
	DefaultSequenceTimeout Duration `yaml:"default_sequence_timeout"`
}

// Default returns taskolib's built-in defaults, used when no config file is
// present.
func Default() Config {
	return Config{
		QueueCapacity:          32,
		DefaultStepTimeout:     0,
		DefaultSequenceTimeout: 0,
	}
}

// Load reads a YAML config file at path, overlaying any fields it sets onto
// Default(). A missing file is not an error: it returns the defaults
// unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
