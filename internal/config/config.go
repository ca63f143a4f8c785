// Package config provides configuration management for go-train-spawn.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts "30s" style strings.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		var n int64
		if err2 := node.Decode(&n); err2 == nil {
			*d = Duration(n)
			return nil
		}
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all configuration options for the launcher.
type Config struct {
	// Process group
	Workers   int    `yaml:"workers" json:"workers"`
	StartMode string `yaml:"start_mode" json:"start_mode"` // spawn, fork
	Entry     string `yaml:"entry" json:"entry"`
	CoordAddr string `yaml:"coord_addr" json:"coord_addr"` // empty = auto

	// Transport policy
	Transport   string   `yaml:"transport" json:"transport"` // native, pod
	GracePeriod Duration `yaml:"grace_period" json:"grace_period"`

	// Rendezvous
	ResultTimeout Duration `yaml:"result_timeout" json:"result_timeout"` // 0 = wait for group exit
	StopTimeout   Duration `yaml:"stop_timeout" json:"stop_timeout"`

	// Checkpointing
	RootDir string `yaml:"root_dir" json:"root_dir"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
	LogFormat   string `yaml:"log_format" json:"log_format"` // json, text

	// Dashboard
	TUIEnabled bool `yaml:"tui" json:"tui"`

	// Diagnostic modes
	SkipPreflight bool `yaml:"skip_preflight" json:"skip_preflight"`

	// Coordination dial policy
	BackoffInitial  Duration `yaml:"backoff_initial" json:"backoff_initial"`
	BackoffMax      Duration `yaml:"backoff_max" json:"backoff_max"`
	BackoffMultiply float64  `yaml:"backoff_multiply" json:"backoff_multiply"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Process group
		Workers:   1,
		StartMode: "spawn",
		CoordAddr: "",

		// Transport
		Transport:   "native",
		GracePeriod: Duration(2 * time.Second),

		// Rendezvous
		ResultTimeout: 0, // wait for group exit
		StopTimeout:   Duration(10 * time.Second),

		// Checkpointing
		RootDir: ".",

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		Verbose:     false,
		LogFormat:   "json",

		// Dashboard
		TUIEnabled: false,

		// Coordination dial policy
		BackoffInitial:  Duration(25 * time.Millisecond),
		BackoffMax:      Duration(time.Second),
		BackoffMultiply: 1.7,
	}
}
