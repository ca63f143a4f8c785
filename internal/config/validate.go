package config

import (
	"errors"
	"fmt"
	"net"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	validModes := map[string]bool{"spawn": true, "fork": true}
	if !validModes[cfg.StartMode] {
		errs = append(errs, ValidationError{
			Field:   "start_mode",
			Message: fmt.Sprintf("must be 'spawn' or 'fork' (got %q)", cfg.StartMode),
		})
	}

	// Spawn mode re-executes the binary and needs a registered entry name.
	if cfg.StartMode == "spawn" && cfg.Entry == "" {
		errs = append(errs, ValidationError{
			Field:   "entry",
			Message: "required when start_mode is 'spawn'",
		})
	}

	if cfg.CoordAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.CoordAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "coord_addr",
				Message: fmt.Sprintf("must be host:port (got %q)", cfg.CoordAddr),
			})
		}
	}

	validTransports := map[string]bool{"native": true, "pod": true}
	if !validTransports[cfg.Transport] {
		errs = append(errs, ValidationError{
			Field:   "transport",
			Message: fmt.Sprintf("must be 'native' or 'pod' (got %q)", cfg.Transport),
		})
	}

	if cfg.GracePeriod < 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: "must not be negative",
		})
	}

	if cfg.ResultTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "result_timeout",
			Message: "must not be negative (0 waits for group exit)",
		})
	}
	if cfg.StopTimeout.Std() <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_timeout",
			Message: "must be positive",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if cfg.BackoffInitial.Std() <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
