package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// Validate checks the configuration, reporting every problem at once
func Validate(config *Config) error {
	var errs []string

	if config.BufferSize < 0 {
		errs = append(errs, fmt.Sprintf("buffer_size: must be positive, got %d", config.BufferSize))
	}

	for i, spec := range config.Filters {
		if _, err := logs.ParsePredicate(spec); err != nil {
			errs = append(errs, fmt.Sprintf("filters[%d]: %v", i, err))
		}
	}

	if _, err := logs.ParseMode(config.FilterMode); err != nil {
		errs = append(errs, fmt.Sprintf("filter_mode: must be one of all, and, any, or; got %q", config.FilterMode))
	}

	if _, ok := parseLogLevel(config.LogLevel); !ok {
		errs = append(errs, fmt.Sprintf("log_level: must be one of debug, info, warn, error; got %q", config.LogLevel))
	}

	if config.StableAfter != "" {
		if d, err := time.ParseDuration(config.StableAfter); err != nil {
			errs = append(errs, fmt.Sprintf("stable_after: %v", err))
		} else if d < 0 {
			errs = append(errs, "stable_after: must not be negative")
		}
	}

	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	if strings.ContainsAny(config.App, " \t\n/") {
		errs = append(errs, fmt.Sprintf("app: invalid app name %q", config.App))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
