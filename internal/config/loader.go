package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// binding ties one setting to its environment names (first name wins, the
// rest are aliases), its default, and a setter that parses into the
// Config field.
type binding struct {
	names    []string
	fallback string
	assign   func(string) error
}

// bindings enumerates every environment-configurable setting. New settings
// are added here and nowhere else.
func (c *Config) bindings() []binding {
	return []binding{
		{names: []string{"CSVFLOW_DB_DRIVER"}, fallback: "pgx", assign: toString(&c.Database.Driver)},
		{names: []string{"CSVFLOW_DB_URL", "DATABASE_URL"}, assign: toString(&c.Database.URL)},
		{names: []string{"CSVFLOW_SINK_BUFFER"}, fallback: "4194304", assign: toInt(&c.Buffers.SinkBytes)},
		{names: []string{"CSVFLOW_FETCH_HINT"}, fallback: "1024", assign: toInt(&c.Buffers.FetchHint)},
		{names: []string{"CSVFLOW_LOG_LEVEL"}, fallback: "info", assign: toString(&c.Logging.Level)},
		{names: []string{"CSVFLOW_LOG_FORMAT"}, fallback: "text", assign: toString(&c.Logging.Format)},
		{names: []string{"CSVFLOW_STATUS_ADDR"}, assign: toString(&c.Status.Addr)},
	}
}

// Load reads process configuration from the environment. Unset variables
// take their defaults; the assembled Config is validated before use so a
// bad environment fails at startup, not mid-run.
func Load() (*Config, error) {
	cfg := &Config{}
	for _, b := range cfg.bindings() {
		raw := firstEnv(b.names)
		if raw == "" {
			raw = b.fallback
		}
		if raw == "" {
			continue
		}
		if err := b.assign(raw); err != nil {
			return nil, fmt.Errorf("config load: %s=%q: %w", b.names[0], raw, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// firstEnv returns the first non-empty value among the given names.
func firstEnv(names []string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func toString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func toInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer")
		}
		*dst = n
		return nil
	}
}

// Validate checks that the process configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Driver == "" {
		errs = append(errs, "CSVFLOW_DB_DRIVER must not be empty")
	}
	if c.Buffers.SinkBytes <= 0 {
		errs = append(errs, "CSVFLOW_SINK_BUFFER must be positive")
	}
	if c.Buffers.FetchHint <= 0 {
		errs = append(errs, "CSVFLOW_FETCH_HINT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("CSVFLOW_LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("CSVFLOW_LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe representation for logs; the connection URL is
// masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: {Driver: %q, URL: [MASKED]}, Buffers: {SinkBytes: %d, FetchHint: %d}, Logging: {Level: %q, Format: %q}}",
		c.Database.Driver, c.Buffers.SinkBytes, c.Buffers.FetchHint, c.Logging.Level, c.Logging.Format)
}
