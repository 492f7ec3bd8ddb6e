package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envField is the env binding declared by a struct field's tags.
type envField struct {
	name     string // env
	alt      string // envAlt, read when name is unset
	def      string // default
	required bool
}

func parseEnvField(f reflect.StructField) (envField, bool) {
	name := f.Tag.Get("env")
	if name == "" {
		return envField{}, false
	}
	return envField{
		name:     name,
		alt:      f.Tag.Get("envAlt"),
		def:      f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}, true
}

// lookup returns the configured value, the default, or an error for a
// required variable that is unset.
func (e envField) lookup() (string, error) {
	if v := os.Getenv(e.name); v != "" {
		return v, nil
	}
	if e.alt != "" {
		if v := os.Getenv(e.alt); v != "" {
			return v, nil
		}
	}
	if e.required {
		return "", fmt.Errorf("required environment variable %s is not set", e.name)
	}
	return e.def, nil
}

// loadStruct fills the tagged fields of each section struct.
func loadStruct(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv); err != nil {
				return err
			}
			continue
		}

		spec, ok := parseEnvField(field)
		if !ok {
			continue
		}
		value, err := spec.lookup()
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if err := setField(fv, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", spec.name, value, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField converts value for the field kinds Config declares: string,
// int, int64, time.Duration, bool and comma-separated []string.
func setField(fv reflect.Value, value string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)
	case reflect.Slice:
		fv.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", fv.Type())
	}
	return nil
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Source validation
	if strings.TrimSpace(c.Sources.AvailabilityURL) == "" {
		errs = append(errs, "AVAILABILITY_URL is required")
	}
	if _, err := c.Sources.BaseSources(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(c.Sources.Weekdays) == 0 {
		errs = append(errs, "WEEKDAYS must list at least one weekday")
	}
	if c.Sources.ParseWorkers <= 0 {
		errs = append(errs, "PARSE_WORKERS must be positive")
	}
	if c.Sources.MaxBytes <= 0 {
		errs = append(errs, "FETCH_MAX_BYTES must be positive")
	}

	// Cache validation
	switch strings.ToLower(c.Cache.Driver) {
	case "memory", "none":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			errs = append(errs, "CACHE_SQLITE_PATH is required when CACHE_DRIVER=sqlite")
		}
	case "postgres":
		if c.Cache.PostgresURL == "" {
			errs = append(errs, "CACHE_DATABASE_URL is required when CACHE_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("CACHE_DRIVER (%q) must be one of: memory, sqlite, postgres, none", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive")
	}

	// S3 validation
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		errs = append(errs, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	// Refresh validation
	if c.Refresh.Interval < 0 {
		errs = append(errs, "REFRESH_INTERVAL must be non-negative")
	}
	if c.Refresh.Timeout <= 0 {
		errs = append(errs, "REFRESH_TIMEOUT must be positive")
	}
	if c.Refresh.MaxConcurrentFetches <= 0 {
		errs = append(errs, "REFRESH_MAX_CONCURRENT_FETCHES must be positive")
	}
	if c.Refresh.MaxFetchWait <= 0 {
		errs = append(errs, "REFRESH_MAX_FETCH_WAIT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.RefreshLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_REFRESH must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials and connection strings are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Sources: {Availability: %q, Base: %d, Weekdays: %v}, ",
		c.Sources.AvailabilityURL, len(c.Sources.Base), c.Sources.Weekdays))
	b.WriteString(fmt.Sprintf("Cache: {Driver: %q, TTL: %s, PostgresURL: %s}, ",
		c.Cache.Driver, c.Cache.TTL, mask(c.Cache.PostgresURL)))
	b.WriteString(fmt.Sprintf("S3: {Region: %q, Endpoint: %q, AccessKeyID: %s}, ",
		c.S3.Region, c.S3.Endpoint, mask(c.S3.AccessKeyID)))
	b.WriteString(fmt.Sprintf("Refresh: {Interval: %s, Timeout: %s, MaxConcurrentFetches: %d}, ",
		c.Refresh.Interval, c.Refresh.Timeout, c.Refresh.MaxConcurrentFetches))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[unset]"
	}
	return "[MASKED]"
}
