package config

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment and validates it.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, applying defaults for unset
// or empty variables. Parse errors for every field are reported together.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func loadStruct(v reflect.Value, lookup LookupFunc) error {
	var errs []error
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, lookup); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := firstSet(lookup, envName, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", envName))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", envName, value, err))
		}
	}

	return errors.Join(errs...)
}

// firstSet returns the first non-empty value among the named variables.
func firstSet(lookup LookupFunc, names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func setField(field reflect.Value, value string) error {
	if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is usable and describes every
// failure in one error.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	check(c.Server.WriteTimeout >= 0, "SERVER_WRITE_TIMEOUT must be non-negative")
	check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	check(c.Upload.MaxRows > 0, "MAX_ROWS must be positive")
	check(c.Upload.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")
	check(c.Upload.MaxConcurrent > 0, "UPLOAD_MAX_CONCURRENT must be positive")
	check(c.Upload.MaxWaitTime > 0, "UPLOAD_MAX_WAIT_TIME must be positive")

	check(c.Query.FilterMaxRecords > 0, "FILTER_MAX_RECORDS must be positive")
	check(c.Query.PlotMaxBins > 0, "PLOT_MAX_BINS must be positive")
	check(c.Query.PlotDefaultBins > 0 && c.Query.PlotDefaultBins <= c.Query.PlotMaxBins,
		"PLOT_DEFAULT_BINS (%d) must be 1-%d", c.Query.PlotDefaultBins, c.Query.PlotMaxBins)

	if c.Rate.Enabled {
		check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		check(c.Rate.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	check(c.History.Capacity > 0, "HISTORY_CAPACITY must be positive")
	check(c.History.Retention >= 0, "HISTORY_RETENTION must be non-negative")
	if c.History.Persistent() {
		check(c.History.MaxConns > 0, "DB_MAX_CONNS must be positive")
		check(c.History.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		check(c.History.MaxConns >= c.History.MinConns,
			"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.History.MaxConns, c.History.MinConns)
	}

	level := strings.ToLower(c.Logging.Level)
	check(level == "debug" || level == "info" || level == "warn" || level == "error",
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	format := strings.ToLower(c.Logging.Format)
	check(format == "text" || format == "json",
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the config for logging with secrets masked.
func (c *Config) String() string {
	mask := func(s string) string {
		if s == "" {
			return "[UNSET]"
		}
		return "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Upload: {MaxRows: %d, MaxFileSize: %s, MaxConcurrent: %d}, ",
		c.Upload.MaxRows, c.Upload.MaxFileSize, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Query: {FilterMaxRecords: %d, PlotMaxBins: %d}, ",
		c.Query.FilterMaxRecords, c.Query.PlotMaxBins)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {UploadKey: %s}, ", mask(c.Security.UploadKey))
	fmt.Fprintf(&b, "History: {DatabaseURL: %s, Capacity: %d}, ",
		mask(c.History.DatabaseURL), c.History.Capacity)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
