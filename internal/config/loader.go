package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrDatabaseURL is returned by ValidateServer when no connection string is configured.
var ErrDatabaseURL = errors.New("DATABASE_URL is required")

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()

	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}
)

// Getenv looks up one variable; empty means unset.
type Getenv func(name string) string

// Load reads configuration from the process environment, applies defaults,
// and validates the settings every binary shares.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(getenv Getenv) (*Config, error) {
	cfg := &Config{}

	if err := fill(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadLogging reads only the Logging section. Tools that never serve HTTP or
// touch the database use it so foreign SERVER_* or DB_* values cannot break them.
// On error the returned config still holds the defaults.
func LoadLogging(getenv Getenv) (LoggingConfig, error) {
	var defaults, lc LoggingConfig
	if err := fill(reflect.ValueOf(&defaults).Elem(), func(string) string { return "" }); err != nil {
		return defaults, fmt.Errorf("config load: %w", err)
	}
	if err := fill(reflect.ValueOf(&lc).Elem(), getenv); err != nil {
		return defaults, fmt.Errorf("config load: %w", err)
	}
	if err := lc.Validate(); err != nil {
		return defaults, fmt.Errorf("config validation: %w", err)
	}
	return lc, nil
}

// envSpec is the parsed form of a field's env, envAlt, default and required tags.
type envSpec struct {
	names    []string
	fallback string
	required bool
}

func specFor(f reflect.StructField) (envSpec, bool) {
	name := f.Tag.Get("env")
	if name == "" {
		return envSpec{}, false
	}
	spec := envSpec{
		names:    []string{name},
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	if alt := f.Tag.Get("envAlt"); alt != "" {
		spec.names = append(spec.names, alt)
	}
	return spec, true
}

// resolve returns the first non-empty variable, else the default.
func (s envSpec) resolve(getenv Getenv) (string, error) {
	for _, name := range s.names {
		if v := getenv(name); v != "" {
			return v, nil
		}
	}
	if s.required {
		return "", fmt.Errorf("required environment variable %s is not set", s.names[0])
	}
	return s.fallback, nil
}

// fill walks v's fields, descending into nested sections.
func fill(v reflect.Value, getenv Getenv) error {
	t := v.Type()

	for i := range t.NumField() {
		field, dst := t.Field(i), v.Field(i)
		if !dst.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != timeType {
			if err := fill(dst, getenv); err != nil {
				return err
			}
			continue
		}

		spec, ok := specFor(field)
		if !ok {
			continue
		}
		raw, err := spec.resolve(getenv)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := assign(dst, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", spec.names[0], raw, err)
		}
	}
	return nil
}

// assign parses raw into dst according to dst's type.
func assign(dst reflect.Value, raw string) error {
	if dst.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		dst.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		dst.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", dst.Kind())
	}
	return nil
}

// problems accumulates validation failures so they can be reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

// Validate checks the settings shared by every binary.
// All failures are reported in one error.
func (c *Config) Validate() error {
	var p problems

	c.Logging.check(&p)
	if c.Export.MaxBodySize <= 0 {
		p.addf("EXPORT_MAX_BODY_SIZE (%d) must be positive", c.Export.MaxBodySize)
	}
	if c.Export.Timeout <= 0 {
		p.addf("EXPORT_TIMEOUT (%s) must be positive", c.Export.Timeout)
	}

	return p.err()
}

// Validate checks the log level and format.
func (l LoggingConfig) Validate() error {
	var p problems
	l.check(&p)
	return p.err()
}

func (l LoggingConfig) check(p *problems) {
	if !slices.Contains(logLevels, strings.ToLower(l.Level)) {
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	if !slices.Contains(logFormats, strings.ToLower(l.Format)) {
		p.addf("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

// ValidateServer checks the settings only the HTTP server needs:
// a database to read labels from and a listen address.
func (c *Config) ValidateServer() error {
	if c.Database.URL == "" {
		return ErrDatabaseURL
	}

	var p problems

	switch {
	case c.Database.MaxConns <= 0:
		p.addf("DB_MAX_CONNS (%d) must be positive", c.Database.MaxConns)
	case c.Database.MinConns < 0:
		p.addf("DB_MIN_CONNS (%d) must be non-negative", c.Database.MinConns)
	case c.Database.MaxConns < c.Database.MinConns:
		p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		p.addf("SERVER_READ_TIMEOUT (%s) must be non-negative", c.Server.ReadTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		p.addf("SERVER_SHUTDOWN_TIMEOUT (%s) must be positive", c.Server.ShutdownTimeout)
	}

	return p.err()
}

// String renders the config for logging with the database URL masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Addr: %q}, Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, "+
		"Export: {MaxBodySize: %d, Timeout: %s}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.Database.MaxConns, c.Database.MinConns,
		c.Export.MaxBodySize, c.Export.Timeout, c.Logging.Level, c.Logging.Format)
}
