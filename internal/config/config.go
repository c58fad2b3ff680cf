// Package config loads service settings from environment variables. Every
// setting has a default, so an empty environment yields a working in-memory
// server; Validate reports all bad values at once.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Query    QueryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	History  HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port also honours the bare PORT variable used by most PaaS runtimes.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig bounds what a single upload may cost.
type UploadConfig struct {
	// MaxRows rejects files with more data rows than this.
	MaxRows int `env:"MAX_ROWS" default:"200000"`

	// MaxFileSize caps the request body, e.g. "100MB" or a plain byte count.
	MaxFileSize ByteSize `env:"UPLOAD_MAX_FILE_SIZE" default:"100MB"`

	// MaxConcurrent is how many uploads may parse at once.
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an upload waits for a parse slot.
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`
}

// QueryConfig holds limits for read endpoints.
type QueryConfig struct {
	FilterMaxRecords int `env:"FILTER_MAX_RECORDS" default:"100"`
	PlotDefaultBins  int `env:"PLOT_DEFAULT_BINS" default:"30"`
	PlotMaxBins      int `env:"PLOT_MAX_BINS" default:"500"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every endpoint.
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit additionally applies to POST /upload.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// UploadKey, when set, must be sent in the X-Upload-Key header on uploads.
	UploadKey string `env:"UPLOAD_KEY"`

	// TrustedProxies lists proxy CIDRs whose forwarding headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig selects where upload history lives. With no database URL the
// history is an in-memory ring of Capacity events.
type HistoryConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	Capacity      int           `env:"HISTORY_CAPACITY" default:"256"`
	Retention     time.Duration `env:"HISTORY_RETENTION" default:"720h"`
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// Persistent reports whether history goes to PostgreSQL.
func (h HistoryConfig) Persistent() bool {
	return h.DatabaseURL != ""
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ByteSize is a size in bytes that parses human units (KB, MB, GB; powers
// of 1024).
type ByteSize int64

var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q", string(text))
	}
	*b = ByteSize(n * mult)
	return nil
}

// String formats b in the largest unit that divides it exactly.
func (b ByteSize) String() string {
	for _, u := range byteUnits {
		if int64(b) >= u.mult && int64(b)%u.mult == 0 {
			return strconv.FormatInt(int64(b)/u.mult, 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(b), 10) + "B"
}
