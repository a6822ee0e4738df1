// Package config provides centralized configuration management for the application.
// It loads configuration from a YAML file and environment variables with sensible
// defaults and validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// Every setting can be overridden via environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"0s"` // 0 lets large exports stream
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"SERVER_REQUEST_TIMEOUT"  env-default:"60s"`
}

// DatabaseConfig holds storage settings. URL is required for the postgres driver.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"postgres"`
	URL             string        `yaml:"url"                env:"DATABASE_URL"`
	MaxConns        int32         `yaml:"max_conns"          env:"DB_MAX_CONNS"                env-default:"20"`
	MinConns        int32         `yaml:"min_conns"          env:"DB_MIN_CONNS"                env-default:"4"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DB_MAX_CONN_LIFETIME"        env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME"       env-default:"30m"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"   env:"DB_MIGRATE_ON_START"         env-default:"true"`
}

// ImportConfig holds file import and export settings.
type ImportConfig struct {
	MaxFileSize     int64         `yaml:"max_file_size"    env:"IMPORT_MAX_FILE_SIZE"    env-default:"104857600"`
	MaxConcurrent   int           `yaml:"max_concurrent"   env:"IMPORT_MAX_CONCURRENT"   env-default:"5"`
	MaxWaitTime     time.Duration `yaml:"max_wait_time"    env:"IMPORT_MAX_WAIT_TIME"    env-default:"30s"`
	Timeout         time.Duration `yaml:"timeout"          env:"IMPORT_TIMEOUT"          env-default:"10m"`
	DefaultEncoding string        `yaml:"default_encoding" env:"IMPORT_DEFAULT_ENCODING" env-default:"utf-8"`
	ExportLimit     int           `yaml:"export_limit"     env:"EXPORT_LIMIT"            env-default:"0"` // 0 = no cap
	PreflightRows   int           `yaml:"preflight_rows"   env:"IMPORT_PREFLIGHT_ROWS"   env-default:"0"` // 0 = every row
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	Enabled         bool     `yaml:"enabled"          env:"AUTH_ENABLED"          env-default:"true"`
	CookieName      string   `yaml:"cookie_name"      env:"AUTH_COOKIE_NAME"      env-default:"stockdash_session"`
	CookieKey       string   `yaml:"cookie_key"       env:"AUTH_COOKIE_KEY"`
	ExpiryDays      int      `yaml:"expiry_days"      env:"AUTH_EXPIRY_DAYS"      env-default:"30"`
	CredentialsFile string   `yaml:"credentials_file" env:"AUTH_CREDENTIALS_FILE" env-default:"./credentials.yaml"`
	TrustedProxies  []string `yaml:"trusted_proxies"  env:"TRUSTED_PROXIES"`
}

// Expiry returns the session lifetime.
func (c AuthConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"` // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"` // text or json
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
