package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// OverpassConfig controls the power-line source. QueryTimeoutSec is the
// server-side timeout embedded in the query text; RequestTimeout is the
// client-side HTTP deadline in seconds and must exceed it.
type OverpassConfig struct {
	URL             string `mapstructure:"url"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	QueryTimeoutSec int    `mapstructure:"query_timeout_sec"`
}

// ViewportConfig controls viewport-driven ingestion and proximity defaults.
type ViewportConfig struct {
	QuietPeriodMs int     `mapstructure:"quiet_period_ms"`
	MinZoom       float64 `mapstructure:"min_zoom"`
	BufferFt      float64 `mapstructure:"buffer_ft"`
}

type MapboxConfig struct {
	Token string `mapstructure:"token"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "canopy")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "canopyviz")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.request_timeout", 30)
	v.SetDefault("overpass.query_timeout_sec", 15)
	v.SetDefault("viewport.quiet_period_ms", 800)
	v.SetDefault("viewport.min_zoom", 14)
	v.SetDefault("viewport.buffer_ft", 30)
	v.SetDefault("mapbox.token", "")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CANOPYVIZ_DATABASE_HOST → database.host
	v.SetEnvPrefix("CANOPYVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Overpass.URL == "" {
		errs = append(errs, "overpass.url is required")
	}
	if c.Overpass.QueryTimeoutSec <= 0 {
		errs = append(errs, "overpass.query_timeout_sec must be positive")
	}
	if c.Overpass.RequestTimeout <= c.Overpass.QueryTimeoutSec {
		errs = append(errs, "overpass.request_timeout must exceed overpass.query_timeout_sec")
	}
	if c.Viewport.QuietPeriodMs <= 0 {
		errs = append(errs, "viewport.quiet_period_ms must be positive")
	}
	if c.Viewport.MinZoom < 0 {
		errs = append(errs, "viewport.min_zoom must not be negative")
	}
	if c.Viewport.BufferFt < 0 {
		errs = append(errs, "viewport.buffer_ft must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
