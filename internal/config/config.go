package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
	DB        DBConfig                  `mapstructure:"db"`
	Tracking  TrackingConfig            `mapstructure:"tracking"`
	Stream    StreamConfig              `mapstructure:"stream"`
	Importers map[string]ImporterConfig `mapstructure:"importers"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// TrackingConfig controls the delayed-visibility window and the query
// defaults. Delay 0 disables the delay window entirely.
type TrackingConfig struct {
	Delay                        time.Duration `mapstructure:"delay"`
	DefaultLimit                 int           `mapstructure:"default_limit"`
	IgnoreLocationsWithoutEvents bool          `mapstructure:"ignore_locations_without_events"`
	SweepEnabled                 bool          `mapstructure:"sweep_enabled"`
	SweepInterval                time.Duration `mapstructure:"sweep_interval"`
	DispatchExpiry               time.Duration `mapstructure:"dispatch_expiry"`
}

type StreamConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ImporterConfig is the per-feed schema: URL is required, RunInterval
// defaults to 5s. A missing URL is a startup-time configuration error for
// that importer only.
type ImporterConfig struct {
	URL         string        `mapstructure:"url"`
	RunInterval time.Duration `mapstructure:"run_interval"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("tracking.delay", "15m")
	v.SetDefault("tracking.default_limit", 10)
	v.SetDefault("tracking.ignore_locations_without_events", true)
	v.SetDefault("tracking.sweep_enabled", true)
	v.SetDefault("tracking.sweep_interval", "30s")
	v.SetDefault("tracking.dispatch_expiry", "5s")
	v.SetDefault("stream.enabled", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	for id, imp := range cfg.Importers {
		if imp.RunInterval <= 0 {
			imp.RunInterval = 5 * time.Second
			cfg.Importers[id] = imp
		}
	}

	return cfg, nil
}
