package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	MemoryCatalog   string
	MemoryPros      string
}

type AuthConfig struct {
	AccessSecret string
}

type DispatchConfig struct {
	FeedPollInterval    time.Duration
	TrackerPollInterval time.Duration
	ReadRetryMax        int
	ReadRetryBackoff    time.Duration
	GaugeSchedule       string
}

type ReportsConfig struct {
	Currency string
}

type TracingConfig struct {
	Enabled bool
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Dispatch    DispatchConfig
	Reports     ReportsConfig
	Tracing     TracingConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DISPATCH_FEED_POLL_INTERVAL", "5s")
	v.SetDefault("DISPATCH_TRACKER_POLL_INTERVAL", "2s")
	v.SetDefault("DISPATCH_READ_RETRY_MAX", 3)
	v.SetDefault("DISPATCH_READ_RETRY_BACKOFF", "200ms")
	v.SetDefault("DISPATCH_GAUGE_SCHEDULE", "@every 30s")
	v.SetDefault("RECEIPT_CURRENCY", "BRL")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			MemoryCatalog:   v.GetString("MEMORY_CATALOG"),
			MemoryPros:      v.GetString("MEMORY_PROFESSIONALS"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Dispatch: DispatchConfig{
			FeedPollInterval:    v.GetDuration("DISPATCH_FEED_POLL_INTERVAL"),
			TrackerPollInterval: v.GetDuration("DISPATCH_TRACKER_POLL_INTERVAL"),
			ReadRetryMax:        v.GetInt("DISPATCH_READ_RETRY_MAX"),
			ReadRetryBackoff:    v.GetDuration("DISPATCH_READ_RETRY_BACKOFF"),
			GaugeSchedule:       v.GetString("DISPATCH_GAUGE_SCHEDULE"),
		},
		Reports: ReportsConfig{
			Currency: strings.ToUpper(strings.TrimSpace(v.GetString("RECEIPT_CURRENCY"))),
		},
		Tracing: TracingConfig{
			Enabled: v.GetBool("TRACING_ENABLED"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.CORSAllowedOrigins) == 0 {
		cfg.HTTP.CORSAllowedOrigins = []string{"*"}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case StoreDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Dispatch.FeedPollInterval <= 0 {
		return fmt.Errorf("DISPATCH_FEED_POLL_INTERVAL must be positive")
	}
	if cfg.Dispatch.TrackerPollInterval <= 0 {
		return fmt.Errorf("DISPATCH_TRACKER_POLL_INTERVAL must be positive")
	}
	if cfg.Dispatch.ReadRetryMax < 0 {
		return fmt.Errorf("DISPATCH_READ_RETRY_MAX must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
