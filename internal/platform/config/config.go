// Package config reads SITEPULSE_* environment variables into typed settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "sitepulse/pkg/platform/strings"
)

// Consent store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Server   Server
	Log      Log
	Consent  Consent
	Redis    RedisConfig
	Postgres PostgresConfig
	Backends Backends
	Flags    Flags
	Sessions Sessions
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Env             string
	AdminToken      string
	ShutdownTimeout time.Duration
}

// DevMode enables debug logging of suppressed events and back-end failures.
func (s Server) DevMode() bool {
	return s.Env == "dev"
}

type Log struct {
	Level  string
	Format string // "json" or "text"
}

type Consent struct {
	Store string
	// SQLitePath is used when Store is "sqlite".
	SQLitePath string
	// Retention expires Redis records; zero keeps them.
	Retention time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// Backends lists the event destinations. An empty value disables a back-end.
type Backends struct {
	PostHogAPIKey         string
	PostHogEndpoint       string
	PostHogPersonalAPIKey string

	KafkaBrokers []string
	KafkaTopic   string

	ClickHouseDSN   string
	ClickHouseTable string

	WebhookURL   string
	WebhookToken string

	BreakerFailures int
	BreakerCooldown time.Duration
}

type Flags struct {
	Keys         []string
	PollInterval time.Duration
}

type Sessions struct {
	IdleTTL     time.Duration
	MaxSessions int
	MaxGap      time.Duration
}

// FromEnv builds the configuration from environment variables so main stays
// lean. Malformed numbers and durations are reported rather than defaulted.
func FromEnv() (Config, error) {
	r := reader{}
	env := strings.ToLower(r.str("SITEPULSE_ENV", "prod"))
	logFormat := "json"
	if env == "dev" {
		logFormat = "text"
	}

	cfg := Config{
		Server: Server{
			Addr:            r.str("SITEPULSE_ADDR", ":8080"),
			Env:             env,
			AdminToken:      r.str("SITEPULSE_ADMIN_TOKEN", ""),
			ShutdownTimeout: r.duration("SITEPULSE_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: Log{
			Level:  r.str("SITEPULSE_LOG_LEVEL", "info"),
			Format: r.str("SITEPULSE_LOG_FORMAT", logFormat),
		},
		Consent: Consent{
			Store:      strings.ToLower(r.str("SITEPULSE_CONSENT_STORE", StoreMemory)),
			SQLitePath: r.str("SITEPULSE_SQLITE_PATH", "sitepulse.db"),
			Retention:  r.duration("SITEPULSE_CONSENT_RETENTION", 0),
		},
		Redis: RedisConfig{
			URL:          r.str("SITEPULSE_REDIS_URL", ""),
			PoolSize:     r.integer("SITEPULSE_REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("SITEPULSE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("SITEPULSE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("SITEPULSE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("SITEPULSE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:      r.str("SITEPULSE_POSTGRES_DSN", ""),
			MaxConns: int32(r.integer("SITEPULSE_POSTGRES_MAX_CONNS", 10)),
		},
		Backends: Backends{
			PostHogAPIKey:         r.str("SITEPULSE_POSTHOG_API_KEY", ""),
			PostHogEndpoint:       r.str("SITEPULSE_POSTHOG_ENDPOINT", ""),
			PostHogPersonalAPIKey: r.str("SITEPULSE_POSTHOG_PERSONAL_API_KEY", ""),
			KafkaBrokers:          pstrings.SplitList(r.str("SITEPULSE_KAFKA_BROKERS", "")),
			KafkaTopic:            r.str("SITEPULSE_KAFKA_TOPIC", "sitepulse.events"),
			ClickHouseDSN:         r.str("SITEPULSE_CLICKHOUSE_DSN", ""),
			ClickHouseTable:       r.str("SITEPULSE_CLICKHOUSE_TABLE", "events"),
			WebhookURL:            r.str("SITEPULSE_WEBHOOK_URL", ""),
			WebhookToken:          r.str("SITEPULSE_WEBHOOK_TOKEN", ""),
			BreakerFailures:       r.integer("SITEPULSE_BREAKER_FAILURES", 5),
			BreakerCooldown:       r.duration("SITEPULSE_BREAKER_COOLDOWN", 30*time.Second),
		},
		Flags: Flags{
			Keys:         pstrings.SplitList(r.str("SITEPULSE_FLAG_KEYS", "")),
			PollInterval: r.duration("SITEPULSE_FLAG_POLL_INTERVAL", 30*time.Second),
		},
		Sessions: Sessions{
			IdleTTL:     r.duration("SITEPULSE_SESSION_IDLE_TTL", 30*time.Minute),
			MaxSessions: r.integer("SITEPULSE_MAX_SESSIONS", 10000),
			MaxGap:      r.duration("SITEPULSE_SESSION_MAX_GAP", 30*time.Minute),
		},
	}
	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Consent.Store {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("SITEPULSE_REDIS_URL is required for the redis consent store")
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("SITEPULSE_POSTGRES_DSN is required for the postgres consent store")
		}
	default:
		return fmt.Errorf("unknown consent store %q", c.Consent.Store)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// reader keeps the first parse error so FromEnv can read every key in one pass.
type reader struct {
	err error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}
