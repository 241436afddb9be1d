package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"sen66-server/internal/cache"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration

	// Influx settings may be empty; queries then report the store as unconfigured.
	InfluxURL         string
	InfluxOrg         string
	InfluxBucket      string
	InfluxToken       string
	InfluxMeasurement string
	InfluxTimeout     time.Duration

	MaxDataAge    time.Duration
	TrendWindow   time.Duration
	HistoryPoints int

	CacheTTLLatest  time.Duration
	CacheTTLTrend   time.Duration
	CacheTTLHistory time.Duration
	CacheTTLNowCast time.Duration
	CacheLockScope  cache.LockScope

	// MQTTBroker empty disables the lamp feed.
	MQTTBroker          string
	MQTTPort            int
	MQTTClientID        string
	MQTTTopic           string
	MQTTPublishInterval time.Duration

	StationID string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,
		HTTPAddr: env("HTTP_ADDR", ":8080"),

		SQLiteDriver: env("DB_DRIVER", "sqlite3"),
		SQLiteDSN:    env("DB_DSN", ""),
		SQLitePath:   env("SQLITE_PATH", "../dev/sqlite/app.db"),

		InfluxURL:         env("INFLUX_URL", ""),
		InfluxOrg:         env("INFLUX_ORG", ""),
		InfluxBucket:      env("INFLUX_BUCKET", ""),
		InfluxToken:       env("INFLUX_TOKEN", ""),
		InfluxMeasurement: env("INFLUX_MEASUREMENT", "environment"),

		MQTTBroker:   env("MQTT_BROKER", ""),
		MQTTClientID: env("MQTT_CLIENT_ID", "sen66-server"),

		StationID: env("STATION_ID", "home"),
	}
	cfg.MQTTTopic = env("MQTT_TOPIC", "sen66/"+cfg.StationID+"/iaq")

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"DB_MAX_OPEN_CONNS", 1, 0, &cfg.SQLiteMaxOpenConns},
		{"DB_MAX_IDLE_CONNS", 1, 0, &cfg.SQLiteMaxIdleConns},
		{"HISTORY_POINTS", 50, 1, &cfg.HistoryPoints},
		{"MQTT_PORT", 1883, 1, &cfg.MQTTPort},
	}
	for _, it := range ints {
		v, err := envInt(it.key, it.def)
		if err != nil {
			return Config{}, err
		}
		if v < it.min {
			return Config{}, fmt.Errorf("invalid %s %d (must be >= %d)", it.key, v, it.min)
		}
		*it.dst = v
	}

	durations := []struct {
		key      string
		def      string
		positive bool
		dst      *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", "0s", false, &cfg.SQLiteConnMaxLifetime},
		{"INFLUX_TIMEOUT", "15s", true, &cfg.InfluxTimeout},
		{"MAX_DATA_AGE", "360m", true, &cfg.MaxDataAge},
		{"TREND_WINDOW", "10m", true, &cfg.TrendWindow},
		{"CACHE_TTL_LATEST", "5m", true, &cfg.CacheTTLLatest},
		{"CACHE_TTL_TREND", "10m", true, &cfg.CacheTTLTrend},
		{"CACHE_TTL_HISTORY", "15m", true, &cfg.CacheTTLHistory},
		{"CACHE_TTL_NOWCAST", "10m", true, &cfg.CacheTTLNowCast},
		{"MQTT_PUBLISH_INTERVAL", "30s", true, &cfg.MQTTPublishInterval},
	}
	for _, d := range durations {
		v, err := envDuration(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		if d.positive && v <= 0 {
			return Config{}, fmt.Errorf("invalid %s %q (must be > 0)", d.key, v)
		}
		*d.dst = v
	}

	cfg.CacheLockScope, err = cache.ParseLockScope(env("CACHE_LOCK_SCOPE", string(cache.LockGlobal)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CACHE_LOCK_SCOPE: %w", err)
	}

	return cfg, nil
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key, def string) (time.Duration, error) {
	raw := env(key, def)
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
