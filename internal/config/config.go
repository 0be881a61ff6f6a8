package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Gateway     GatewayConfig
	Aggregation AggregationConfig
	Dispatch    DispatchConfig
	LogLevel    slog.Level
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
	MaxConns    int32
	MinConns    int32
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	LockTTL  time.Duration
}

type GatewayConfig struct {
	URL           string
	Token         string
	SendSMS       bool
	Timeout       time.Duration
	DefaultRegion string
}

type AggregationConfig struct {
	HourUTC int
}

type DispatchConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	StaleAfter  time.Duration
}

// LoadAll reads the whole configuration from the environment. Every problem
// found is reported, joined into one error.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		collect(err)
		return v
	}

	postgresURL, err := requireEnv("POSTGRES_URL")
	collect(err)
	gatewayURL, err := requireEnv("GATEWAY_URL")
	collect(err)
	gatewayToken, err := requireEnv("GATEWAY_TOKEN")
	collect(err)
	sendSMS, err := getEnvBool("GATEWAY_SEND_SMS", true)
	collect(err)
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
			MaxConns:    int32(intVar("DB_MAX_CONNS", 10)),
			MinConns:    int32(intVar("DB_MIN_CONNS", 1)),
		},
		Gateway: GatewayConfig{
			URL:           gatewayURL,
			Token:         gatewayToken,
			SendSMS:       sendSMS,
			Timeout:       time.Duration(intVar("GATEWAY_TIMEOUT_MS", 30000)) * time.Millisecond,
			DefaultRegion: strings.ToUpper(getEnv("GATEWAY_DEFAULT_REGION", "US")),
		},
		Aggregation: AggregationConfig{
			HourUTC: intVar("AGGREGATION_HOUR_UTC", 8),
		},
		Dispatch: DispatchConfig{
			Interval:    time.Duration(intVar("DISPATCH_INTERVAL_SECONDS", 60)) * time.Second,
			BatchSize:   intVar("DISPATCH_BATCH_SIZE", 100),
			Concurrency: intVar("DISPATCH_CONCURRENCY", 4),
			StaleAfter:  time.Duration(intVar("DISPATCH_STALE_MINUTES", 60)) * time.Minute,
		},
		LogLevel: level,
	}

	redisCfg, redisErrs := loadRedisConfig()
	cfg.Redis = redisCfg
	errs = append(errs, redisErrs...)

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, []error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 604800)
	if err != nil {
		errs = append(errs, err)
	}
	lockTTL, err := getEnvInt("LOCK_TTL_SECONDS", 1800)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
		LockTTL:  time.Duration(lockTTL) * time.Second,
	}, errs
}

func validate(cfg *Config) []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(cfg.Database.MaxConns > 0, "DB_MAX_CONNS must be > 0")
	check(cfg.Database.MinConns >= 0 && cfg.Database.MinConns <= cfg.Database.MaxConns, "DB_MIN_CONNS must be in 0..DB_MAX_CONNS")
	check(cfg.Gateway.Timeout >= time.Second && cfg.Gateway.Timeout <= time.Minute, "GATEWAY_TIMEOUT_MS must be in 1000..60000")
	check(cfg.Aggregation.HourUTC >= 0 && cfg.Aggregation.HourUTC <= 23, "AGGREGATION_HOUR_UTC must be in 0..23")
	check(cfg.Dispatch.Interval > 0, "DISPATCH_INTERVAL_SECONDS must be > 0")
	check(cfg.Dispatch.BatchSize > 0, "DISPATCH_BATCH_SIZE must be > 0")
	check(cfg.Dispatch.Concurrency > 0, "DISPATCH_CONCURRENCY must be > 0")
	check(cfg.Dispatch.StaleAfter > 0, "DISPATCH_STALE_MINUTES must be > 0")
	if cfg.Redis.Enabled {
		check(cfg.Redis.TTL > 0, "REDIS_TTL_SECONDS must be > 0")
		check(cfg.Redis.LockTTL > 0, "LOCK_TTL_SECONDS must be > 0")
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", raw)
	}
	return level, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
