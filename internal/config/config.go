package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Ledger backends
const (
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Config holds Pythia configuration
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string

	HTTPPort    string
	MetricsPort string // Serves /metrics and /healthz

	OddsAPIKey     string
	OddsAPIBaseURL string // Empty uses the vendor default

	PostgresDSN   string // Empty disables the snapshot writer
	RedisURL      string // "redis://host:6379/0" or "host:6379"
	RedisPassword string

	KafkaBrokers            []string // Empty disables opportunity publishing
	KafkaTopicOpportunities string

	LedgerBackend string
	MonthlyLimit  int

	UpdateInterval  time.Duration
	DailyCallCap    int // 0 derives the cap from MonthlyLimit and the slots
	UpdateSlotHours []int
	FetchTimeout    time.Duration
	CacheTTL        time.Duration

	MinValueMargin     float64
	CORSAllowedOrigins []string
}

// Load reads configuration from the environment, after loading a .env file when one exists
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	p := &parser{}
	cfg := Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "pythia"),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9095"),

		OddsAPIKey:     getEnv("ODDS_API_KEY", ""),
		OddsAPIBaseURL: getEnv("ODDS_API_BASE_URL", ""),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:            getEnvList("KAFKA_BROKERS"),
		KafkaTopicOpportunities: getEnv("KAFKA_TOPIC_OPPORTUNITIES", "odds.opportunities"),

		LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", LedgerRedis)),
		MonthlyLimit:  p.getEnvInt("MONTHLY_LIMIT", 450),

		UpdateInterval:  p.getEnvDuration("UPDATE_INTERVAL", 3*time.Hour),
		DailyCallCap:    p.getEnvInt("DAILY_CALL_CAP", 0),
		UpdateSlotHours: p.getEnvIntList("UPDATE_SLOT_HOURS", []int{0, 3, 6, 9, 12, 15, 18, 21}),
		FetchTimeout:    p.getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		CacheTTL:        p.getEnvDuration("CACHE_TTL", 24*time.Hour),

		MinValueMargin:     p.getEnvFloat("MIN_VALUE_MARGIN", 1.0),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required and mutually dependent values
func (c Config) Validate() error {
	var errs []error

	if c.OddsAPIKey == "" {
		errs = append(errs, errors.New("ODDS_API_KEY is required"))
	}

	switch c.LedgerBackend {
	case LedgerRedis, LedgerMemory:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres requires POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be redis, postgres or memory, got %q", c.LedgerBackend))
	}

	if c.MonthlyLimit <= 0 {
		errs = append(errs, fmt.Errorf("MONTHLY_LIMIT must be positive, got %d", c.MonthlyLimit))
	}
	if c.DailyCallCap < 0 {
		errs = append(errs, fmt.Errorf("DAILY_CALL_CAP must not be negative, got %d", c.DailyCallCap))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("UPDATE_INTERVAL must be positive, got %s", c.UpdateInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout))
	}
	if c.MinValueMargin <= 0 {
		errs = append(errs, fmt.Errorf("MIN_VALUE_MARGIN must be positive, got %v", c.MinValueMargin))
	}
	for _, h := range c.UpdateSlotHours {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Errorf("UPDATE_SLOT_HOURS: hour %d out of range 0-23", h))
		}
	}

	return errors.Join(errs...)
}

// RedisOptions accepts either a redis:// URL or a bare host:port
func (c Config) RedisOptions() (*redis.Options, error) {
	if !strings.Contains(c.RedisURL, "://") {
		return &redis.Options{Addr: c.RedisURL, Password: c.RedisPassword}, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if c.RedisPassword != "" {
		opts.Password = c.RedisPassword
	}
	return opts, nil
}

// NeedsRedis reports whether any configured component stores data in Redis
func (c Config) NeedsRedis() bool {
	return c.LedgerBackend != LedgerMemory
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every malformed variable instead of stopping at the first
type parser struct {
	errs []error
}

func (p *parser) getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return defaultValue
	}
	return v
}

func (p *parser) getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return defaultValue
	}
	return v
}

func (p *parser) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return v
}

func (p *parser) getEnvIntList(key string, defaultValue []int) []int {
	parts := getEnvList(key)
	if len(parts) == 0 {
		return defaultValue
	}

	out := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, part))
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
