package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/Pythia/internal/config"
)

var allKeys = []string{
	"ENV", "SERVICE_NAME", "HTTP_PORT", "METRICS_PORT", "ODDS_API_KEY", "ODDS_API_BASE_URL",
	"POSTGRES_DSN", "REDIS_URL", "REDIS_PASSWORD", "KAFKA_BROKERS", "KAFKA_TOPIC_OPPORTUNITIES",
	"LEDGER_BACKEND", "MONTHLY_LIMIT", "UPDATE_INTERVAL", "DAILY_CALL_CAP", "UPDATE_SLOT_HOURS",
	"FETCH_TIMEOUT", "CACHE_TTL", "MIN_VALUE_MARGIN", "CORS_ALLOWED_ORIGINS",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadFile(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "pythia", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, config.LedgerRedis, cfg.LedgerBackend)
	assert.Equal(t, 450, cfg.MonthlyLimit)
	assert.Equal(t, 3*time.Hour, cfg.UpdateInterval)
	assert.Equal(t, 0, cfg.DailyCallCap)
	assert.Equal(t, []int{0, 3, 6, 9, 12, 15, 18, 21}, cfg.UpdateSlotHours)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1.0, cfg.MinValueMargin)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "odds.opportunities", cfg.KafkaTopicOpportunities)

	assert.EqualError(t, cfg.Validate(), "ODDS_API_KEY is required")
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ODDS_API_KEY", "secret")
	t.Setenv("LEDGER_BACKEND", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://pythia@localhost/pythia")
	t.Setenv("MONTHLY_LIMIT", "500")
	t.Setenv("UPDATE_INTERVAL", "90m")
	t.Setenv("DAILY_CALL_CAP", "6")
	t.Setenv("UPDATE_SLOT_HOURS", "6, 12,18")
	t.Setenv("MIN_VALUE_MARGIN", "2.5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.LoadFile(missingFile(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.LedgerPostgres, cfg.LedgerBackend)
	assert.Equal(t, 500, cfg.MonthlyLimit)
	assert.Equal(t, 90*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, 6, cfg.DailyCallCap)
	assert.Equal(t, []int{6, 12, 18}, cfg.UpdateSlotHours)
	assert.Equal(t, 2.5, cfg.MinValueMargin)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONTHLY_LIMIT", "300")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ODDS_API_KEY=from-file\nMONTHLY_LIMIT=999\n"), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.OddsAPIKey)
	assert.Equal(t, 300, cfg.MonthlyLimit, "process environment wins over .env")
}

func TestLoad_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MONTHLY_LIMIT", "lots"},
		{"UPDATE_INTERVAL", "3 hours"},
		{"MIN_VALUE_MARGIN", "one"},
		{"UPDATE_SLOT_HOURS", "0,noon"},
		{"FETCH_TIMEOUT", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.LoadFile(missingFile(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			OddsAPIKey:      "key",
			LedgerBackend:   config.LedgerRedis,
			MonthlyLimit:    450,
			UpdateInterval:  3 * time.Hour,
			UpdateSlotHours: []int{0, 12},
			FetchTimeout:    30 * time.Second,
			MinValueMargin:  1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"memory ledger", func(c *config.Config) { c.LedgerBackend = config.LedgerMemory }, ""},
		{"unknown ledger", func(c *config.Config) { c.LedgerBackend = "etcd" }, "LEDGER_BACKEND"},
		{"postgres without dsn", func(c *config.Config) { c.LedgerBackend = config.LedgerPostgres }, "POSTGRES_DSN"},
		{"zero limit", func(c *config.Config) { c.MonthlyLimit = 0 }, "MONTHLY_LIMIT"},
		{"negative cap", func(c *config.Config) { c.DailyCallCap = -1 }, "DAILY_CALL_CAP"},
		{"slot hour out of range", func(c *config.Config) { c.UpdateSlotHours = []int{24} }, "UPDATE_SLOT_HOURS"},
		{"zero margin", func(c *config.Config) { c.MinValueMargin = 0 }, "MIN_VALUE_MARGIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisOptions(t *testing.T) {
	t.Run("bare address", func(t *testing.T) {
		opts, err := config.Config{RedisURL: "cache:6379", RedisPassword: "pw"}.RedisOptions()
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", opts.Addr)
		assert.Equal(t, "pw", opts.Password)
	})

	t.Run("url", func(t *testing.T) {
		opts, err := config.Config{RedisURL: "redis://cache:6380/2"}.RedisOptions()
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := config.Config{RedisURL: "http://cache:6379"}.RedisOptions()
		assert.Error(t, err)
	})
}
