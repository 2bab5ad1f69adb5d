package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	EDGAR  EDGARConfig
	Quotes QuotesConfig

	// Reasoning gateway (external narrative generator)
	Reasoning ReasoningConfig

	// Ingest / diff pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EDGARConfig holds SEC EDGAR access configuration.
// SEC fair-access policy requires a descriptive User-Agent and <= 10 req/s.
type EDGARConfig struct {
	UserAgent         string
	DataURL           string // submissions JSON host
	ArchivesURL       string // filing archives host
	RequestsPerSecond int
}

// QuotesConfig holds the daily close price source configuration
type QuotesConfig struct {
	BaseURL string
	Enabled bool
}

// ReasoningConfig holds the narrative gateway configuration
type ReasoningConfig struct {
	URL     string
	APIKey  string
	Enabled bool
	TopN    int // changes per side handed to the gateway
	Timeout time.Duration
}

// PipelineConfig holds ingest and diff run settings
type PipelineConfig struct {
	Workers            int
	MalformedThreshold float64       // rejected/total above this fails the whole refresh
	AggregationWindow  time.Duration // rolling window for daily sources
	WatchlistPath      string
	CacheTTL           time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		EDGAR: EDGARConfig{
			UserAgent:         getEnv("EDGAR_USER_AGENT", ""),
			DataURL:           getEnv("EDGAR_DATA_URL", "https://data.sec.gov"),
			ArchivesURL:       getEnv("EDGAR_ARCHIVES_URL", "https://www.sec.gov"),
			RequestsPerSecond: getEnvAsInt("EDGAR_RPS", 8),
		},

		Quotes: QuotesConfig{
			BaseURL: getEnv("QUOTES_BASE_URL", "https://query1.finance.yahoo.com"),
			Enabled: getEnvAsBool("QUOTES_ENABLED", true),
		},

		Reasoning: ReasoningConfig{
			URL:     getEnv("REASONING_URL", ""),
			APIKey:  getEnv("REASONING_API_KEY", ""),
			Enabled: getEnvAsBool("REASONING_ENABLED", false),
			TopN:    getEnvAsInt("REASONING_TOP_N", 5),
			Timeout: getEnvAsDuration("REASONING_TIMEOUT", "60s"),
		},

		Pipeline: PipelineConfig{
			Workers:            getEnvAsInt("PIPELINE_WORKERS", 4),
			MalformedThreshold: getEnvAsFloat("MALFORMED_THRESHOLD", 0.5),
			AggregationWindow:  getEnvAsDuration("AGGREGATION_WINDOW", "168h"),
			WatchlistPath:      getEnv("WATCHLIST_PATH", "config/watchlist.yaml"),
			CacheTTL:           getEnvAsDuration("CHANGE_CACHE_TTL", "24h"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1")
	}

	if c.Pipeline.MalformedThreshold <= 0 || c.Pipeline.MalformedThreshold > 1 {
		return fmt.Errorf("MALFORMED_THRESHOLD must be in (0, 1]")
	}

	if c.Reasoning.Enabled && c.Reasoning.URL == "" {
		return fmt.Errorf("REASONING_URL is required when REASONING_ENABLED=true")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
