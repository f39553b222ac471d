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
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Analysis runtime
	Analysis AnalysisConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
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

// AnalysisConfig holds runtime settings for analysis runs.
// 시그널 파라미터(호라이즌, MACD 스팬 등)는 YAML(analysisconfig)에서 관리
type AnalysisConfig struct {
	ConfigPath string  // YAML 분석 설정 경로
	BarSource  string  // csv, postgres, http
	BarURL     string  // BAR_SOURCE=http 일 때 CSV 파일 서버 base URL
	Workers    int     // 종목 병렬 처리 워커 수
	LoadRate   float64 // 초당 시계열 로드 횟수 (0 = 무제한)
	Persist    bool    // 결과를 DB에 저장할지 여부
	Schedule   string  // cron (seconds 포함)
}

// Bar sources
const (
	BarSourceCSV      = "csv"
	BarSourcePostgres = "postgres"
	BarSourceHTTP     = "http"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Analysis
		Analysis: AnalysisConfig{
			ConfigPath: getEnv("ANALYSIS_CONFIG", "config/analysis.yaml"),
			BarSource:  getEnv("BAR_SOURCE", BarSourceCSV),
			BarURL:     getEnv("BAR_SOURCE_URL", ""),
			Workers:    getEnvAsInt("ANALYSIS_WORKERS", 4),
			LoadRate:   getEnvAsFloat("ANALYSIS_LOAD_RATE", 0),
			Persist:    getEnvAsBool("ANALYSIS_PERSIST", false),
			Schedule:   getEnv("ANALYSIS_SCHEDULE", "0 30 18 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// NeedsDatabase reports whether the current settings require a Postgres connection
func (c *Config) NeedsDatabase() bool {
	return c.Analysis.BarSource == BarSourcePostgres || c.Analysis.Persist
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Analysis.BarSource {
	case BarSourceCSV, BarSourcePostgres:
	case BarSourceHTTP:
		if c.Analysis.BarURL == "" {
			return fmt.Errorf("BAR_SOURCE_URL is required when BAR_SOURCE=http")
		}
	default:
		return fmt.Errorf("BAR_SOURCE must be one of: %s, %s, %s", BarSourceCSV, BarSourcePostgres, BarSourceHTTP)
	}

	// DB는 postgres 소스 또는 결과 저장 시에만 필수
	if c.NeedsDatabase() && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when BAR_SOURCE=postgres or ANALYSIS_PERSIST=true")
	}

	if c.Analysis.Workers < 1 {
		return fmt.Errorf("ANALYSIS_WORKERS must be >= 1")
	}

	if c.Analysis.LoadRate < 0 {
		return fmt.Errorf("ANALYSIS_LOAD_RATE must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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
