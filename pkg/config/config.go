package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the consolidator
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env  string // development, staging, production
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	Paths    PathsConfig
	DuckDB   DuckDBConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Publish  PublishConfig
	Schedule ScheduleConfig
}

// PathsConfig holds filesystem locations used by a run
type PathsConfig struct {
	ShardDir  string // per-worker shard input directory
	OutputDir string // year-partitioned artifacts + QC report
	RunConfig string // optional YAML run config (critical columns, shard names)
}

// DuckDBConfig bounds the streaming engine's working set
type DuckDBConfig struct {
	MemoryLimit string // e.g. "2GB"
	TempDir     string // spill directory for sort/merge state
	Threads     int    // 0 = engine default
}

// DatabaseConfig holds the optional PostgreSQL report store configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a report store is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration (run lock, latest report cache, upload rate limit)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// PublishConfig configures the artifact sink
type PublishConfig struct {
	Mode          string // none, local, hf
	Dir           string // local sink target
	HFToken       string
	HFRepo        string
	HFEndpoint    string
	Concurrency   int
	RatePerSecond float64
}

// ScheduleConfig configures the periodic consolidation job
type ScheduleConfig struct {
	Cron string // with seconds field
	Year string // year selector passed to each scheduled run ("", "2024", "all")
}

// Publish modes
const (
	PublishNone  = "none"
	PublishLocal = "local"
	PublishHF    = "hf"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8089"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Paths: PathsConfig{
			ShardDir:  getEnv("SHARD_DIR", "all_artifacts"),
			OutputDir: getEnv("OUTPUT_DIR", "output"),
			RunConfig: getEnv("RUN_CONFIG", ""),
		},

		DuckDB: DuckDBConfig{
			MemoryLimit: getEnv("DUCKDB_MEMORY_LIMIT", "2GB"),
			TempDir:     getEnv("DUCKDB_TEMP_DIR", ".duckdb_spill"),
			Threads:     getEnvAsInt("DUCKDB_THREADS", 0),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
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

		Publish: PublishConfig{
			Mode:          getEnv("PUBLISH_MODE", PublishNone),
			Dir:           getEnv("PUBLISH_DIR", ""),
			HFToken:       getEnv("HF_TOKEN", ""),
			HFRepo:        getEnv("HF_REPO", ""),
			HFEndpoint:    getEnv("HF_ENDPOINT", "https://huggingface.co"),
			Concurrency:   getEnvAsInt("PUBLISH_CONCURRENCY", 4),
			RatePerSecond: getEnvAsFloat("PUBLISH_RATE_PER_SECOND", 2),
		},

		Schedule: ScheduleConfig{
			Cron: getEnv("SCHEDULE_CRON", "0 30 17 * * 1-5"),
			Year: getEnv("SCHEDULE_YEAR", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Paths.ShardDir == "" || c.Paths.OutputDir == "" {
		return fmt.Errorf("SHARD_DIR and OUTPUT_DIR are required")
	}

	if c.DuckDB.MemoryLimit == "" {
		return fmt.Errorf("DUCKDB_MEMORY_LIMIT is required")
	}
	if c.DuckDB.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}

	switch c.Publish.Mode {
	case PublishNone:
	case PublishLocal:
		if c.Publish.Dir == "" {
			return fmt.Errorf("PUBLISH_DIR is required when PUBLISH_MODE=local")
		}
	case PublishHF:
		if c.Publish.HFRepo == "" {
			return fmt.Errorf("HF_REPO is required when PUBLISH_MODE=hf")
		}
	default:
		return fmt.Errorf("PUBLISH_MODE must be one of: none, local, hf")
	}

	if c.Publish.Concurrency < 1 {
		return fmt.Errorf("PUBLISH_CONCURRENCY must be >= 1")
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
