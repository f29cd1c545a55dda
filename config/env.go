package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	DB        DBConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Verifone  VerifoneConfig
	Points    PointsConfig
	Catalog   CatalogConfig
	Sync      SyncConfig
}

type ServerConfig struct {
	HTTPPort    string
	GRPCPort    string
	GRPCTarget  string
	Environment string
	LogLevel    string
}

type DBConfig struct {
	DSN string
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	// Formatted ulule rate, e.g. "60-M".
	Rate string
}

type VerifoneConfig struct {
	Enabled   bool
	BaseURL   string
	Username  string
	Password  string
	CompanyID string
	Timeout   time.Duration
}

type PointsConfig struct {
	EarnRate decimal.Decimal
}

type CatalogConfig struct {
	CacheTTL      time.Duration
	LookupTimeout time.Duration
}

type SyncConfig struct {
	BatchSize   int
	MaxBatches  int
	Concurrency int
	Interval    time.Duration
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	batchSize, _ := strconv.Atoi(getEnv("POINTS_SYNC_BATCH_SIZE", "200"))
	maxBatches, _ := strconv.Atoi(getEnv("POINTS_SYNC_MAX_BATCHES", "50"))
	concurrency, _ := strconv.Atoi(getEnv("POINTS_SYNC_CONCURRENCY", "8"))
	verifoneEnabled, _ := strconv.ParseBool(getEnv("VERIFONE_ENABLED", "false"))

	earnRate, err := decimal.NewFromString(getEnv("POINTS_EARN_RATE", "0.05"))
	if err != nil {
		earnRate = decimal.RequireFromString("0.05")
	}

	return Config{
		Server: ServerConfig{
			HTTPPort:    getEnv("HTTP_PORT", "8080"),
			GRPCPort:    getEnv("GRPC_PORT", "50054"),
			GRPCTarget:  getEnv("SETTLEMENT_GRPC_TARGET", "localhost:50054"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("SETTLEMENT_DSN", "host=localhost user=postgres password=postgres dbname=settlement port=5432 sslmode=disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			Rate: getEnv("RATE_LIMIT", "60-M"),
		},
		Verifone: VerifoneConfig{
			Enabled:   verifoneEnabled,
			BaseURL:   getEnv("VERIFONE_BASE_URL", ""),
			Username:  getEnv("VERIFONE_USERNAME", ""),
			Password:  getEnv("VERIFONE_PASSWORD", ""),
			CompanyID: getEnv("VERIFONE_COMPANY_ID", ""),
			Timeout:   getEnvDuration("VERIFONE_TIMEOUT", 20*time.Second),
		},
		Points: PointsConfig{
			EarnRate: earnRate,
		},
		Catalog: CatalogConfig{
			CacheTTL:      getEnvDuration("CATALOG_CACHE_TTL", 30*time.Minute),
			LookupTimeout: getEnvDuration("CATALOG_LOOKUP_TIMEOUT", 3*time.Second),
		},
		Sync: SyncConfig{
			BatchSize:   batchSize,
			MaxBatches:  maxBatches,
			Concurrency: concurrency,
			Interval:    getEnvDuration("POINTS_SYNC_INTERVAL", 6*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
