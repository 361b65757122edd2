package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	Environment          string
	LogLevel             string
	AlphaVantageKey      string
	DatabasePath         string
	CacheTTLMinutes      int
	MaxConcurrentFetches int
	DefaultHistoryDays   int
	RiskFreeRate         float64
}

func Load() *Config {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENVIRONMENT", "production"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		AlphaVantageKey:      getEnv("ALPHA_VANTAGE_KEY", ""),
		DatabasePath:         getEnv("DATABASE_PATH", "stockpulse.db"),
		CacheTTLMinutes:      getEnvInt("CACHE_TTL_MINUTES", 60),
		MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 10),
		DefaultHistoryDays:   getEnvInt("DEFAULT_HISTORY_DAYS", 365),
		RiskFreeRate:         getEnvFloat("RISK_FREE_RATE", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
