package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port          string
	DatabasePath  string
	LogLevel      string
	JWTSecret     string
	AllowedOrigin string

	// Upstream fetch behaviour.
	FetchTimeout  time.Duration
	PriceCacheTTL time.Duration

	// Per-identity sliding window admission control.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Hard cap on unique instruments per category in one batch.
	MaxBatchPerCategory int

	// IDR per 1 USD used when the live exchange rate is unreachable.
	FallbackUSDIDR float64
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	fallbackRateStr := getEnv("FALLBACK_USD_IDR", "16250")
	fallbackRate, err := strconv.ParseFloat(fallbackRateStr, 64)
	if err != nil || fallbackRate <= 0 {
		log.Printf("WARNING: Invalid FALLBACK_USD_IDR '%s'. Using default 16250. Error: %v", fallbackRateStr, err)
		fallbackRate = 16250
	}

	Cfg = &AppConfig{
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "./hartafolio.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     jwtSecret,
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),

		FetchTimeout:  getEnvAsDuration("FETCH_TIMEOUT", 8*time.Second),
		PriceCacheTTL: getEnvAsDuration("PRICE_CACHE_TTL", 1*time.Minute),

		RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 30),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		MaxBatchPerCategory: getEnvAsInt("MAX_BATCH_PER_CATEGORY", 50),

		FallbackUSDIDR: fallbackRate,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RateLimit=%d/%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.RateLimitMax, Cfg.RateLimitWindow)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
