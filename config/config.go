package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds service configuration, loaded from the environment.
type Config struct {
	BaseURL        string
	EchoURL        string
	HTTPPort       string
	SessionDBPath  string
	DatabaseURL    string
	OutputCSV      string
	MaxPages       int
	Concurrency    int
	Parallel       bool
	RequestTimeout time.Duration
	RateLimit      float64
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		BaseURL:        getEnv("ASTRO_BASE_URL", "https://www.astrobuysell.com/uk/propview.php"),
		EchoURL:        getEnv("PROBE_ECHO_URL", "https://httpbin.org/ip"),
		HTTPPort:       getEnv("PORT", "3001"),
		SessionDBPath:  getEnv("SESSION_DB", "astroscraper-session.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		OutputCSV:      getEnv("OUTPUT_CSV", "output/astronomy-listings.csv"),
		MaxPages:       getEnvInt("MAX_PAGES", 50),
		Concurrency:    getEnvInt("CONCURRENCY", 3),
		Parallel:       getEnvBool("PARALLEL", true),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateLimit:      getEnvFloat("RATE_LIMIT_RPS", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
