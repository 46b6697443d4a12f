// Package config loads server configuration from the environment, with a
// .env file honored in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RoutingAPIKey  string
	RoutingBaseURL string

	// RoutingCacheTTL bounds how long a traffic-aware computation may be
	// reused. Zero disables the compute cache.
	RoutingCacheTTL time.Duration

	IngestBaseURL string

	// BoundaryFile is an optional GeoJSON polygon constraining where route
	// geometry may lie. Empty disables boundary validation.
	BoundaryFile string

	DefaultProjectID int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("ROUTING_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ROUTING_API_KEY environment variable is required")
	}

	return &Config{
		RoutingAPIKey:  apiKey,
		RoutingBaseURL: getEnv("ROUTING_BASE_URL", "https://routes.googleapis.com"),

		RoutingCacheTTL: getDurationEnv("ROUTING_CACHE_TTL", 2*time.Minute),

		IngestBaseURL: getEnv("INGEST_BASE_URL", "http://localhost:8081"),

		BoundaryFile: getEnv("BOUNDARY_FILE", ""),

		DefaultProjectID: getIntEnv("DEFAULT_PROJECT_ID", 0),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
