package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Sampler  SamplerConfig
	Weather  WeatherConfig
	Stream   StreamConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// SamplerConfig holds the per-trip location sampling loop configuration.
type SamplerConfig struct {
	// Interval between position samples while a trip is active.
	Interval time.Duration
	// TickTimeout bounds the positioning read and store write of one tick
	// so a stuck tick cannot starve the next one.
	TickTimeout time.Duration
	// StaleThreshold is the number of consecutive failed ticks after which
	// a LocationStale event is raised.
	StaleThreshold int
	// StallAfter is how long sampling may keep failing before the trip is
	// considered stalled and the stall callback fires.
	StallAfter time.Duration
	// ApproachRadiusKm is the distance to a waiting student's stop at which
	// a bus-approaching event is raised.
	ApproachRadiusKm float64
}

// WeatherConfig holds the weather provider configuration.
type WeatherConfig struct {
	BaseURL string
	// RefreshInterval is the minimum time between provider calls for one
	// trip, independent of the location sampling cadence.
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// StreamConfig holds the subscription layer configuration.
type StreamConfig struct {
	// Buffer is the per-subscription event channel depth.
	Buffer int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "schooltrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "schooltrack"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Sampler: SamplerConfig{
			Interval:         getDurationEnv("SAMPLER_INTERVAL", 30*time.Second),
			TickTimeout:      getDurationEnv("SAMPLER_TICK_TIMEOUT", 10*time.Second),
			StaleThreshold:   getIntEnv("SAMPLER_STALE_THRESHOLD", 5),
			StallAfter:       getDurationEnv("SAMPLER_STALL_AFTER", 10*time.Minute),
			ApproachRadiusKm: getFloatEnv("SAMPLER_APPROACH_RADIUS_KM", 0.5),
		},
		Weather: WeatherConfig{
			BaseURL:         getEnv("WEATHER_BASE_URL", "https://data.api.xweather.com/roadweather"),
			RefreshInterval: getDurationEnv("WEATHER_REFRESH_INTERVAL", 15*time.Minute),
			Timeout:         getDurationEnv("WEATHER_TIMEOUT", 10*time.Second),
		},
		Stream: StreamConfig{
			Buffer: getIntEnv("STREAM_BUFFER", 64),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
