// Package config provides configuration management for the bitmap tools.
package config

import (
	"os"
	"strconv"
)

// Config holds the complete application configuration.
type Config struct {
	Cache   CacheConfig
	Decode  DecodeConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// CacheConfig holds raster cache configuration.
type CacheConfig struct {
	Budget   int64
	Blocking bool
}

// DecodeConfig holds decode pipeline configuration.
type DecodeConfig struct {
	Reuse   bool
	Crop    bool
	Workers int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Pretty bool
}

// MetricsConfig holds the Prometheus endpoint configuration.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string
}

// Load creates a Config from environment variables.
func Load() Config {
	return Config{
		Cache: CacheConfig{
			Budget:   getEnvInt64("BITMAP_CACHE_BYTES", 32<<20),
			Blocking: getEnvBool("BITMAP_BLOCKING", false),
		},
		Decode: DecodeConfig{
			Reuse:   getEnvBool("BITMAP_REUSE", true),
			Crop:    getEnvBool("BITMAP_CROP", true),
			Workers: getEnvInt("BITMAP_WORKERS", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("BITMAP_METRICS_ADDR", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
