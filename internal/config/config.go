// Package config provides configuration management for the bulb pattern server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Bulb API configuration
	BulbAPIBaseURL   string
	BulbAPIKey       string
	BulbAPITimeout   time.Duration
	BulbCommandRate  float64 // commands per second, 0 disables limiting
	BulbCommandBurst int

	// Pattern engine configuration
	DeviceRunPolicy   string // "replace" or "reject"
	PatternRandomSeed uint64 // 0 seeds from the clock

	// CORS configuration
	CORSOrigin string

	// Scheduler configuration
	SchedulerEnabled bool

	// MQTT configuration
	MQTTEnabled     bool
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTUsername    string
	MQTTPassword    string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4100"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./bulbs.db"),

		// Bulb API
		BulbAPIBaseURL:   getEnv("BULB_API_BASE_URL", "http://localhost:5000"),
		BulbAPIKey:       getEnv("BULB_API_KEY", ""),
		BulbAPITimeout:   getEnvDuration("BULB_API_TIMEOUT", 30*time.Second),
		BulbCommandRate:  getEnvFloat("BULB_COMMAND_RATE", 20),
		BulbCommandBurst: getEnvInt("BULB_COMMAND_BURST", 5),

		// Pattern engine
		DeviceRunPolicy:   getEnv("DEVICE_RUN_POLICY", "replace"),
		PatternRandomSeed: uint64(getEnvInt("PATTERN_RANDOM_SEED", 0)),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		// Scheduler
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),

		// MQTT
		MQTTEnabled:     getEnvBool("MQTT_ENABLED", false),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "lacylights-bulbs"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "lacylights/bulbs"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RunPolicy returns the normalized device run policy name.
func (c *Config) RunPolicy() string {
	return strings.ToLower(strings.TrimSpace(c.DeviceRunPolicy))
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the float value of an environment variable or a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration in milliseconds, or a Go duration string such as "45s".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
