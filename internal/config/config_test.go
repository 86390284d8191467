package config

import (
	"os"
	"testing"
	"time"
)

// unsetEnv removes keys for the duration of the test. t.Setenv registers the
// restore, then the key is actually unset so defaults apply.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset %s: %v", key, err)
		}
	}
}

var allKeys = []string{
	"PORT", "ENV", "DATABASE_URL",
	"BULB_API_BASE_URL", "BULB_API_KEY", "BULB_API_TIMEOUT", "BULB_COMMAND_RATE", "BULB_COMMAND_BURST",
	"DEVICE_RUN_POLICY", "PATTERN_RANDOM_SEED", "CORS_ORIGIN", "SCHEDULER_ENABLED",
	"MQTT_ENABLED", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX", "MQTT_USERNAME", "MQTT_PASSWORD",
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, allKeys...)

	cfg := Load()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Port", cfg.Port, "4100"},
		{"Env", cfg.Env, "development"},
		{"DatabaseURL", cfg.DatabaseURL, "file:./bulbs.db"},
		{"BulbAPIBaseURL", cfg.BulbAPIBaseURL, "http://localhost:5000"},
		{"BulbAPIKey", cfg.BulbAPIKey, ""},
		{"BulbAPITimeout", cfg.BulbAPITimeout, 30 * time.Second},
		{"BulbCommandRate", cfg.BulbCommandRate, 20.0},
		{"BulbCommandBurst", cfg.BulbCommandBurst, 5},
		{"DeviceRunPolicy", cfg.DeviceRunPolicy, "replace"},
		{"PatternRandomSeed", cfg.PatternRandomSeed, uint64(0)},
		{"CORSOrigin", cfg.CORSOrigin, "http://localhost:3000"},
		{"SchedulerEnabled", cfg.SchedulerEnabled, true},
		{"MQTTEnabled", cfg.MQTTEnabled, false},
		{"MQTTBroker", cfg.MQTTBroker, "tcp://localhost:1883"},
		{"MQTTClientID", cfg.MQTTClientID, "lacylights-bulbs"},
		{"MQTTTopicPrefix", cfg.MQTTTopicPrefix, "lacylights/bulbs"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}

func TestLoad_CustomEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "file:./prod.db")
	t.Setenv("BULB_API_BASE_URL", "https://bulbs.example.com")
	t.Setenv("BULB_API_KEY", "secret")
	t.Setenv("BULB_API_TIMEOUT", "5000")
	t.Setenv("BULB_COMMAND_RATE", "2.5")
	t.Setenv("BULB_COMMAND_BURST", "1")
	t.Setenv("DEVICE_RUN_POLICY", " Reject ")
	t.Setenv("PATTERN_RANDOM_SEED", "42")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected Port to be '8080', got '%s'", cfg.Port)
	}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Errorf("Expected production mode, got Env %q", cfg.Env)
	}
	if cfg.DatabaseURL != "file:./prod.db" {
		t.Errorf("Expected DatabaseURL 'file:./prod.db', got '%s'", cfg.DatabaseURL)
	}
	if cfg.BulbAPIBaseURL != "https://bulbs.example.com" {
		t.Errorf("Expected BulbAPIBaseURL override, got '%s'", cfg.BulbAPIBaseURL)
	}
	if cfg.BulbAPIKey != "secret" {
		t.Errorf("Expected BulbAPIKey 'secret', got '%s'", cfg.BulbAPIKey)
	}
	if cfg.BulbAPITimeout != 5*time.Second {
		t.Errorf("Expected BulbAPITimeout 5s, got %v", cfg.BulbAPITimeout)
	}
	if cfg.BulbCommandRate != 2.5 {
		t.Errorf("Expected BulbCommandRate 2.5, got %v", cfg.BulbCommandRate)
	}
	if cfg.BulbCommandBurst != 1 {
		t.Errorf("Expected BulbCommandBurst 1, got %d", cfg.BulbCommandBurst)
	}
	if cfg.RunPolicy() != "reject" {
		t.Errorf("Expected RunPolicy 'reject', got '%s'", cfg.RunPolicy())
	}
	if cfg.PatternRandomSeed != 42 {
		t.Errorf("Expected PatternRandomSeed 42, got %d", cfg.PatternRandomSeed)
	}
	if cfg.SchedulerEnabled {
		t.Error("Expected SchedulerEnabled to be false")
	}
	if !cfg.MQTTEnabled {
		t.Error("Expected MQTTEnabled to be true")
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("Expected MQTTBroker override, got '%s'", cfg.MQTTBroker)
	}
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %d", got)
	}
}

func TestGetEnvBool_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_BOOL", "maybe")
	if got := getEnvBool("TEST_BOOL", true); !got {
		t.Error("Expected fallback true")
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.5")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.5 {
		t.Errorf("Expected 0.5, got %v", got)
	}

	t.Setenv("TEST_FLOAT", "fast")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 1 {
		t.Errorf("Expected fallback 1, got %v", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"1500", 1500 * time.Millisecond},
		{"45s", 45 * time.Second},
		{"2m", 2 * time.Minute},
		{"soon", 10 * time.Second},
	}

	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", 10*time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	unsetEnv(t, "TEST_DURATION")
	if got := getEnvDuration("TEST_DURATION", 10*time.Second); got != 10*time.Second {
		t.Errorf("Expected default for unset key, got %v", got)
	}
}
