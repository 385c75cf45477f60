package core

import (
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	const testKey = "TEST_GET_ENV_OR_DEFAULT"

	tests := []struct {
		name     string
		envValue string
		want     string
	}{
		{"returns env value when set", "custom_value", "custom_value"},
		{"returns default when empty", "", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := GetEnvOrDefault(testKey, "default"); got != tt.want {
				t.Errorf("GetEnvOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	const testKey = "TEST_PARSE_INT_ENV"

	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"valid", "42", 42},
		{"surrounding whitespace", " 7 ", 7},
		{"negative", "-3", -3},
		{"malformed falls back", "abc", 10},
		{"empty falls back", "", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseIntEnv(testKey, 10); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseInt64Env(t *testing.T) {
	const testKey = "TEST_PARSE_INT64_ENV"

	t.Setenv(testKey, "10485760")
	if got := ParseInt64Env(testKey, 1); got != 10485760 {
		t.Errorf("ParseInt64Env() = %d, want 10485760", got)
	}

	t.Setenv(testKey, "ten")
	if got := ParseInt64Env(testKey, 1); got != 1 {
		t.Errorf("ParseInt64Env() with malformed value = %d, want 1", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	const testKey = "TEST_PARSE_BOOL_ENV"

	tests := []struct {
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"1", false, true},
		{"false", true, false},
		{"off", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseBoolEnv(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnvs(t *testing.T) {
	t.Setenv("TEST_DURATION_SECONDS", "90")
	if got := ParseDurationEnv("TEST_DURATION_SECONDS", 1); got != 90*time.Second {
		t.Errorf("ParseDurationEnv() = %v, want 90s", got)
	}

	t.Setenv("TEST_DURATION_MILLIS", "250")
	if got := ParseMillisEnv("TEST_DURATION_MILLIS", 1); got != 250*time.Millisecond {
		t.Errorf("ParseMillisEnv() = %v, want 250ms", got)
	}

	t.Setenv("TEST_DURATION_MILLIS", "")
	if got := ParseMillisEnv("TEST_DURATION_MILLIS", 1000); got != time.Second {
		t.Errorf("ParseMillisEnv() default = %v, want 1s", got)
	}
}
