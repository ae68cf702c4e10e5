package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

var managedKeys = []string{
	"SERVER_PORT", "PORT", "TICKET_SERVICE_URL", "BOOKING_SERVICE_URL", "CANCELLATION_SERVICE_URL",
	"AUTH_SERVICE_URL", "HTTP_CLIENT_TIMEOUT_SECONDS", "TIMEZONE", "VIEW_TTL_MINUTES",
	"VIEW_SWEEP_SCHEDULE", "OTP_REQUEST_LIMIT_PER_HOUR", "OTP_VERIFY_LIMIT_PER_HOUR",
	"BOOKING_EVENTS_EXCHANGE", "CORS_ALLOWED_ORIGINS", "REDIS_RATE_LIMIT_PREFIX",
}

func resetEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, key := range managedKeys {
		unsetEnvWithCleanup(t, key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.HTTPClientTimeout() != 30*time.Second {
		t.Fatalf("expected 30s client timeout, got %s", cfg.HTTPClientTimeout())
	}
	if cfg.ViewTTL() != 30*time.Minute {
		t.Fatalf("expected 30m view ttl, got %s", cfg.ViewTTL())
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", cfg.Location())
	}
	if cfg.OTPRequestLimitPerHour != 0 || cfg.OTPVerifyLimitPerHour != 0 {
		t.Fatalf("expected attempt limits to be off by default, got %d/%d", cfg.OTPRequestLimitPerHour, cfg.OTPVerifyLimitPerHour)
	}
	if cfg.BookingEventsExchange != "booking_events" {
		t.Fatalf("expected booking_events exchange, got %q", cfg.BookingEventsExchange)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	resetEnv(t)
	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "7001")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7001" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_BookingServiceURLAlias(t *testing.T) {
	resetEnv(t)
	setEnvWithCleanup(t, "BOOKING_SERVICE_URL", "http://tickets:8085/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TicketServiceURL != "http://tickets:8085" {
		t.Fatalf("expected trimmed alias url, got %q", cfg.TicketServiceURL)
	}
}

func TestLoadConfig_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	resetEnv(t)
	setEnvWithCleanup(t, "TIMEZONE", "Mars/Olympus_Mons")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Timezone != "UTC" || cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %q", cfg.Timezone)
	}
}

func TestLoadConfig_NonPositiveValuesAreNormalized(t *testing.T) {
	resetEnv(t)
	setEnvWithCleanup(t, "HTTP_CLIENT_TIMEOUT_SECONDS", "0")
	setEnvWithCleanup(t, "VIEW_TTL_MINUTES", "-5")
	setEnvWithCleanup(t, "OTP_VERIFY_LIMIT_PER_HOUR", "-1")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPClientTimeoutSeconds != 30 {
		t.Fatalf("expected timeout reset to 30, got %d", cfg.HTTPClientTimeoutSeconds)
	}
	if cfg.ViewTTLMinutes != 30 {
		t.Fatalf("expected ttl reset to 30, got %d", cfg.ViewTTLMinutes)
	}
	if cfg.OTPVerifyLimitPerHour != 0 {
		t.Fatalf("expected negative limit to disable, got %d", cfg.OTPVerifyLimitPerHour)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " http://a.test , ,https://b.test"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "https://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
