/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, then normalizes the values so the rest of the service never has to.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for booking-web.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	TicketServiceURL         string `mapstructure:"TICKET_SERVICE_URL"`
	CancellationServiceURL   string `mapstructure:"CANCELLATION_SERVICE_URL"`
	AuthServiceURL           string `mapstructure:"AUTH_SERVICE_URL"`
	HTTPClientTimeoutSeconds int    `mapstructure:"HTTP_CLIENT_TIMEOUT_SECONDS"`
	Timezone                 string `mapstructure:"TIMEZONE"`
	ViewTTLMinutes           int    `mapstructure:"VIEW_TTL_MINUTES"`
	ViewSweepSchedule        string `mapstructure:"VIEW_SWEEP_SCHEDULE"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	OTPRequestLimitPerHour   int    `mapstructure:"OTP_REQUEST_LIMIT_PER_HOUR"`
	OTPVerifyLimitPerHour    int    `mapstructure:"OTP_VERIFY_LIMIT_PER_HOUR"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	BookingEventsExchange    string `mapstructure:"BOOKING_EVENTS_EXCHANGE"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`

	location *time.Location
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("HTTP_CLIENT_TIMEOUT_SECONDS", 30)
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("VIEW_TTL_MINUTES", 30)
	viper.SetDefault("VIEW_SWEEP_SCHEDULE", "@every 1m")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "booking:rate_limit")
	viper.SetDefault("OTP_REQUEST_LIMIT_PER_HOUR", 0)
	viper.SetDefault("OTP_VERIFY_LIMIT_PER_HOUR", 0)
	viper.SetDefault("BOOKING_EVENTS_EXCHANGE", "booking_events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind explicitly so keys without defaults still appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("TICKET_SERVICE_URL", "TICKET_SERVICE_URL", "BOOKING_SERVICE_URL")
	_ = viper.BindEnv("CANCELLATION_SERVICE_URL")
	_ = viper.BindEnv("AUTH_SERVICE_URL")
	_ = viper.BindEnv("HTTP_CLIENT_TIMEOUT_SECONDS")
	_ = viper.BindEnv("TIMEZONE")
	_ = viper.BindEnv("VIEW_TTL_MINUTES")
	_ = viper.BindEnv("VIEW_SWEEP_SCHEDULE")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BOOKING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("OTP_REQUEST_LIMIT_PER_HOUR")
	_ = viper.BindEnv("OTP_VERIFY_LIMIT_PER_HOUR")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BOOKING_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithField("component", "config").WithError(err).Warn("failed to read config file; using environment values")
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.TicketServiceURL = trimURL(config.TicketServiceURL)
	config.CancellationServiceURL = trimURL(config.CancellationServiceURL)
	config.AuthServiceURL = trimURL(config.AuthServiceURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "booking:rate_limit"
	}
	config.BookingEventsExchange = strings.TrimSpace(config.BookingEventsExchange)
	if config.BookingEventsExchange == "" {
		config.BookingEventsExchange = "booking_events"
	}
	if strings.TrimSpace(config.ViewSweepSchedule) == "" {
		config.ViewSweepSchedule = "@every 1m"
	}

	if config.HTTPClientTimeoutSeconds <= 0 {
		config.HTTPClientTimeoutSeconds = 30
	}
	if config.ViewTTLMinutes <= 0 {
		config.ViewTTLMinutes = 30
	}
	if config.OTPRequestLimitPerHour < 0 {
		logrus.WithField("component", "config").Warn("negative OTP request limit configured; disabling limit")
		config.OTPRequestLimitPerHour = 0
	}
	if config.OTPVerifyLimitPerHour < 0 {
		logrus.WithField("component", "config").Warn("negative OTP verify limit configured; disabling limit")
		config.OTPVerifyLimitPerHour = 0
	}

	config.Timezone = strings.TrimSpace(config.Timezone)
	if config.Timezone == "" {
		config.Timezone = "UTC"
	}
	loc, locErr := time.LoadLocation(config.Timezone)
	if locErr != nil {
		logrus.WithFields(logrus.Fields{"component": "config", "timezone": config.Timezone}).
			WithError(locErr).Warn("unknown timezone; falling back to UTC")
		config.Timezone = "UTC"
		loc = time.UTC
	}
	config.location = loc

	return
}

// Location is the zone used to decide which calendar day "today" is.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// HTTPClientTimeout is the per-call timeout for downstream services.
func (c Config) HTTPClientTimeout() time.Duration {
	return time.Duration(c.HTTPClientTimeoutSeconds) * time.Second
}

// ViewTTL is how long an untouched cancellation view is kept.
func (c Config) ViewTTL() time.Duration {
	return time.Duration(c.ViewTTLMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func trimURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
