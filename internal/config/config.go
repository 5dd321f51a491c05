/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultTimezone = "Asia/Jakarta"
)

// Config holds all the configuration variables for the subscription service.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseDriver         string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	SQLitePath             string `mapstructure:"SQLITE_PATH"`
	SupabaseURL            string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey        string `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret      string `mapstructure:"SUPABASE_JWT_SECRET"`
	JWKSURL                string `mapstructure:"JWKS_URL"`
	TrustUserMetadataRole  bool   `mapstructure:"TRUST_USER_METADATA_ROLE"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix         string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string `mapstructure:"EVENTS_EXCHANGE"`
	RateLimitMaxAttempts   int    `mapstructure:"RATE_LIMIT_MAX_ATTEMPTS"`
	RateLimitWindowSeconds int    `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	CSRFTokenTTLMinutes    int    `mapstructure:"CSRF_TOKEN_TTL_MINUTES"`
	BusinessTimezone       string `mapstructure:"BUSINESS_TIMEZONE"`
	MetricsDigestSchedule  string `mapstructure:"METRICS_DIGEST_SCHEDULE"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path. Invalid values are coerced to their defaults with a warning.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("DATABASE_DRIVER", "")
	viper.SetDefault("SQLITE_PATH", "seacatering.db")
	viper.SetDefault("REDIS_KEY_PREFIX", "seacatering")
	viper.SetDefault("EVENTS_EXCHANGE", "seacatering.events")
	viper.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 5)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 300)
	viper.SetDefault("CSRF_TOKEN_TTL_MINUTES", 60)
	viper.SetDefault("BUSINESS_TIMEZONE", defaultTimezone)
	viper.SetDefault("METRICS_DIGEST_SCHEDULE", "0 1 * * *") // At 01:00 every day.
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")
	viper.SetDefault("TRUST_USER_METADATA_ROLE", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_DRIVER")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SQLITE_PATH")
	_ = viper.BindEnv("SUPABASE_URL")
	_ = viper.BindEnv("SUPABASE_ANON_KEY")
	_ = viper.BindEnv("SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("TRUST_USER_METADATA_ROLE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("RATE_LIMIT_MAX_ATTEMPTS")
	_ = viper.BindEnv("RATE_LIMIT_WINDOW_SECONDS")
	_ = viper.BindEnv("CSRF_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("METRICS_DIGEST_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "component", "config", "error", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.MetricsDigestSchedule = strings.TrimSpace(config.MetricsDigestSchedule)

	config.DatabaseDriver = strings.ToLower(strings.TrimSpace(config.DatabaseDriver))
	switch config.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	case "":
		config.DatabaseDriver = DriverSQLite
		if config.DatabaseURL != "" {
			config.DatabaseDriver = DriverPostgres
		}
	default:
		slog.Warn("unknown database driver; coercing to sqlite", "component", "config", "driver", config.DatabaseDriver)
		config.DatabaseDriver = DriverSQLite
	}

	if config.RateLimitMaxAttempts <= 0 {
		slog.Warn("non-positive rate limit configured; coercing to default", "component", "config", "max_attempts", config.RateLimitMaxAttempts)
		config.RateLimitMaxAttempts = 5
	}
	if config.RateLimitWindowSeconds <= 0 {
		slog.Warn("non-positive rate limit window configured; coercing to default", "component", "config", "window_seconds", config.RateLimitWindowSeconds)
		config.RateLimitWindowSeconds = 300
	}
	if config.CSRFTokenTTLMinutes <= 0 {
		config.CSRFTokenTTLMinutes = 60
	}

	config.BusinessTimezone = strings.TrimSpace(config.BusinessTimezone)
	if _, tzErr := time.LoadLocation(config.BusinessTimezone); config.BusinessTimezone == "" || tzErr != nil {
		slog.Warn("invalid business timezone; coercing to default", "component", "config", "timezone", config.BusinessTimezone, "default", defaultTimezone)
		config.BusinessTimezone = defaultTimezone
	}

	if strings.TrimSpace(config.RedisKeyPrefix) == "" {
		config.RedisKeyPrefix = "seacatering"
	}

	return
}

// Validate reports settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.DatabaseDriver == DriverPostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres")
	}
	if strings.TrimSpace(c.SupabaseJWTSecret) == "" && strings.TrimSpace(c.JWKSURL) == "" {
		return errors.New("one of SUPABASE_JWT_SECRET or JWKS_URL is required")
	}
	return nil
}

// Location returns the business timezone used to decide what "today" is.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) CSRFTokenTTL() time.Duration {
	return time.Duration(c.CSRFTokenTTLMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AuthProxyEnabled reports whether sign-up and sign-in can be proxied to Supabase.
func (c Config) AuthProxyEnabled() bool {
	return strings.TrimSpace(c.SupabaseURL) != "" && strings.TrimSpace(c.SupabaseAnonKey) != ""
}
