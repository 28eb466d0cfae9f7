// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"auth-service/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty, SQLitePath is used instead.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the SQLite database file for single-node deployments.
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// JWTAlgorithm is one of RS256, RS384, RS512, PS256, PS384, PS512.
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM"`
	// JWTAccessTTLMinutes is the access token lifetime in minutes.
	JWTAccessTTLMinutes int `mapstructure:"JWT_ACCESS_TTL_MINUTES"`
	// JWTRefreshTTLDays is the refresh token lifetime in days.
	JWTRefreshTTLDays int `mapstructure:"JWT_REFRESH_TTL_DAYS"`
	// JWTPrivateKeyPath and JWTPublicKeyPath locate the PEM keypair; generated if absent.
	JWTPrivateKeyPath string `mapstructure:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `mapstructure:"JWT_PUBLIC_KEY_PATH"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	PasswordMinLength        int  `mapstructure:"PASSWORD_MIN_LENGTH"`
	PasswordRequireUppercase bool `mapstructure:"PASSWORD_REQUIRE_UPPERCASE"`
	PasswordRequireLowercase bool `mapstructure:"PASSWORD_REQUIRE_LOWERCASE"`
	PasswordRequireNumbers   bool `mapstructure:"PASSWORD_REQUIRE_NUMBERS"`
	PasswordRequireSymbols   bool `mapstructure:"PASSWORD_REQUIRE_SYMBOLS"`
	// PasswordResetTTL is how long a password-reset token stays valid (e.g. "1h").
	PasswordResetTTL time.Duration `mapstructure:"PASSWORD_RESET_TTL"`

	// RefreshRotateOnUse revokes a refresh token when it is used and issues a new one.
	RefreshRotateOnUse bool `mapstructure:"REFRESH_ROTATE_ON_USE"`
	// RevokeSessionsOnPasswordChange revokes all refresh tokens after a password change or reset.
	RevokeSessionsOnPasswordChange bool `mapstructure:"REVOKE_SESSIONS_ON_PASSWORD_CHANGE"`
	// StoreTimeout bounds each persistence call made by the refresh token store.
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT"`

	// AccessPolicyFile is an optional Rego module replacing the built-in account-access policy.
	AccessPolicyFile string `mapstructure:"ACCESS_POLICY_FILE"`
	// RequireVerifiedEmail is passed to the access policy as require_verified.
	RequireVerifiedEmail bool `mapstructure:"REQUIRE_VERIFIED_EMAIL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTel (optional). When the endpoint is empty, traces, metrics and logs are not exported.
	OTELEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELService  string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, the server emits auth events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events (default auth-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

var allowedAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "")
	v.SetDefault("JWT_ALGORITHM", security.DefaultAlgorithm)
	v.SetDefault("JWT_ACCESS_TTL_MINUTES", 15)
	v.SetDefault("JWT_REFRESH_TTL_DAYS", 30)
	v.SetDefault("JWT_PRIVATE_KEY_PATH", "keys/private.pem")
	v.SetDefault("JWT_PUBLIC_KEY_PATH", "keys/public.pem")
	v.SetDefault("BCRYPT_COST", security.DefaultBcryptCost)
	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("PASSWORD_REQUIRE_UPPERCASE", true)
	v.SetDefault("PASSWORD_REQUIRE_LOWERCASE", true)
	v.SetDefault("PASSWORD_REQUIRE_NUMBERS", true)
	v.SetDefault("PASSWORD_REQUIRE_SYMBOLS", false)
	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("REFRESH_ROTATE_ON_USE", false)
	v.SetDefault("REVOKE_SESSIONS_ON_PASSWORD_CHANGE", true)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("ACCESS_POLICY_FILE", "")
	v.SetDefault("REQUIRE_VERIFIED_EMAIL", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "auth-service")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "auth-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "auth-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	c.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(c.JWTAlgorithm))
	if !allowedAlgorithms[c.JWTAlgorithm] {
		return errors.New("config: JWT_ALGORITHM must be one of RS256, RS384, RS512, PS256, PS384, PS512")
	}
	if c.JWTAccessTTLMinutes <= 0 {
		return errors.New("config: JWT_ACCESS_TTL_MINUTES must be positive")
	}
	if c.JWTRefreshTTLDays <= 0 {
		return errors.New("config: JWT_REFRESH_TTL_DAYS must be positive")
	}
	if c.JWTPrivateKeyPath == "" || c.JWTPublicKeyPath == "" {
		return errors.New("config: JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = security.DefaultBcryptCost
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.PasswordMinLength < 1 {
		return errors.New("config: PASSWORD_MIN_LENGTH must be at least 1")
	}
	if c.PasswordResetTTL <= 0 {
		return errors.New("config: PASSWORD_RESET_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}
	return nil
}

// TokenConfig returns the token policy derived from the JWT settings.
func (c *Config) TokenConfig() security.TokenConfig {
	return security.TokenConfig{
		Algorithm:  c.JWTAlgorithm,
		AccessTTL:  time.Duration(c.JWTAccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour,
	}
}

// KeyConfig returns the key file locations.
func (c *Config) KeyConfig() security.KeyConfig {
	return security.KeyConfig{PrivateKeyPath: c.JWTPrivateKeyPath, PublicKeyPath: c.JWTPublicKeyPath}
}

// PasswordPolicy returns the complexity rules for new passwords.
func (c *Config) PasswordPolicy() security.PasswordPolicy {
	return security.PasswordPolicy{
		MinLength:        c.PasswordMinLength,
		RequireUppercase: c.PasswordRequireUppercase,
		RequireLowercase: c.PasswordRequireLowercase,
		RequireDigit:     c.PasswordRequireNumbers,
		RequireSymbol:    c.PasswordRequireSymbols,
	}
}

// ResetTokenTTL returns the password-reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	return c.PasswordResetTTL
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event export is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsDevelopment reports whether APP_ENV is "development". Dev-only services are registered only then.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}
