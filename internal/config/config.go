package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"` // production, development, etc.
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	PostgresURI string `envconfig:"POSTGRES_URI" default:"postgres://localhost:5432/freshcart?sslmode=disable"`
	MongoURI    string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/freshcart"`
	RedisURI    string `envconfig:"REDIS_URI" default:"redis://localhost:6379/0"`
	RabbitURL   string `envconfig:"RABBIT_URL"` // empty: OTP events are only logged

	RedisPoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisDialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	RedisWriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"your-secret-key-change-in-production"`

	FrontendURL    string   `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"` // CORS; falls back to FRONTEND_URL

	CloudinaryName      string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	OTPTTL            time.Duration `envconfig:"OTP_TTL" default:"5m"`
	OTPResendCooldown time.Duration `envconfig:"OTP_RESEND_COOLDOWN" default:"30s"`
	OTPMaxAttempts    int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	ResetTokenTTL     time.Duration `envconfig:"RESET_TOKEN_TTL" default:"10m"`

	OTPExchange string `envconfig:"OTP_EXCHANGE" default:"auth.exchange"`

	// Seeded at startup when both are set; admins have no self-service signup.
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminName     string `envconfig:"ADMIN_NAME" default:"FreshCart Admin"`

	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{strings.TrimSpace(cfg.FrontendURL)}
	}

	if cfg.OTPMaxAttempts <= 0 {
		return nil, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", cfg.OTPMaxAttempts)
	}
	if cfg.IsProduction() && (cfg.JWTSecret == "" || cfg.JWTSecret == "your-secret-key-change-in-production") {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return &cfg, nil
}

func normalizeOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o != "" && !containsOrigin(out, o) {
			out = append(out, o)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
