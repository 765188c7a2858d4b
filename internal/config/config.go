package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clinicrx/clinic/internal/platform/middleware"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	AuthMode            string        `mapstructure:"AUTH_MODE"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	JWTSigningKey       string        `mapstructure:"JWT_SIGNING_KEY"`
	AuthIssuer          string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL         string        `mapstructure:"AUTH_JWKS_URL"`
	TokenTTL            time.Duration `mapstructure:"TOKEN_TTL"`
	IdentityCacheTTL    time.Duration `mapstructure:"IDENTITY_CACHE_TTL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	UploadLimit         string        `mapstructure:"UPLOAD_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RenderTimeout       time.Duration `mapstructure:"RENDER_TIMEOUT"`
	TLSEnabled          bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile         string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile          string        `mapstructure:"TLS_KEY_FILE"`
	DefaultLanguage     string        `mapstructure:"DEFAULT_LANGUAGE"`
	TrialDays           int           `mapstructure:"TRIAL_DAYS"`
	EnforceSubscription bool          `mapstructure:"ENFORCE_SUBSCRIPTION"`
	AuditBufferSize     int           `mapstructure:"AUDIT_BUFFER_SIZE"`
	StorageBackend      string        `mapstructure:"STORAGE_BACKEND"`
	StorageBucket       string        `mapstructure:"STORAGE_BUCKET"`
	StorageSigningKey   string        `mapstructure:"STORAGE_SIGNING_KEY"`
	S3Region            string        `mapstructure:"S3_REGION"`
	S3Endpoint          string        `mapstructure:"S3_ENDPOINT"`
	PublicBaseURL       string        `mapstructure:"PUBLIC_BASE_URL"`
	MailMode            string        `mapstructure:"MAIL_MODE"`
	SMTPHost            string        `mapstructure:"SMTP_HOST"`
	SMTPPort            int           `mapstructure:"SMTP_PORT"`
	SMTPUsername        string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword        string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom            string        `mapstructure:"MAIL_FROM"`
	MailFunctionURL     string        `mapstructure:"MAIL_FUNCTION_URL"`
	RenderURL           string        `mapstructure:"RENDER_URL"`
	OTLPEndpoint        string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRate      float64       `mapstructure:"OTEL_SAMPLE_RATE"`

	// Parsed from BodyLimit and UploadLimit by Load.
	BodyLimitBytes   int64 `mapstructure:"-"`
	UploadLimitBytes int64 `mapstructure:"-"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "AUTH_MODE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"REDIS_URL",
	"JWT_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "TOKEN_TTL", "IDENTITY_CACHE_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BODY_LIMIT", "UPLOAD_LIMIT", "REQUEST_TIMEOUT", "RENDER_TIMEOUT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"DEFAULT_LANGUAGE", "TRIAL_DAYS", "ENFORCE_SUBSCRIPTION", "AUDIT_BUFFER_SIZE",
	"STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_SIGNING_KEY", "S3_REGION", "S3_ENDPOINT", "PUBLIC_BASE_URL",
	"MAIL_MODE", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM", "MAIL_FUNCTION_URL",
	"RENDER_URL", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLE_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUTH_ISSUER", "clinic-server")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("IDENTITY_CACHE_TTL", "5m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "5M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RENDER_TIMEOUT", "2m")
	v.SetDefault("DEFAULT_LANGUAGE", "fr")
	v.SetDefault("TRIAL_DAYS", 14)
	v.SetDefault("ENFORCE_SUBSCRIPTION", true)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("STORAGE_BACKEND", "memory")
	v.SetDefault("STORAGE_BUCKET", "clinic-assets")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("MAIL_MODE", "log")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.BodyLimitBytes, err = middleware.ParseSize(cfg.BodyLimit); err != nil {
		return nil, fmt.Errorf("BODY_LIMIT: %w", err)
	}
	if cfg.UploadLimitBytes, err = middleware.ParseSize(cfg.UploadLimit); err != nil {
		return nil, fmt.Errorf("UPLOAD_LIMIT: %w", err)
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: requests without a bearer token may act as the principal named in X-Dev-Principal.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (built-in accounts plus X-Dev-Principal)
//   - AUTH_JWKS_URL set → "external" (tokens from a third-party provider)
//   - Otherwise       → "standalone" (built-in accounts only)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	if c.AuthJWKSURL != "" {
		return "external"
	}
	return "standalone"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "standalone":
		if len(c.JWTSigningKey) < 32 {
			return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters when AUTH_MODE is \"standalone\"")
		}
	case "external":
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL must be set when AUTH_MODE is \"external\"")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"standalone\", or \"external\", got %q", mode)
	}

	switch c.StorageBackend {
	case "memory":
		if c.IsProduction() && c.StorageSigningKey == "" {
			return fmt.Errorf("STORAGE_SIGNING_KEY is required in production")
		}
	case "s3":
		if c.StorageBucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"memory\" or \"s3\", got %q", c.StorageBackend)
	}

	switch c.MailMode {
	case "log":
	case "smtp":
		if c.SMTPHost == "" || c.MailFrom == "" {
			return fmt.Errorf("SMTP_HOST and MAIL_FROM are required when MAIL_MODE is \"smtp\"")
		}
	default:
		return fmt.Errorf("MAIL_MODE must be \"log\" or \"smtp\", got %q", c.MailMode)
	}

	switch c.DefaultLanguage {
	case "ar", "fr", "en":
	default:
		return fmt.Errorf("DEFAULT_LANGUAGE must be one of ar, fr, en, got %q", c.DefaultLanguage)
	}

	if c.TrialDays < 0 {
		return fmt.Errorf("TRIAL_DAYS must not be negative")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
