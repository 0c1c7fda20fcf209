package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Security  SecurityConfig  `yaml:"security"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	SES       SESConfig       `yaml:"ses"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds the optional Redis used for dispatch locks
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SecurityConfig holds the contact field encryption secrets
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
	HashPepper    string `yaml:"hash_pepper"`
}

// DeliveryConfig selects and configures the outbound mail transport
type DeliveryConfig struct {
	Provider       string `yaml:"provider"` // "resend" or "ses"
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	FromEmail      string `yaml:"from_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c DeliveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	UseDefaultChain bool   `yaml:"use_default_chain"`
}

// UploadsConfig selects where uploaded images live
type UploadsConfig struct {
	Type     string `yaml:"type"` // "local" or "s3"
	LocalDir string `yaml:"local_dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// AuthConfig holds Microsoft Entra and local sign-in configuration
type AuthConfig struct {
	TenantID           string `yaml:"tenant_id"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	PublicURL          string `yaml:"public_url"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
	LocalAdminUsername string `yaml:"local_admin_username"`
	LocalAdminPassword string `yaml:"local_admin_password"`
}

// SessionTTL returns the cookie lifetime as a duration
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.CookieMaxAge) * time.Second
}

// SchedulerConfig controls the background sweep of scheduled campaigns
type SchedulerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// Interval returns the sweep interval as a duration
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DispatchConfig holds campaign dispatch settings
type DispatchConfig struct {
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the dispatch lock lease as a duration
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Delivery.Provider == "" {
		cfg.Delivery.Provider = "resend"
	}
	if cfg.Delivery.TimeoutSeconds == 0 {
		cfg.Delivery.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Uploads.Type == "" {
		cfg.Uploads.Type = "local"
	}
	if cfg.Uploads.LocalDir == "" {
		cfg.Uploads.LocalDir = "./public/uploads"
	}
	if cfg.Uploads.S3Prefix == "" {
		cfg.Uploads.S3Prefix = "uploads"
	}
	if cfg.Auth.TenantID == "" {
		cfg.Auth.TenantID = "common"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "mailroom_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 4 * 60 * 60
	}
	if cfg.Scheduler.IntervalSeconds == 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 600
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment. A missing config
// file is not an error: defaults plus environment are enough to run.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			*dst = v
		}
	}

	setInt(&cfg.Server.Port, "PORT")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")

	setString(&cfg.Security.EncryptionKey, "CONTACT_DATA_ENCRYPTION_KEY")
	setString(&cfg.Security.HashPepper, "CONTACT_DATA_HASH_PEPPER")

	setString(&cfg.Delivery.Provider, "DELIVERY_PROVIDER")
	setString(&cfg.Delivery.APIKey, "RESEND_API_KEY")
	setString(&cfg.Delivery.BaseURL, "RESEND_BASE_URL")
	setString(&cfg.Delivery.FromEmail, "RESEND_FROM_EMAIL", "MAIL_FROM_EMAIL")

	setString(&cfg.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.SES.Region, "AWS_SES_REGION")

	setString(&cfg.Uploads.Type, "UPLOADS_STORAGE")
	setString(&cfg.Uploads.LocalDir, "UPLOADS_DIR")
	setString(&cfg.Uploads.S3Bucket, "UPLOADS_S3_BUCKET")
	setString(&cfg.Uploads.S3Region, "UPLOADS_S3_REGION")

	setString(&cfg.Auth.TenantID, "AUTH_AZURE_AD_TENANT_ID")
	setString(&cfg.Auth.ClientID, "AUTH_AZURE_AD_ID")
	setString(&cfg.Auth.ClientSecret, "AUTH_AZURE_AD_SECRET")
	setString(&cfg.Auth.PublicURL, "AUTH_PUBLIC_URL", "PUBLIC_URL")
	setString(&cfg.Auth.SessionSecret, "AUTH_SECRET", "SESSION_SECRET")
	setString(&cfg.Auth.LocalAdminUsername, "LOCAL_ADMIN_USERNAME")
	setString(&cfg.Auth.LocalAdminPassword, "LOCAL_ADMIN_PASSWORD")

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled, _ = strconv.ParseBool(v)
	}
	setInt(&cfg.Scheduler.IntervalSeconds, "SCHEDULER_INTERVAL_SECONDS")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
