package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Auth      AuthConfig      `mapstructure:"auth"`
	ImageHost ImageHostConfig `mapstructure:"imagehost"`
	Clamd     ClamdConfig     `mapstructure:"clamd"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
	// SessionIdleTTL is how long an unused editor session is kept in memory.
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	// PublicBaseURL prefixes share links returned to clients.
	PublicBaseURL string `mapstructure:"public_base_url"`
	// AllowedOrigins is a comma separated list of origins accepted by the websocket endpoint.
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins splits AllowedOrigins, dropping blanks.
func (a APIConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	// LogLevel is the gorm logger level: silent, error, warn or info.
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	PublicEndpoint  string `mapstructure:"public_endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	// BucketLookup is one of auto, dns, path.
	BucketLookup string `mapstructure:"bucket_lookup"`
	AutoCreate   bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig holds the RS256 key pair locations and token lifetimes.
type AuthConfig struct {
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	PublicKeyPath   string        `mapstructure:"public_key_path"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	// LoginAttempts is the number of login attempts allowed per IP within LoginWindow.
	LoginAttempts int           `mapstructure:"login_attempts"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
}

// ImageHost providers.
const (
	ImageHostMinIO      = "minio"
	ImageHostCloudinary = "cloudinary"
)

// ImageHostConfig selects where avatar uploads go.
type ImageHostConfig struct {
	Provider     string `mapstructure:"provider"`
	CloudName    string `mapstructure:"cloud_name"`
	UploadPreset string `mapstructure:"upload_preset"`
	// BaseURL overrides the Cloudinary API base, mostly for tests and proxies.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxBytes caps the accepted avatar file size.
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// ClamdConfig points at an optional clamd daemon used to scan uploads.
type ClamdConfig struct {
	Address string `mapstructure:"address"`
}

// Enabled reports whether scanning is configured.
func (c ClamdConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// WorkerConfig contains asynq worker settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// PrintTimeout bounds a single headless browser print.
	PrintTimeout time.Duration `mapstructure:"print_timeout"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.session_idle_ttl", 30*time.Minute)
	v.SetDefault("api.public_base_url", "http://localhost:5173")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cvportal")
	v.SetDefault("database.user", "cvportal")
	v.SetDefault("database.password", "cvportal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "cvs")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_attempts", 10)
	v.SetDefault("auth.login_window", time.Minute)
	v.SetDefault("imagehost.provider", ImageHostMinIO)
	v.SetDefault("imagehost.base_url", "https://api.cloudinary.com")
	v.SetDefault("imagehost.timeout", 30*time.Second)
	v.SetDefault("imagehost.max_bytes", 5<<20)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.print_timeout", 60*time.Second)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                 "API_PORT",
		"api.session_idle_ttl":     "API_SESSION_IDLE_TTL",
		"api.public_base_url":      "API_PUBLIC_BASE_URL",
		"api.allowed_origins":      "API_ALLOWED_ORIGINS",
		"database.host":            "DATABASE_HOST",
		"database.port":            "DATABASE_PORT",
		"database.name":            "POSTGRES_DB",
		"database.user":            "POSTGRES_USER",
		"database.password":        "POSTGRES_PASSWORD",
		"database.sslmode":         "DATABASE_SSLMODE",
		"database.log_level":       "DATABASE_LOG_LEVEL",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"minio.endpoint":           "MINIO_ENDPOINT",
		"minio.public_endpoint":    "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":      "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":  "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":            "MINIO_USE_SSL",
		"minio.bucket":             "MINIO_BUCKET",
		"minio.region":             "MINIO_REGION",
		"minio.bucket_lookup":      "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket": "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":    "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":     "JWT_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":    "JWT_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":   "JWT_REFRESH_TOKEN_TTL",
		"auth.login_attempts":      "AUTH_LOGIN_ATTEMPTS",
		"auth.login_window":        "AUTH_LOGIN_WINDOW",
		"imagehost.provider":       "IMAGEHOST_PROVIDER",
		"imagehost.cloud_name":     "CLOUDINARY_CLOUD_NAME",
		"imagehost.upload_preset":  "CLOUDINARY_UPLOAD_PRESET",
		"imagehost.base_url":       "CLOUDINARY_BASE_URL",
		"imagehost.timeout":        "IMAGEHOST_TIMEOUT",
		"imagehost.max_bytes":      "IMAGEHOST_MAX_BYTES",
		"clamd.address":            "CLAMD_ADDRESS",
		"worker.concurrency":       "WORKER_CONCURRENCY",
		"worker.print_timeout":     "WORKER_PRINT_TIMEOUT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	switch strings.ToLower(cfg.MinIO.BucketLookup) {
	case "", "auto", "dns", "path":
	default:
		return fmt.Errorf("minio bucket lookup %q is not one of auto, dns, path", cfg.MinIO.BucketLookup)
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	switch cfg.ImageHost.Provider {
	case ImageHostMinIO:
	case ImageHostCloudinary:
		if cfg.ImageHost.CloudName == "" || cfg.ImageHost.UploadPreset == "" {
			return errors.New("cloudinary cloud name and upload preset are required")
		}
	default:
		return fmt.Errorf("unknown image host provider %q", cfg.ImageHost.Provider)
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
