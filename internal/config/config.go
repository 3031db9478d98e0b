package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings. It is built once at startup and passed
// into the components that need it.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Auth      AuthConfig      `yaml:"auth"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	Mode        string `yaml:"mode"`
	UploadsDir  string `yaml:"uploads_dir"`
	LogDir      string `yaml:"log_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	CORSOrigin  string `yaml:"cors_origin"`
}

// DatabaseConfig holds database connection parameters
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type JWTConfig struct {
	Secret          string `yaml:"secret"`
	ExpirationHours int64  `yaml:"expiration_hours"`
}

type AuthConfig struct {
	// InitialAdminUsername is registered with the admin role on signup.
	InitialAdminUsername string `yaml:"initial_admin_username"`
}

type AnalysisConfig struct {
	// FraudThreshold is the fraud_risk above which a row counts as fraud in /stats.
	// Nil means unset; zero is a valid setting.
	FraudThreshold *float64 `yaml:"fraud_threshold"`
}

type RateLimitConfig struct {
	UploadsPerMinute int `yaml:"uploads_per_minute"`
	UploadBurst      int `yaml:"upload_burst"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Load reads the optional YAML file at path, applies environment overrides
// and defaults, and validates required settings.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment only
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	setString(&c.Server.Port, "SERVER_PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setString(&c.Server.UploadsDir, "UPLOADS_DIR")
	setString(&c.Server.LogDir, "LOG_DIR")
	setInt64(&c.Server.MaxUploadMB, "MAX_UPLOAD_MB")
	setString(&c.Server.CORSOrigin, "CORS_ALLOWED_ORIGIN")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.JWT.Secret, "JWT_SECRET_KEY")
	setInt64(&c.JWT.ExpirationHours, "JWT_EXPIRATION_HOURS")

	setString(&c.Auth.InitialAdminUsername, "INITIAL_ADMIN_USERNAME")

	if v := os.Getenv("FRAUD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Analysis.FraudThreshold = &f
		}
	}

	if v := os.Getenv("UPLOAD_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.UploadsPerMinute = n
		}
	}
	if v := os.Getenv("UPLOAD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.UploadBurst = n
		}
	}

	setString(&c.Redis.URL, "REDIS_URL")
	if v := os.Getenv("STATS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Redis.StatsTTL = d
		}
	}

	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.S3.Prefix, "S3_PREFIX")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.UploadsDir == "" {
		c.Server.UploadsDir = "uploads"
	}
	if c.Server.LogDir == "" {
		c.Server.LogDir = "logs"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 10
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.ExpirationHours <= 0 {
		c.JWT.ExpirationHours = 6
	}
	if c.Analysis.FraudThreshold == nil {
		threshold := 0.5
		c.Analysis.FraudThreshold = &threshold
	}
	if c.RateLimit.UploadsPerMinute <= 0 {
		c.RateLimit.UploadsPerMinute = 10
	}
	if c.RateLimit.UploadBurst <= 0 {
		c.RateLimit.UploadBurst = 5
	}
	if c.Redis.StatsTTL <= 0 {
		c.Redis.StatsTTL = 30 * time.Second
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.S3.Prefix == "" {
		c.S3.Prefix = "uploads"
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.Database.Port == "" {
			missing = append(missing, "DB_PORT")
		}
		if c.Database.User == "" {
			missing = append(missing, "DB_USER")
		}
		if c.Database.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required settings are not set: %s", strings.Join(missing, ", "))
	}
	if t := *c.Analysis.FraudThreshold; t < 0 || t > 1 {
		return fmt.Errorf("fraud_threshold must be between 0 and 1, got %v", t)
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB * 1024 * 1024
}

// FraudThreshold returns the configured fraud threshold. Load always sets it.
func (c *Config) FraudThreshold() float64 {
	return *c.Analysis.FraudThreshold
}

// TokenTTL returns the lifetime of issued tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpirationHours) * time.Hour
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
