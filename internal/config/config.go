package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"

	UploadDisk = "disk"
	UploadS3   = "s3"
)

// Config is the resolved server configuration.
type Config struct {
	Env         string
	Port        string
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins string
	BodyLimitMB int

	// RateLimitPerMinute caps requests per client IP. Zero disables the limiter.
	RateLimitPerMinute int

	StoreDriver   string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string

	UploadDriver string
	UploadDir    string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string

	RabbitMQURL string

	CatalogBaseURL   string
	CatalogCacheTTL  time.Duration
	CatalogRateLimit float64
	RedisAddr        string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("JWT_TTL", "1h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT_MB", 5)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 300)

	v.SetDefault("STORE_DRIVER", StoreSQLite)
	v.SetDefault("DATABASE_DSN", "pokedex.db")
	v.SetDefault("MONGO_DATABASE", "pokedex")

	v.SetDefault("UPLOAD_DRIVER", UploadDisk)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("S3_REGION", "us-east-1")

	v.SetDefault("CATALOG_BASE_URL", "https://pokeapi.co/api/v2")
	v.SetDefault("CATALOG_CACHE_TTL", "10m")
	v.SetDefault("CATALOG_RATE_LIMIT", 10)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load resolves configuration from, in increasing priority: defaults, the optional file named by
// CONFIG_FILE, a .env file in the working directory, and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Env:         v.GetString("APP_ENV"),
		Port:        v.GetString("APP_PORT"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTTTL:      v.GetDuration("JWT_TTL"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		BodyLimitMB: v.GetInt("BODY_LIMIT_MB"),

		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),

		StoreDriver:   strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseDSN:   v.GetString("DATABASE_DSN"),
		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),

		UploadDriver: strings.ToLower(v.GetString("UPLOAD_DRIVER")),
		UploadDir:    v.GetString("UPLOAD_DIR"),
		S3Endpoint:   v.GetString("S3_ENDPOINT"),
		S3Region:     v.GetString("S3_REGION"),
		S3Bucket:     v.GetString("S3_BUCKET"),
		S3AccessKey:  v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:  v.GetString("S3_SECRET_KEY"),

		RabbitMQURL: v.GetString("RABBITMQ_URL"),

		CatalogBaseURL:   strings.TrimRight(v.GetString("CATALOG_BASE_URL"), "/"),
		CatalogCacheTTL:  v.GetDuration("CATALOG_CACHE_TTL"),
		CatalogRateLimit: v.GetFloat64("CATALOG_RATE_LIMIT"),
		RedisAddr:        v.GetString("REDIS_ADDR"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that prevents the server from starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.BodyLimitMB <= 0 {
		return fmt.Errorf("BODY_LIMIT_MB must be positive, got %d", c.BodyLimitMB)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}

	switch c.StoreDriver {
	case StoreSQLite, StorePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.UploadDriver {
	case UploadDisk:
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for UPLOAD_DRIVER=disk")
		}
	case UploadS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for UPLOAD_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_DRIVER %q", c.UploadDriver)
	}

	if c.CatalogBaseURL == "" {
		return errors.New("CATALOG_BASE_URL is required")
	}
	if c.CatalogRateLimit <= 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT must be positive, got %v", c.CatalogRateLimit)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
