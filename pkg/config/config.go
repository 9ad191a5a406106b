package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Mail       MailConfig
	MagicLink  MagicLinkConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	Env           string
	PublicBaseURL string
}

type StoreConfig struct {
	Driver string // memory, postgres or mongo
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Migrate      bool
	MaxOpenConns int
	MaxIdleConns int
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret string
	// Expiry uses the compact TTL format: 7d, 12h, 30m, 45s, or bare milliseconds.
	Expiry string
}

type EncryptionConfig struct {
	// QueueKey is an age identity used to seal task payloads. Empty disables sealing.
	QueueKey string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MailConfig struct {
	Driver    string // log or ses
	From      string
	AWSRegion string
}

type MagicLinkConfig struct {
	PurgeCron      string
	RetentionHours int
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	MailLog = "log"
	MailSES = "ses"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (m *MagicLinkConfig) Retention() time.Duration {
	return time.Duration(m.RetentionHours) * time.Hour
}

func (r *RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Validate reports configuration that would make the service unsafe or
// unable to start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}

	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Mail.Driver {
	case MailLog:
	case MailSES:
		if c.Mail.From == "" {
			return errors.New("MAIL_FROM is required for the ses mail driver")
		}
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver)
	}

	if err := util.ValidateCronExpr(c.MagicLink.PurgeCron); err != nil {
		return fmt.Errorf("MAGIC_LINK_PURGE_CRON: %w", err)
	}

	return nil
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "magiclink")
	v.SetDefault("DATABASE_PASSWORD", "magiclink_secret")
	v.SetDefault("DATABASE_NAME", "magiclink")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MIGRATE", true)
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 100)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MONGODB_DATABASE", "magiclink")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY", "7d")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")
	v.SetDefault("MAIL_DRIVER", MailLog)
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("QUEUE_ENCRYPTION_KEY", "")
	v.SetDefault("MAGIC_LINK_PURGE_CRON", "0 3 * * *")
	v.SetDefault("MAGIC_LINK_RETENTION_HOURS", 168)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:          v.GetString("SERVER_HOST"),
			Port:          v.GetInt("SERVER_PORT"),
			Env:           v.GetString("SERVER_ENV"),
			PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DATABASE_HOST"),
			Port:         v.GetInt("DATABASE_PORT"),
			User:         v.GetString("DATABASE_USER"),
			Password:     v.GetString("DATABASE_PASSWORD"),
			Name:         v.GetString("DATABASE_NAME"),
			SSLMode:      v.GetString("DATABASE_SSLMODE"),
			Migrate:      v.GetBool("DATABASE_MIGRATE"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DATABASE_MAX_IDLE_CONNS"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: v.GetString("JWT_EXPIRY"),
		},
		Encryption: EncryptionConfig{
			QueueKey: v.GetString("QUEUE_ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Mail: MailConfig{
			Driver:    strings.ToLower(v.GetString("MAIL_DRIVER")),
			From:      v.GetString("MAIL_FROM"),
			AWSRegion: v.GetString("AWS_REGION"),
		},
		MagicLink: MagicLinkConfig{
			PurgeCron:      strings.TrimSpace(v.GetString("MAGIC_LINK_PURGE_CRON")),
			RetentionHours: v.GetInt("MAGIC_LINK_RETENTION_HOURS"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
