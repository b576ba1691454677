package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Chat     ChatConfig
	Events   EventsConfig
	Tickets  TicketsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/events?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing settings for the admin API. AdminPassword is
// accepted plain for local setups; AdminPasswordHash (bcrypt) wins when set.
type JWTConfig struct {
	Secret            string
	ExpireHours       int
	AdminUser         string
	AdminPassword     string
	AdminPasswordHash string
}

// AWSConfig holds AWS credentials and the transcripts bucket. Empty region
// disables transcript archival.
type AWSConfig struct {
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	TranscriptsBucket string
}

// ChatConfig holds the chat gateway the core talks through.
type ChatConfig struct {
	GatewayURL   string
	GatewayToken string
	Timeout      time.Duration
}

// EventsConfig holds signup event settings.
type EventsConfig struct {
	// ReminderWindow is the lead time before an event at which the
	// reminder is sent; clamped to the time remaining when shorter.
	ReminderWindow time.Duration
	// ReconcileInterval is how often open scheduled events are re-scanned
	// to re-arm reminders lost from memory.
	ReconcileInterval time.Duration
}

// TicketsConfig holds support ticket settings.
type TicketsConfig struct {
	Category   string
	AdminRole  string
	GraceDelay time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5000"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "events"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			ExpireHours:       jwtExpire,
			AdminUser:         getEnv("ADMIN_USER", "admin"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		AWS: AWSConfig{
			Region:            os.Getenv("AWS_REGION"),
			AccessKeyID:       os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
			TranscriptsBucket: getEnv("TRANSCRIPTS_BUCKET", "ticket-transcripts"),
		},
		Chat: ChatConfig{
			GatewayURL:   getEnv("CHAT_GATEWAY_URL", "http://localhost:8081"),
			GatewayToken: os.Getenv("CHAT_GATEWAY_TOKEN"),
			Timeout:      getDuration("CHAT_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			ReminderWindow:    getDuration("REMINDER_WINDOW", 15*time.Minute),
			ReconcileInterval: getDuration("RECONCILE_INTERVAL", 10*time.Minute),
		},
		Tickets: TicketsConfig{
			Category:   getEnv("TICKETS_CATEGORY_NAME", "TICKETY"),
			AdminRole:  getEnv("TICKETS_ADMIN_ROLE", "Moderator"),
			GraceDelay: getDuration("TICKET_CLOSE_GRACE", 5*time.Second),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
