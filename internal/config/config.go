package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is accepted so a fresh checkout runs, but the server
// warns loudly when it is in use.
const DefaultJWTSecret = "your-secret-key-change-this-in-production"

type Config struct {
	// HTTP Server
	Port            string
	CORSOrigins     []string
	AuthRateLimit   int // requests per minute per client on /api/auth/*
	ShutdownTimeout time.Duration

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// MongoDB
	MongoURL string
	DBName   string

	// Tokens
	JWTSecret string
	TokenTTL  time.Duration

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string

	// Dev token shortcut
	DevTokenEndpoint bool
	DevUserEmail     string
	DevUserName      string
	DevUserPassword  string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		CORSOrigins:     ParseOrigins(os.Getenv("CORS_ORIGINS")),
		AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 30),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendwise.db"),
		MongoURL:     getEnv("MONGO_URL", "mongodb://localhost:27017"),
		DBName:       getEnv("DB_NAME", "expense_tracker_db"),

		JWTSecret: getEnv("JWT_SECRET_KEY", DefaultJWTSecret),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "spendwise_events"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DevTokenEndpoint: getEnvBool("DEV_TOKEN_ENDPOINT"),
		DevUserEmail:     getEnv("DEV_USER_EMAIL", "dev@example.com"),
		DevUserName:      getEnv("DEV_USER_NAME", "devuser"),
		DevUserPassword:  getEnv("DEV_USER_PASSWORD", "password123"),
	}

	return cfg
}

// ParseOrigins splits a comma-separated CORS allow-list, trimming
// whitespace and surrounding quotes. An empty list means "*".
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.Trim(strings.TrimSpace(o), `"'`)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// UsesDefaultSecret reports whether tokens are signed with the built-in key.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "mongo":
		if parsed, err := url.Parse(c.MongoURL); err != nil || (parsed.Scheme != "mongodb" && parsed.Scheme != "mongodb+srv") {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URL '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURL))
		}
		if c.DBName == "" {
			errors = append(errors, "database name cannot be empty when using mongo backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite mongo]", c.DataBackend))
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT secret key cannot be empty")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AuthRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid auth rate limit %d: must be at least 1 request per minute", c.AuthRateLimit))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.DevTokenEndpoint && (c.DevUserEmail == "" || c.DevUserPassword == "") {
		errors = append(errors, "DEV_USER_EMAIL and DEV_USER_PASSWORD are required when DEV_TOKEN_ENDPOINT is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool treats 1, true and yes (any case) as enabled.
func getEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
