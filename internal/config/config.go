package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported lead store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Lead storage
	StoreBackend string
	DataFile     string
	SQLitePath   string
	DatabaseURL  string
	LeadsTable   string

	// AWS (DynamoDB backend, S3 archive, SES email)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Admin identity
	AdminEmail     string
	AdminPassword  string
	AdminJWTSecret string
	AdminTokenTTL  time.Duration

	CORSAllowedOrigins []string

	// Public submission throttling
	SubmitRatePerSecond float64
	SubmitRateBurst     int
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	SubmitMaxPerEmail   int
	SubmitWindow        time.Duration

	ArchiveBucket string

	// New-lead email notification
	EmailProvider    string
	NotifyEmail      string
	EmailFromAddress string
	EmailFromName    string
	SendGridAPIKey   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "4000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", BackendFile))),
		DataFile:     getEnv("DATA_FILE", "./data/leads.json"),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/crm.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		LeadsTable:   getEnv("LEADS_TABLE", "crm_leads"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminEmail:     getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "admin123"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", "dev_secret_change_me"),
		AdminTokenTTL:  getEnvAsDuration("ADMIN_TOKEN_TTL", 8*time.Hour),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		SubmitRatePerSecond: getEnvAsFloat("SUBMIT_RATE_PER_SECOND", 1),
		SubmitRateBurst:     getEnvAsInt("SUBMIT_RATE_BURST", 5),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		SubmitMaxPerEmail:   getEnvAsInt("SUBMIT_MAX_PER_EMAIL", 5),
		SubmitWindow:        getEnvAsDuration("SUBMIT_WINDOW", time.Hour),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		NotifyEmail:      getEnv("NOTIFY_EMAIL", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Lead CRM"),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
	}
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendSQLite, BackendMemory, BackendDynamoDB:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if strings.TrimSpace(c.AdminJWTSecret) == "" {
		return fmt.Errorf("config: ADMIN_JWT_SECRET is required")
	}
	switch c.EmailProvider {
	case "none", "ses", "sendgrid":
	default:
		return fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local development env.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
