package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabaseURL    string
	DatabasePath   string
	MigrationsPath string

	// Operator auth
	JWTSecret         string
	TokenDuration     time.Duration
	BootstrapEmail    string
	BootstrapPassword string

	// Report email (Amazon SES)
	AWSRegion        string
	SESFromEmail     string
	SESFromName      string
	ReportRecipients []string

	// Reading program
	Timezone            string
	CompletionThreshold int    // minutes a session must last to count as completed
	ActiveStartDate     string // MM-DD on which TEACHER_SELECTION rolls into ACTIVE
	RepairConcurrency   int

	Debug bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   getEnv("DB_TYPE", "sqlite"),
		DatabaseURL:    getEnv("DB_URL", ""),
		DatabasePath:   getEnv("DB_PATH", "./readquest.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenDuration:     getEnvDuration("TOKEN_DURATION", 12*time.Hour),
		BootstrapEmail:    getEnv("BOOTSTRAP_OPERATOR_EMAIL", ""),
		BootstrapPassword: getEnv("BOOTSTRAP_OPERATOR_PASSWORD", ""),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:     getEnv("SES_FROM_EMAIL", ""),
		SESFromName:      getEnv("SES_FROM_NAME", "ReadQuest Admin"),
		ReportRecipients: getEnvList("REPORT_RECIPIENTS"),

		Timezone:            getEnv("PROGRAM_TIMEZONE", "America/Chicago"),
		CompletionThreshold: getEnvInt("COMPLETION_THRESHOLD_MINUTES", 20),
		ActiveStartDate:     getEnv("ACTIVE_START_DATE", "09-01"),
		RepairConcurrency:   getEnvInt("REPAIR_CONCURRENCY", 8),

		Debug: getEnv("DEBUG", "") == "true",
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList reads a comma-separated environment variable
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
