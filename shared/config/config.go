package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	// Server
	ListenAddr     string
	AllowedOrigins []string

	// Storage
	DBPath    string
	ImagesDir string

	// Acquisition
	FetchTimeout time.Duration

	// Startup
	ReconcileOnStart bool

	// Logging
	LogLevel  zerolog.Level
	LogPretty bool
}

// Load reads an optional .env file and then builds the Config from the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)
	return New()
}

func New() *Config {
	return &Config{
		ListenAddr:     getEnv("CIEL_LISTEN_ADDR", "127.0.0.1:8765"),
		AllowedOrigins: getEnvAsSlice("CIEL_ALLOWED_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),

		DBPath:    getEnv("SQLITE_DB_PATH", "./ciel.db"),
		ImagesDir: getEnv("CIEL_IMAGES_DIR", "./images"),

		FetchTimeout: getEnvAsDuration("CIEL_FETCH_TIMEOUT", "30s"),

		ReconcileOnStart: getEnvAsBool("CIEL_RECONCILE_ON_START", false),

		LogLevel:  getEnvAsLevel("CIEL_LOG_LEVEL", zerolog.InfoLevel),
		LogPretty: getEnvAsBool("CIEL_LOG_PRETTY", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return 30 * time.Second
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvAsLevel(key string, defaultValue zerolog.Level) zerolog.Level {
	level, err := zerolog.ParseLevel(getEnv(key, ""))
	if err != nil || level == zerolog.NoLevel {
		return defaultValue
	}
	return level
}
