package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds settings for both the reference backend and the synchronizer client.
type Config struct {
	// Backend
	ServerHost  string
	ServerPort  string
	StoreDriver string // postgres or memory
	UploadDir   string
	ClientURL   string

	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	RabbitMQURL string

	// Comment images go to Cloudinary when all three credentials are set,
	// otherwise to UploadDir.
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	// Client
	APIBaseURL  string
	UserEmail   string
	HTTPTimeout time.Duration
	MarkerStore string // badger, redis or memory
	MarkerPath  string

	LogLevel string
	LogFile  string // optional; log lines are appended here as well as stderr
}

var defaults = map[string]interface{}{
	"SERVER_HOST":        "0.0.0.0",
	"SERVER_PORT":        "5000",
	"STORE_DRIVER":       "memory",
	"UPLOAD_DIR":         "uploads",
	"CLIENT_URL":         "http://localhost:3000",
	"POSTGRES_HOST":      "localhost",
	"POSTGRES_PORT":      "5432",
	"POSTGRES_USER":      "postgres",
	"POSTGRES_DB":        "forum",
	"POSTGRES_SSLMODE":   "disable",
	"REDIS_PORT":         "6379",
	"CLOUDINARY_FOLDER":  "forumsync/comments",
	"RATE_LIMIT_ENABLED": false,
	"RATE_LIMIT_RPS":     20,
	"RATE_LIMIT_BURST":   40,
	"API_BASE_URL":       "http://localhost:5000",
	"HTTP_TIMEOUT":       "15s",
	"MARKER_STORE":       "badger",
	"MARKER_PATH":        ".forumsync/markers",
	"LOG_LEVEL":          "info",
}

// Load reads an optional .env file and then the process environment.
// Environment variables win over .env values; unset keys fall back to defaults.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		ServerHost:  v.GetString("SERVER_HOST"),
		ServerPort:  v.GetString("SERVER_PORT"),
		StoreDriver: v.GetString("STORE_DRIVER"),
		UploadDir:   v.GetString("UPLOAD_DIR"),
		ClientURL:   v.GetString("CLIENT_URL"),

		DatabaseURL:      v.GetString("DATABASE_URL"),
		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		RabbitMQURL: v.GetString("RABBITMQ_URL"),

		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    v.GetString("CLOUDINARY_FOLDER"),

		RateLimitEnabled: v.GetBool("RATE_LIMIT_ENABLED"),
		RateLimitRPS:     v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),

		APIBaseURL:  v.GetString("API_BASE_URL"),
		UserEmail:   v.GetString("USER_EMAIL"),
		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),
		MarkerStore: v.GetString("MARKER_STORE"),
		MarkerPath:  v.GetString("MARKER_PATH"),

		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
	}

	if cfg.StoreDriver != "memory" && cfg.StoreDriver != "postgres" {
		return nil, errors.New("STORE_DRIVER must be memory or postgres")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("HTTP_TIMEOUT must be positive")
	}

	return cfg, nil
}

// RedisEnabled reports whether a redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// CloudinaryEnabled reports whether every Cloudinary credential is configured.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
