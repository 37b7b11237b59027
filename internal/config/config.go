package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI and the HTTP server read from the environment.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	FrontQL   FrontQLConfig   `yaml:"frontql"`
	Upload    UploadConfig    `yaml:"upload"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Guide     GuideConfig     `yaml:"guide"`
	App       AppConfig       `yaml:"app"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	StaticDir       string        `yaml:"static_dir"`
	AdminAPIKey     string        `yaml:"admin_api_key"`
	AdminSessionTTL time.Duration `yaml:"admin_session_ttl"`
}

// FrontQLConfig points at the hosted backend that owns artifacts and users.
type FrontQLConfig struct {
	BaseURL             string `yaml:"base_url"`
	Token               string `yaml:"token"`
	App                 string `yaml:"app"`
	CollectionsResource string `yaml:"collections_resource"`
	UsersResource       string `yaml:"users_resource"`
}

type UploadConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	ImageBaseURL string `yaml:"image_base_url"`
}

type CatalogueConfig struct {
	PageSize     int           `yaml:"page_size"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries"`
	RefreshCron  string        `yaml:"refresh_cron"`
	SnapshotPath string        `yaml:"snapshot_path"`
}

type GuideConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	RatePerMinute int     `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

type AppConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads .env (if present), the environment, and an optional YAML overlay.
// Values in the overlay win over the environment; overrides, typically
// command-line flags, win over both and run before validation.
func Load(overlayPath string, overrides ...func(*Config)) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8888"),
			StaticDir:       getEnv("STATIC_DIR", "static"),
			AdminAPIKey:     getEnv("ADMIN_API_KEY", ""),
			AdminSessionTTL: getEnvAsDuration("ADMIN_SESSION_TTL", 12*time.Hour),
		},
		FrontQL: FrontQLConfig{
			BaseURL:             getEnv("FRONTQL_URL", ""),
			Token:               getEnv("FRONTQL_TOKEN", ""),
			App:                 getEnv("FRONTQL_APP", "artifex"),
			CollectionsResource: getEnv("FRONTQL_COLLECTIONS", "artifex-collections"),
			UsersResource:       getEnv("FRONTQL_USERS", "artifex-users"),
		},
		Upload: UploadConfig{
			URL:          getEnv("FILE_UPLOAD_URL", ""),
			Username:     getEnv("FILE_UPLOAD_ID", ""),
			Password:     getEnv("FILE_UPLOAD_PASS", ""),
			ImageBaseURL: getEnv("IMAGE_BASE_URL", ""),
		},
		Catalogue: CatalogueConfig{
			PageSize:     getEnvAsInt("CATALOGUE_PAGE_SIZE", 1000),
			FetchTimeout: getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
			FetchRetries: getEnvAsInt("FETCH_RETRIES", 1),
			RefreshCron:  getEnv("CATALOGUE_REFRESH_CRON", ""),
			SnapshotPath: getEnv("CATALOGUE_SNAPSHOT", ""),
		},
		Guide: GuideConfig{
			Provider:      getEnv("GUIDE_PROVIDER", "ollama"),
			Model:         getEnv("GUIDE_MODEL", ""),
			Temperature:   getEnvAsFloat("GUIDE_TEMPERATURE", 0.3),
			RatePerMinute: getEnvAsInt("GUIDE_RATE_PER_MINUTE", 30),
			Burst:         getEnvAsInt("GUIDE_BURST", 5),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
	}

	if overlayPath != "" {
		if err := cfg.applyOverlay(overlayPath); err != nil {
			return nil, err
		}
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings that every command depends on.
// A catalogue source is required: either the remote backend or a snapshot file.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.FrontQL.BaseURL == "" && c.Catalogue.SnapshotPath == "" {
		return fmt.Errorf("FRONTQL_URL or CATALOGUE_SNAPSHOT is required")
	}
	if c.Catalogue.PageSize <= 0 {
		return fmt.Errorf("CATALOGUE_PAGE_SIZE must be positive, got %d", c.Catalogue.PageSize)
	}
	if c.Catalogue.FetchRetries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.App.LogLevel)
}

func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}
