package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	Bot struct {
		Token      string
		AdminID    int64
		WebhookURL string
		APITimeout time.Duration
	}

	DB struct {
		URL        string
		SQLitePath string
		Replicas   []string
	}

	HTTP struct {
		Port string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Session struct {
		Backend string
		TTL     time.Duration
	}

	GRPC struct {
		Enabled bool
		Host    string
		Port    string
	}

	Limits struct {
		DailyLikes     int
		MaxPhotos      int
		SearchResults  int
		TopResults     int
		BroadcastDelay time.Duration
	}

	Jobs struct {
		SummaryInterval  time.Duration
		ReminderInterval time.Duration
		CleanupInterval  time.Duration
	}
}

// Load reads an optional .env file, builds the config from the environment
// and validates required settings.
func Load() (*Config, error) {
	// .env is optional; real deployments inject env directly
	_ = godotenv.Load()

	cfg := New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "matchbot")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Bot
	cfg.Bot.Token = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if id, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("ADMIN_ID")), 10, 64); err == nil {
		cfg.Bot.AdminID = id
	}
	cfg.Bot.WebhookURL = strings.TrimSpace(os.Getenv("WEBHOOK_URL"))
	cfg.Bot.APITimeout = getDurationDefault("BOT_API_TIMEOUT", 10*time.Second)

	// Database
	cfg.DB.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.DB.SQLitePath = getEnvDefault("SQLITE_PATH", "matchbot.db")
	cfg.DB.Replicas = splitList(os.Getenv("DATABASE_REPLICA_URLS"))

	// HTTP
	cfg.HTTP.Port = getEnvDefault("PORT", "8080")

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// Sessions
	cfg.Session.Backend = strings.ToLower(getEnvDefault("SESSION_BACKEND", "memory"))
	cfg.Session.TTL = getDurationDefault("SESSION_TTL", 0)

	// gRPC health
	cfg.GRPC.Enabled = isTruthy(os.Getenv("GRPC_ENABLED"))
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Limits
	cfg.Limits.DailyLikes = getIntDefault("DAILY_LIKE_LIMIT", 50)
	cfg.Limits.MaxPhotos = getIntDefault("MAX_PHOTOS", 3)
	cfg.Limits.SearchResults = getIntDefault("SEARCH_RESULTS", 20)
	cfg.Limits.TopResults = getIntDefault("TOP_RESULTS", 10)
	cfg.Limits.BroadcastDelay = getDurationDefault("BROADCAST_DELAY", 100*time.Millisecond)

	// Background jobs, 0 disables
	cfg.Jobs.SummaryInterval = getDurationDefault("SUMMARY_INTERVAL", 0)
	cfg.Jobs.ReminderInterval = getDurationDefault("REMINDER_INTERVAL", 0)
	cfg.Jobs.CleanupInterval = getDurationDefault("CLEANUP_INTERVAL", 24*time.Hour)

	return cfg
}

// Validate reports missing or malformed required settings as a
// configuration error.
func (c *Config) Validate() error {
	var missing []string
	if c.Bot.Token == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.Bot.AdminID == 0 {
		missing = append(missing, "ADMIN_ID")
	}
	if len(missing) > 0 {
		return svcErr.Configuration(fmt.Sprintf("missing or invalid: %s", strings.Join(missing, ", ")))
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return svcErr.Configuration(fmt.Sprintf("unknown SESSION_BACKEND %q", c.Session.Backend))
	}
	if c.Limits.DailyLikes <= 0 || c.Limits.MaxPhotos <= 0 {
		return svcErr.Configuration("DAILY_LIKE_LIMIT and MAX_PHOTOS must be positive")
	}
	return nil
}

// UseWebhook reports whether updates arrive via webhook instead of long polling.
func (c *Config) UseWebhook() bool { return c.Bot.WebhookURL != "" }

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getIntDefault(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
