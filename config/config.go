package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration, loaded from environment variables.
// Secrets (SMTP password, Groq key, Astra token) are never read anywhere else.
type Config struct {
	Host string
	Port string

	AllowedOrigins string

	Fetch   FetchConfig
	Tracker TrackerConfig
	SMTP    SMTPConfig
	Chat    ChatConfig

	// DatabaseURL enables the optional observation archive when set.
	DatabaseURL string
}

// FetchConfig controls outbound page fetching.
type FetchConfig struct {
	Timeout time.Duration
	// Mode selects the fetcher implementation: "http" (default) or "browser".
	Mode string
	// SiteBaseURL is used to resolve root-relative asset URLs.
	SiteBaseURL string
	// MinRequestGap throttles outbound requests across all tracker loops.
	MinRequestGap time.Duration
}

// TrackerConfig controls the polling loop.
type TrackerConfig struct {
	PollInterval time.Duration
}

// SMTPConfig holds the outbound mail account.
type SMTPConfig struct {
	Host     string
	Port     int
	Account  string
	Password string
}

// IsConfigured reports whether email notifications can be sent.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Account != "" && c.Password != ""
}

// ChatConfig holds the LLM and vector store settings.
type ChatConfig struct {
	GroqAPIKey string
	Model      string

	AstraEndpoint   string
	AstraToken      string
	AstraKeyspace   string
	AstraCollection string

	SessionTTL time.Duration
	MaxTurns   int
}

// RetrievalConfigured reports whether the vector store can be queried.
func (c ChatConfig) RetrievalConfigured() bool {
	return c.AstraEndpoint != "" && c.AstraToken != ""
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		Fetch: FetchConfig{
			Timeout:       getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
			Mode:          getEnv("FETCH_MODE", "http"),
			SiteBaseURL:   getEnv("SITE_BASE_URL", "https://www.amazon.in"),
			MinRequestGap: getEnvDuration("FETCH_MIN_GAP", 2*time.Second),
		},
		Tracker: TrackerConfig{
			PollInterval: getEnvDuration("POLL_INTERVAL", 43000*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Account:  os.Getenv("SMTP_ACCOUNT"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Chat: ChatConfig{
			GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
			Model:           getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			AstraEndpoint:   os.Getenv("ASTRA_DB_API_ENDPOINT"),
			AstraToken:      os.Getenv("ASTRA_DB_APPLICATION_TOKEN"),
			AstraKeyspace:   getEnv("ASTRA_DB_KEYSPACE", "default_keyspace"),
			AstraCollection: getEnv("ASTRA_DB_COLLECTION", "flipkart"),
			SessionTTL:      getEnvDuration("CHAT_SESSION_TTL", 30*time.Minute),
			MaxTurns:        getEnvInt("CHAT_MAX_TURNS", 20),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

// getEnv gets environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are treated as seconds (POLL_INTERVAL=43000).
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}
