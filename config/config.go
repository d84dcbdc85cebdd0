package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the actuator agent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool
	Debug            bool

	SQLitePath       string
	ChromaDir        string
	ChromaCollection string

	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int64

	OpenAIAPIKey        string
	OpenAIBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int

	MaxRounds        int
	DeciderTimeout   time.Duration
	ToolTimeout      time.Duration
	MaxTurns         int
	MaxConversations int
}

// Load reads environment variables and applies safe defaults. A .env file in
// the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "actuator_agent"),
		SQLitePath:       envOrDefault("SQLITE_DB_PATH", "data/processed/actuators.db"),
		ChromaDir:        envOrDefault("CHROMA_PERSIST_DIR", "data/processed/chroma"),
		ChromaCollection: envOrDefault("CHROMA_COLLECTION", "actuators"),
		AnthropicAPIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicModel:   envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		MaxTokens:        4096,
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		EmbeddingModel:   envOrDefault("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),

		EmbeddingDimensions: 1536,
		MaxRounds:           3,
		DeciderTimeout:      60 * time.Second,
		ToolTimeout:         10 * time.Second,
		MaxTurns:            10,
		MaxConversations:    1024,
		ShutdownTimeout:     15 * time.Second,
	}

	var err error
	cfg.Debug, err = boolFromEnv("APP_DEBUG", cfg.Debug)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = int64FromEnv("ANTHROPIC_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDimensions, err = intFromEnv("OPENAI_EMBEDDING_DIMENSIONS", cfg.EmbeddingDimensions)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRounds, err = intFromEnv("AGENT_MAX_ROUNDS", cfg.MaxRounds)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTurns, err = intFromEnv("AGENT_MAX_HISTORY_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxConversations, err = intFromEnv("AGENT_MAX_CONVERSATIONS", cfg.MaxConversations)
	if err != nil {
		return Config{}, err
	}
	cfg.DeciderTimeout, err = durationFromEnv("AGENT_DECIDER_TIMEOUT", cfg.DeciderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("AGENT_TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxRounds <= 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_ROUNDS must be positive")
	}
	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_HISTORY_TURNS must be positive")
	}
	if cfg.MaxConversations <= 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_CONVERSATIONS must be positive")
	}
	if cfg.EmbeddingDimensions <= 0 {
		return Config{}, fmt.Errorf("OPENAI_EMBEDDING_DIMENSIONS must be positive")
	}
	if cfg.DeciderTimeout < time.Second {
		return Config{}, fmt.Errorf("AGENT_DECIDER_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
