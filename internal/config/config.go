// Package config provides centralized configuration for the leadsniper server.
// Values come from environment variables (optionally seeded from a .env file)
// with sensible defaults, and a few domain settings may be overlaid from a YAML
// file named by LEADSNIPER_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// Env is the deployment environment; "development" selects text logs.
	Env string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// StoreBackend selects the keyed store: "memory", "sqlite" or "redis".
	StoreBackend string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// RedisURL is the redis:// URL used by the redis backend.
	RedisURL string

	// LLMProvider selects which LLM backend to use: "openai", "claude", "gemini", "ollama".
	LLMProvider string

	// OpenAIKey is the API key for the OpenAI-compatible service.
	OpenAIKey string

	// OpenAIBaseURL is the base URL of the OpenAI-compatible API.
	OpenAIBaseURL string

	// OpenAIModel is the model identifier for OpenAI completions.
	OpenAIModel string

	// AnthropicKey is the API key for the Anthropic Messages API.
	AnthropicKey string

	// ClaudeModel is the model identifier for Claude completions.
	ClaudeModel string

	// GeminiKey is the API key for the Google Gemini service.
	GeminiKey string

	// GeminiModel is the model identifier for Gemini completions.
	GeminiModel string

	// OllamaURL is the base URL for the local Ollama server.
	OllamaURL string

	// OllamaModel is the model identifier for Ollama completions.
	OllamaModel string

	// HTTPTimeout is the timeout for outgoing HTTP requests (URL fetch, LLM).
	HTTPTimeout time.Duration

	// PayBaseURL is the payment front end that payment URLs point at.
	PayBaseURL string

	// AssetPrice is the default price of a protected asset.
	AssetPrice float64

	// AssetCurrency is the currency of AssetPrice.
	AssetCurrency string

	// TokenTTL expires access tokens; zero means they never expire.
	TokenTTL time.Duration

	// ApprovalThreshold is the buyability score at which a lead is protected.
	ApprovalThreshold float64

	// IntentKeywords replaces the validator's buying-intent keywords when set.
	IntentKeywords []string

	// BatchConcurrency bounds how many leads of a batch are processed at once.
	BatchConcurrency int

	// RateLimitPerMin is the per-client request budget for processing and unlock routes.
	RateLimitPerMin int

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// overlay is the YAML file schema. Only domain tuning lives here; secrets stay in the environment.
type overlay struct {
	IntentKeywords    []string `yaml:"intent_keywords"`
	ApprovalThreshold *float64 `yaml:"approval_threshold"`
	AssetPrice        *float64 `yaml:"asset_price"`
	Currency          string   `yaml:"currency"`
	PayBaseURL        string   `yaml:"pay_base_url"`
}

// Load reads .env, the environment and the optional YAML overlay, applying defaults.
// Environment variables take precedence over the overlay.
func Load() (Config, error) {
	loadEnvFile(".env")

	cfg := Config{
		Port:              envOr("PORT", "8000"),
		Env:               envOr("ENV", "development"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		StoreBackend:      envOr("STORE_BACKEND", "memory"),
		DBPath:            envOr("DB_PATH", "leadsniper.db"),
		RedisURL:          envOr("REDIS_URL", "redis://localhost:6379/0"),
		LLMProvider:       envOr("LLM_PROVIDER", "openai"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       envOr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:       envOr("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaURL:         envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       envOr("OLLAMA_MODEL", "llama3"),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", 60*time.Second),
		PayBaseURL:        envOr("PAY_BASE_URL", "https://app.nevermined.io"),
		AssetPrice:        envFloat("ASSET_PRICE", 0.01),
		AssetCurrency:     envOr("ASSET_CURRENCY", "ETH"),
		TokenTTL:          envDuration("TOKEN_TTL", 0),
		ApprovalThreshold: envFloat("APPROVAL_THRESHOLD", 80),
		BatchConcurrency:  envInt("BATCH_CONCURRENCY", 4),
		RateLimitPerMin:   envInt("RATE_LIMIT_PER_MIN", 60),
		CORSOrigin:        envOr("CORS_ORIGIN", "*"),
	}

	if path := os.Getenv("LEADSNIPER_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(o.IntentKeywords) > 0 {
		c.IntentKeywords = o.IntentKeywords
	}
	if o.ApprovalThreshold != nil && os.Getenv("APPROVAL_THRESHOLD") == "" {
		c.ApprovalThreshold = *o.ApprovalThreshold
	}
	if o.AssetPrice != nil && os.Getenv("ASSET_PRICE") == "" {
		c.AssetPrice = *o.AssetPrice
	}
	if o.Currency != "" && os.Getenv("ASSET_CURRENCY") == "" {
		c.AssetCurrency = o.Currency
	}
	if o.PayBaseURL != "" && os.Getenv("PAY_BASE_URL") == "" {
		c.PayBaseURL = o.PayBaseURL
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.LLMProvider {
	case "openai", "claude", "gemini", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.ApprovalThreshold <= 0 || c.ApprovalThreshold > 100 {
		errs = append(errs, fmt.Errorf("APPROVAL_THRESHOLD must be in (0, 100], got %g", c.ApprovalThreshold))
	}
	if c.AssetPrice <= 0 {
		errs = append(errs, fmt.Errorf("ASSET_PRICE must be positive, got %g", c.AssetPrice))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("TOKEN_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

// loadEnvFile sets variables from path that are not already in the environment.
// A missing file is ignored.
func loadEnvFile(path string) {
	_ = godotenv.Load(path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
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

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
