package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Availability policy modes. See internal/availability.
const (
	AvailabilityAlwaysOn = "always_on"
	AvailabilityWindowed = "windowed"
)

// Responder weighting table modes. See internal/selector.
const (
	ResponderTableDual  = "dual"
	ResponderTableMulti = "multi"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// Document store: "sqlite" or "file"
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite"`
	StorePath    string `envconfig:"STORE_PATH" default:"crewmate.db"`

	// Text-completion providers (at least one required for generation)
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Turn-taking behavior
	AvailabilityPolicy string        `envconfig:"AVAILABILITY_POLICY" default:"always_on"`
	ResponderTable     string        `envconfig:"RESPONDER_TABLE" default:"dual"`
	TurnDelay          time.Duration `envconfig:"TURN_DELAY" default:"500ms"`
	ReplyWordCap       int           `envconfig:"REPLY_WORD_CAP" default:"30"`

	// Persona catalog override (YAML). Empty = built-in catalog.
	PersonaCatalogPath string `envconfig:"PERSONA_CATALOG_PATH"`

	// Auth
	AuthMode      string `envconfig:"AUTH_MODE" default:"dev"` // "jwt", "dev", "none"
	AuthJWTSecret string `envconfig:"AUTH_JWT_SECRET"`

	// API hardening
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`
}

// OpenAIEnabled returns true if an OpenAI key is configured.
func (c *Config) OpenAIEnabled() bool { return c.OpenAIAPIKey != "" }

// GeminiEnabled returns true if a Gemini key is configured.
func (c *Config) GeminiEnabled() bool { return c.GeminiAPIKey != "" }

// GenerationEnabled returns true if at least one provider is configured.
func (c *Config) GenerationEnabled() bool { return c.OpenAIEnabled() || c.GeminiEnabled() }

// Validate checks enum-valued fields.
func (c *Config) Validate() error {
	switch c.AvailabilityPolicy {
	case AvailabilityAlwaysOn, AvailabilityWindowed:
	default:
		return fmt.Errorf("invalid AVAILABILITY_POLICY %q, expected %q or %q",
			c.AvailabilityPolicy, AvailabilityAlwaysOn, AvailabilityWindowed)
	}
	switch c.ResponderTable {
	case ResponderTableDual, ResponderTableMulti:
	default:
		return fmt.Errorf("invalid RESPONDER_TABLE %q, expected %q or %q",
			c.ResponderTable, ResponderTableDual, ResponderTableMulti)
	}
	switch strings.ToLower(c.StoreBackend) {
	case "sqlite", "file":
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q, expected \"sqlite\" or \"file\"", c.StoreBackend)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
