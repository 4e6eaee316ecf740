package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Kariro API server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Fetch     FetchConfig
	Limits    LimitsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// QueueConfig controls the work queue. Lease bounds how long a claimed task
// may run before a crashed consumer's claim is reclaimed; it must exceed the
// inference timeout or a slow provider call gets delivered twice.
type QueueConfig struct {
	Name        string
	Concurrency int
	Attempts    int
	Backoff     time.Duration
	Lease       time.Duration
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
	MaxChars int
}

// LimitsConfig holds the admission quotas. The pending cap is global per user
// across all job types; the artifact caps are per application.
type LimitsConfig struct {
	MaxPendingJobs    int
	MaxCoverLetters   int
	MaxInterviewPreps int
	MaxResumeGaps     int
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("KARIRO_PORT", 8080),
			Env:  envString("KARIRO_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDuration("AI_INFERENCE_TIMEOUT", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			},
		},
		Queue: QueueConfig{
			Name:        envString("QUEUE_NAME", "ai-jobs"),
			Concurrency: envInt("QUEUE_CONCURRENCY", 3),
			Attempts:    envInt("QUEUE_ATTEMPTS", 3),
			Backoff:     envDuration("QUEUE_BACKOFF", 5*time.Second),
			Lease:       envDuration("QUEUE_LEASE", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Window: envDuration("RATE_LIMIT_WINDOW", time.Minute),
			Max:    envInt("RATE_LIMIT_MAX", 5),
		},
		Fetch: FetchConfig{
			Timeout:  envDuration("FETCH_TIMEOUT", 10*time.Second),
			MaxBytes: int64(envInt("FETCH_MAX_BYTES", 1_000_000)),
			MaxChars: envInt("FETCH_MAX_CHARS", 50_000),
		},
		Limits: LimitsConfig{
			MaxPendingJobs:    envInt("MAX_PENDING_JOBS", 10),
			MaxCoverLetters:   envInt("MAX_COVER_LETTERS", 20),
			MaxInterviewPreps: envInt("MAX_INTERVIEW_PREPS", 10),
			MaxResumeGaps:     envInt("MAX_RESUME_GAPS", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, anthropic, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be at least 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.Attempts < 1 {
		return fmt.Errorf("QUEUE_ATTEMPTS must be at least 1, got %d", c.Queue.Attempts)
	}
	if c.Queue.Lease <= c.AI.InferenceTimeout {
		return fmt.Errorf("QUEUE_LEASE must exceed AI_INFERENCE_TIMEOUT (%s), got %s",
			c.AI.InferenceTimeout, c.Queue.Lease)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
