// Package config provides configuration management for the koreksi grammar
// service. It covers the HTTP server, the model provider, persistence, API key
// authentication and the runtime guards (rate limit, queue, circuit breaker).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Logging        LoggingConfig        `yaml:"logging"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Queue          QueueConfig          `yaml:"queue"`
	Routes         []RouteConfig        `yaml:"routes"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Model calls are slow, so the
	// default leaves room for one full generation (default: 60s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies (default: 64KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// AllowedOrigins feeds the CORS middleware. Empty means "*".
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig holds the model provider settings. Generation parameters are
// fixed per deployment, not per request.
type LLMConfig struct {
	// Provider is one of gemini, openai, anthropic, ollama
	Provider string `yaml:"provider"`

	// Model is the provider model name (default: gemini-2.0-flash)
	Model string `yaml:"model"`

	// APIKey authenticates against the provider.
	// Use ${GEMINI_API_KEY} style references instead of literal keys.
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the provider base URL (ollama)
	Endpoint string `yaml:"endpoint"`

	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// DatabaseConfig selects the history and user store.
type DatabaseConfig struct {
	// Driver is memory, postgres or sqlite
	Driver string `yaml:"driver"`

	// DSN is the connection string for postgres, or the file path for sqlite
	DSN string `yaml:"dsn"`

	// HistoryTTL is how long saved checks are kept (default: 720h)
	HistoryTTL time.Duration `yaml:"history_ttl"`

	// SweepInterval is how often expired history is deleted. 0 disables the sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	MaxOpenConns int `yaml:"max_open_conns"`
}

// Identity is the profile an API key signs in as.
type Identity struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

// AuthConfig maps API keys to identities.
type AuthConfig struct {
	Keys map[string]Identity `yaml:"keys"`

	// CacheSize bounds the resolved-user cache (default: 1024)
	CacheSize int `yaml:"cache_size"`
}

// RateLimitConfig is applied per signed-in user.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// QueueConfig bounds the number of grammar checks in flight.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// MaxSize is the number of checks allowed in flight at once
	MaxSize int64 `yaml:"max_size"`
}

// RouteConfig holds route-specific configuration.
type RouteConfig struct {
	// Path is the URL path to match
	Path string `yaml:"path"`

	// Handler names a registered handler: check, history, me, health, metrics
	Handler string `yaml:"handler"`

	// Version, when set, mounts the route under /<version><path>
	Version string `yaml:"version"`

	// Methods specifies the allowed HTTP methods for this route
	Methods []string `yaml:"methods"`

	// Middleware specifies the route-specific middleware: auth, ratelimit, queue
	Middleware []string `yaml:"middleware,omitempty"`
}

// DefaultConfig returns a configuration that runs out of the box against
// Gemini with an in-memory store.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    64 << 10,
		},

		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-2.0-flash",
			Temperature:     0.3,
			MaxOutputTokens: 1000,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Database: DatabaseConfig{
			Driver:        "memory",
			HistoryTTL:    30 * 24 * time.Hour,
			SweepInterval: time.Hour,
			MaxOpenConns:  10,
		},

		Auth: AuthConfig{
			Keys:      map[string]Identity{},
			CacheSize: 1024,
		},

		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             5,
		},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},

		Queue: QueueConfig{
			Enabled: true,
			MaxSize: 64,
		},

		Routes: []RouteConfig{
			{
				Path:       "/api/check-grammar",
				Handler:    "check",
				Methods:    []string{"POST"},
				Middleware: []string{"auth", "ratelimit", "queue"},
			},
			{
				Path:       "/api/history",
				Handler:    "history",
				Methods:    []string{"GET", "POST", "DELETE"},
				Middleware: []string{"auth"},
			},
			{
				Path:       "/api/me",
				Handler:    "me",
				Methods:    []string{"GET"},
				Middleware: []string{"auth"},
			},
			{
				Path:    "/health",
				Handler: "health",
				Methods: []string{"GET"},
			},
			{
				Path:    "/metrics",
				Handler: "metrics",
				Methods: []string{"GET"},
			},
		},
	}
}

// LoadFile loads configuration from a YAML file. A .env file next to it is
// loaded first; variables already set in the environment win.
func LoadFile(filename string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(filename), ".env")); err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
// An unset variable without a default expands to "".
//
// Examples:
//   - "${DB_HOST}" -> "localhost"
//   - "${PORT:-8080}" -> "8080" (if PORT is unset or empty)
func expandEnvVars(s string) (string, error) {
	if open := strings.Count(s, "${"); open > strings.Count(s, "}") {
		return "", fmt.Errorf("invalid syntax: unterminated variable reference")
	}

	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}), nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("negative max body bytes: %d", c.Server.MaxBodyBytes)
	}

	// LLM validation
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic", "ollama":
	case "":
		return fmt.Errorf("empty LLM provider")
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature out of range [0,2]: %v", c.LLM.Temperature)
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive: %d", c.LLM.MaxOutputTokens)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Database validation
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %s requires a dsn", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.HistoryTTL <= 0 {
		return fmt.Errorf("history ttl must be positive: %v", c.Database.HistoryTTL)
	}
	if c.Database.SweepInterval < 0 {
		return fmt.Errorf("negative sweep interval: %v", c.Database.SweepInterval)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("negative max open conns: %d", c.Database.MaxOpenConns)
	}

	// Auth validation
	for key, id := range c.Auth.Keys {
		if key == "" {
			return fmt.Errorf("empty api key")
		}
		if id.Email == "" {
			return fmt.Errorf("api key %s...: identity has no email", redact(key))
		}
	}
	if c.Auth.CacheSize <= 0 {
		return fmt.Errorf("auth cache size must be positive: %d", c.Auth.CacheSize)
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("negative requests per minute: %d", c.RateLimit.RequestsPerMinute)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("negative burst: %d", c.RateLimit.Burst)
	}

	if c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}

	if c.Queue.Enabled && c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue max size must be positive when enabled: %d", c.Queue.MaxSize)
	}

	// Route validation
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("empty path in route %d", i)
		}
		if route.Handler == "" {
			return fmt.Errorf("empty handler in route %d", i)
		}
	}

	return nil
}

func redact(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4]
}
