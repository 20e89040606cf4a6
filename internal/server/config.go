// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 64 * 1024
	defaultBurst          = 100
	defaultRefillInterval = time.Second
	defaultStaticDir      = "./public"
	defaultMetricsPath    = "/metrics"
	defaultSendBuffer     = 256
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	StaticDir      string          `yaml:"static_dir"`
	MetricsPath    string          `yaml:"metrics_path"`
	SendBuffer     int             `yaml:"send_buffer"`
	Log            LogConfig       `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		StaticDir:   defaultStaticDir,
		MetricsPath: defaultMetricsPath,
		SendBuffer:  defaultSendBuffer,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.Sanitize()
	return &cfg, nil
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	cfg.ApplyEnvOverrides()
	cfg.Sanitize()
	return &cfg
}

// ApplyEnvOverrides overwrites fields whose environment variable is set.
func (c *Config) ApplyEnvOverrides() {
	// PORT is what most hosting platforms inject; SERVER_PORT wins when both are set.
	if port := os.Getenv("PORT"); port != "" {
		c.Port = port
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.MaxMessageSize = parseMaxMessageSize(maxSize, c.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		c.RateLimit.Burst = parseIntValue(burst, c.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		c.RateLimit.RefillInterval = parseRefillInterval(interval, c.RateLimit.RefillInterval)
	}

	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		c.StaticDir = dir
	}

	if path := os.Getenv("METRICS_PATH"); path != "" {
		c.MetricsPath = path
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}

// Sanitize replaces missing or invalid values with defaults.
func (c *Config) Sanitize() {
	c.Port = normalizePort(c.Port)

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultBurst
	}

	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = defaultRefillInterval
	}

	if c.StaticDir == "" {
		c.StaticDir = defaultStaticDir
	}

	c.MetricsPath = sanitizeMetricsPath(c.MetricsPath)

	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// reservedPaths are routed by the server itself and cannot host metrics.
var reservedPaths = map[string]bool{
	"/":        true,
	"/ws":      true,
	"/healthz": true,
}

func sanitizeMetricsPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return defaultMetricsPath
	}
	p = path.Clean("/" + strings.TrimSpace(p))
	if reservedPaths[p] {
		return defaultMetricsPath
	}
	return p
}

// normalizePort turns a bare port number into a listen address.
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return defaultPort
	}
	if _, err := strconv.Atoi(port); err == nil {
		return ":" + port
	}
	return port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
