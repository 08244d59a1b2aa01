package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Stream   StreamConfig   `yaml:"stream"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ShutdownTimeout int `yaml:"shutdown_timeout"` // seconds
}

// UpstreamConfig points at the service that publishes live call audio.
type UpstreamConfig struct {
	BaseURL          string `yaml:"base_url"`
	HandshakeTimeout int    `yaml:"handshake_timeout"` // milliseconds
}

// StreamConfig controls how upstream frames are batched before forwarding.
type StreamConfig struct {
	MaxChunks  int `yaml:"max_chunks"`
	MaxDelayMs int `yaml:"max_delay_ms"`
}

type EncoderConfig struct {
	Channels    int `yaml:"channels"`
	SampleRate  int `yaml:"sample_rate"`
	BitRate     int `yaml:"bit_rate"` // kbps
	Workers     int `yaml:"workers"`
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ShutdownTimeout: 10,
		},
		Upstream: UpstreamConfig{
			BaseURL:          "ws://localhost:8080/calls",
			HandshakeTimeout: 5000,
		},
		Stream: StreamConfig{
			MaxChunks:  10,
			MaxDelayMs: 100,
		},
		Encoder: EncoderConfig{
			Channels:    1,
			SampleRate:  44100,
			BitRate:     128,
			Workers:     2,
			MaxUploadMB: 25,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. It reports
// whether any file was found.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be a number, got %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream config: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}
	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative, got %d", s.ShutdownTimeout)
	}
	return nil
}

func (u *UpstreamConfig) Validate() error {
	parsed, err := url.Parse(u.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("base_url must use ws or wss, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base_url must include a host")
	}
	if u.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout cannot be negative, got %d", u.HandshakeTimeout)
	}
	return nil
}

func (s *StreamConfig) Validate() error {
	if s.MaxChunks < 1 {
		return fmt.Errorf("max_chunks must be at least 1, got %d", s.MaxChunks)
	}
	if s.MaxDelayMs < 1 {
		return fmt.Errorf("max_delay_ms must be at least 1, got %d", s.MaxDelayMs)
	}
	return nil
}

func (e *EncoderConfig) Validate() error {
	if e.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", e.Workers)
	}
	if e.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", e.MaxUploadMB)
	}
	// channel, rate and bit rate limits are checked by encoder.Options
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error; got %q", l.Level)
	}
	if l.File != "" && l.MaxSizeMB < 1 {
		return fmt.Errorf("max_size_mb must be at least 1 when logging to a file, got %d", l.MaxSizeMB)
	}
	return nil
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

func (u UpstreamConfig) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(u.HandshakeTimeout) * time.Millisecond
}

func (s StreamConfig) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMs) * time.Millisecond
}
