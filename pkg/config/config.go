// Package config loads the API server configuration from environment
// variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAuthNotConfigured is returned when AUTH_REQUIRED is set without
	// any way to authenticate.
	ErrAuthNotConfigured = errors.New("config: AUTH_REQUIRED needs JWT_SECRET or API_KEYS")
	// ErrInvalidBatchInputs is returned when MAX_BATCH_INPUTS is below 2.
	ErrInvalidBatchInputs = errors.New("config: MAX_BATCH_INPUTS must be at least 2")
)

// Config holds all configuration for the server.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Rendering settings
	WorkDir              string `env:"WORK_DIR, default=/tmp/slidegraph" json:"work_dir"`
	FFmpegPath           string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath          string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	MaxBatchInputs       int    `env:"MAX_BATCH_INPUTS, default=15" json:"max_batch_inputs"`
	MaxConcurrentRenders int    `env:"MAX_CONCURRENT_RENDERS, default=2" json:"max_concurrent_renders"`
	StageParallelism     int    `env:"STAGE_PARALLELISM, default=2" json:"stage_parallelism"`

	// Auth settings
	AuthRequired bool          `env:"AUTH_REQUIRED, default=false" json:"auth_required"`
	JWTSecret    string        `env:"JWT_SECRET" json:"-"` // Masked in JSON
	JWTTTL       time.Duration `env:"JWT_TTL, default=24h" json:"jwt_ttl"`
	APIKeys      []string      `env:"API_KEYS" json:"-"` // user:key or user:role:key

	// Optional S3 settings
	S3Region string `env:"S3_REGION" json:"s3_region,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWith(envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper and validates it.
func LoadWith(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	if c.AuthRequired && c.JWTSecret == "" && len(c.APIKeys) == 0 {
		return ErrAuthNotConfigured
	}
	if c.MaxBatchInputs < 2 {
		return ErrInvalidBatchInputs
	}
	if c.MaxConcurrentRenders < 1 {
		return fmt.Errorf("config: MAX_CONCURRENT_RENDERS must be positive, got %d", c.MaxConcurrentRenders)
	}
	return nil
}

// NewLogger creates a structured logger on stderr. When LogFormat is
// "json" it emits JSON lines, otherwise human-readable text.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// String returns a string representation of the config with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WorkDir: %s, FFmpegPath: %s, FFprobePath: %s, MaxBatchInputs: %d, MaxConcurrentRenders: %d, AuthRequired: %t, JWTSecret: %s, APIKeys: %d, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WorkDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.MaxBatchInputs,
		c.MaxConcurrentRenders,
		c.AuthRequired,
		mask(c.JWTSecret),
		len(c.APIKeys),
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// ParseLogLevel converts a string log level to slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
