package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every service environment variable, e.g.
// GEOSHIFT_SERVER_ADDR or GEOSHIFT_LOGGING_LEVEL.
const EnvPrefix = "GEOSHIFT"

// Service is the configuration of the HTTP service. Conversions themselves
// never read the environment.
type Service struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Logging   LoggingConfig   `envconfig:"LOGGING"`
	// Workers is the per-request row parallelism.
	Workers int `envconfig:"WORKERS" default:"4" validate:"gte=0,lte=256"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"2m" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	MaxUploadBytes  int64         `envconfig:"MAX_UPLOAD_BYTES" default:"33554432" validate:"gt=0"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `envconfig:"ENABLED" default:"true"`
	RPS     float64 `envconfig:"RPS" default:"10" validate:"gt=0"`
	Burst   int     `envconfig:"BURST" default:"20" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout stderr file discard"`
	FilePath string `envconfig:"FILE_PATH" default:"geoshift.log" validate:"required_if=Output file"`
}

// LoadService reads the given dotenv files (".env" when none are given, and
// only if it exists) and then the environment. Variables already set in the
// environment win over dotenv values.
func LoadService(envFiles ...string) (*Service, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	var cfg Service
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("config validation failed: %w", describeValidation(err))
	}
	return nil
}

// DefaultService returns the configuration used when nothing is set.
func DefaultService() *Service {
	return &Service{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     10,
			Burst:   20,
		},
		Logging: DefaultLogging(),
		Workers: 4,
	}
}

// DefaultLogging is the logging configuration for command-line use.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "stdout",
		FilePath: "geoshift.log",
	}
}
