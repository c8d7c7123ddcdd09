// Package config loads taskdash settings from a YAML file, falling back to the
// environment when the file does not exist.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrInvalidConfig is wrapped by Validate failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Server configures `taskdash serve`.
type Server struct {
	Address         string        `yaml:"address" env:"TASKDASH_ADDRESS" env-default:":8080"`
	DBFile          string        `yaml:"db_file" env:"TASKDASH_DB_FILE" env-default:"taskdash.sqlite"`
	JWTSecret       string        `yaml:"jwt_secret" env:"TASKDASH_JWT_SECRET"`
	JWTIssuer       string        `yaml:"jwt_issuer" env:"TASKDASH_JWT_ISSUER" env-default:"taskdash"`
	TokenTTL        time.Duration `yaml:"token_ttl" env:"TASKDASH_TOKEN_TTL" env-default:"24h"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"TASKDASH_BCRYPT_COST" env-default:"12"`
	AutoConfirm     bool          `yaml:"auto_confirm" env:"TASKDASH_AUTO_CONFIRM" env-default:"false"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"TASKDASH_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Client configures the commands that talk to a server.
type Client struct {
	BaseURL  string        `yaml:"base_url" env:"TASKDASH_BASE_URL" env-default:"http://localhost:8080"`
	Timeout  time.Duration `yaml:"timeout" env:"TASKDASH_TIMEOUT" env-default:"15s"`
	Email    string        `yaml:"email" env:"TASKDASH_EMAIL"`
	Password string        `yaml:"password" env:"TASKDASH_PASSWORD"`
	// Timezone names the IANA zone used for dashboard calendar dates; empty means local.
	Timezone string `yaml:"timezone" env:"TASKDASH_TIMEZONE"`
}

// Config is the whole configuration.
type Config struct {
	LogLevel string `yaml:"log_level" env:"TASKDASH_LOG_LEVEL" env-default:"info"`
	LogFile  string `yaml:"log_file" env:"TASKDASH_LOG_FILE"`
	Server   Server `yaml:"server"`
	Client   Client `yaml:"client"`
}

// Load reads path, or only the environment when path is empty or missing.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}

		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("cannot read config %q: %w", path, err)
		}

		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the settings `serve` depends on.
func (s Server) Validate() error {
	if s.JWTSecret == "" {
		return fmt.Errorf("%w: server.jwt_secret (TASKDASH_JWT_SECRET) is required", ErrInvalidConfig)
	}

	if s.TokenTTL <= 0 {
		return fmt.Errorf("%w: server.token_ttl must be positive", ErrInvalidConfig)
	}

	if s.DBFile == "" {
		return fmt.Errorf("%w: server.db_file is required", ErrInvalidConfig)
	}

	return nil
}

// Location resolves Timezone.
func (c Client) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}

	return loc, nil
}

// Usage describes every environment variable.
func Usage() (string, error) {
	var cfg Config

	return cleanenv.GetDescription(&cfg, nil)
}
