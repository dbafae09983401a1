// Package config loads the client's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIURL      string        `env:"HNS_API_URL"      envDefault:"https://hack-or-snooze-v3.herokuapp.com"`
	DBPath      string        `env:"HNS_DB_PATH"      envDefault:"data/session.db"`
	Timeout     time.Duration `env:"HNS_TIMEOUT"      envDefault:"5s"`
	PageSize    int           `env:"HNS_PAGE_SIZE"    envDefault:"25"`
	MaxRetries  int           `env:"HNS_MAX_RETRIES"  envDefault:"3"`
	LogLevel    slog.Level    `env:"HNS_LOG_LEVEL"    envDefault:"warn"`
	TokenKey    string        `env:"HNS_TOKEN_KEY"    envDefault:"token"`
	UsernameKey string        `env:"HNS_USERNAME_KEY" envDefault:"username"`

	// Password is used by login and signup when no --password flag is given.
	Password string `env:"HNS_PASSWORD"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("config: HNS_API_URL %q is not an http(s) URL", c.APIURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("config: HNS_DB_PATH must not be empty"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("config: HNS_TIMEOUT must be positive, got %s", c.Timeout))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("config: HNS_PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("config: HNS_MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	return errors.Join(errs...)
}
