// Package config loads the dogs configuration from YAML and environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "dogs.yaml"

// Config is the root configuration. Sources, highest priority first:
//  1. an explicit path (--config);
//  2. the path in CONFIG_PATH;
//  3. ./dogs.yaml;
//  4. environment variables only.
//
// Environment variables always override values read from a file.
type Config struct {
	Env      string         `yaml:"env" env:"DOGS_ENV" env-default:"local"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Identity IdentityConfig `yaml:"identity"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	Client   ClientConfig   `yaml:"client"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"DOGS_LOG_LEVEL" env-default:"info"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host" env:"DOGS_HTTP_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"DOGS_HTTP_PORT" env-default:"3000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"DOGS_HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"DOGS_HTTP_WRITE_TIMEOUT" env-default:"15s"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig locates the SQLite file. An empty path means $HOME/.dogs/dogs.db.
type DBConfig struct {
	Path string `yaml:"path" env:"DOGS_DB_PATH"`
}

type IdentityConfig struct {
	BaseURL string        `yaml:"base_url" env:"DOGS_IDENTITY_BASE_URL" env-default:"https://dummyjson.com"`
	Timeout time.Duration `yaml:"timeout" env:"DOGS_IDENTITY_TIMEOUT" env-default:"10s"`
}

type CatalogConfig struct {
	BaseURL string        `yaml:"base_url" env:"DOGS_CATALOG_BASE_URL" env-default:"https://dog.ceo/api"`
	Timeout time.Duration `yaml:"timeout" env:"DOGS_CATALOG_TIMEOUT" env-default:"10s"`
}

// CacheConfig controls the in-memory read-through caches. Caching is on unless
// disabled, because a false boolean cannot be told apart from an unset one.
type CacheConfig struct {
	Disabled   bool          `yaml:"disabled" env:"DOGS_CACHE_DISABLED"`
	BreedsTTL  time.Duration `yaml:"breeds_ttl" env:"DOGS_CACHE_BREEDS_TTL" env-default:"24h"`
	ImagesTTL  time.Duration `yaml:"images_ttl" env:"DOGS_CACHE_IMAGES_TTL" env-default:"60s"`
	ProfileTTL time.Duration `yaml:"profile_ttl" env:"DOGS_CACHE_PROFILE_TTL" env-default:"5m"`
}

func (c CacheConfig) Enabled() bool { return !c.Disabled }

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"DOGS_SESSION_TTL" env-default:"59m"`
	// A negative SweepInterval disables the periodic sweep; the startup sweep still runs.
	// Zero cannot be used for that because it is replaced by the default.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"DOGS_SESSION_SWEEP_INTERVAL" env-default:"10m"`
}

// ClientConfig configures the CLI commands that talk to a running server.
type ClientConfig struct {
	ServerURL string        `yaml:"server_url" env:"DOGS_SERVER_URL" env-default:"http://localhost:3000"`
	StatePath string        `yaml:"state_path" env:"DOGS_STATE_PATH"`
	Leeway    time.Duration `yaml:"leeway" env:"DOGS_CLIENT_LEEWAY" env-default:"30s"`
	Timeout   time.Duration `yaml:"timeout" env:"DOGS_CLIENT_TIMEOUT" env-default:"10s"`
}

// StateFile returns where the CLI keeps its tokens.
func (c ClientConfig) StateFile() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return filepath.Join(os.Getenv("HOME"), ".dogs", "client.json")
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

// Validate checks values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.HTTP.Port == "" {
		return fmt.Errorf("http.port cannot be empty")
	}
	for name, raw := range map[string]string{
		"identity.base_url": c.Identity.BaseURL,
		"catalog.base_url":  c.Catalog.BaseURL,
		"client.server_url": c.Client.ServerURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}
	if c.Client.Leeway < 0 {
		return fmt.Errorf("client.leeway cannot be negative, got %s", c.Client.Leeway)
	}
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration following the priority documented on Config and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %q: %w", p, err)
		}
		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			if err := readFile(DefaultFile); err != nil {
				return nil, err
			}
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
