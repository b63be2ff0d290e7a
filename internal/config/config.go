package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds console settings. Values come from an optional YAML file and
// are always overridden by MAD_* environment variables.
type Config struct {
	Env      string `yaml:"env" env:"MAD_ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"MAD_LOG_LEVEL" env-default:"info"`

	HTTPServer `yaml:"http_server"`
	Backend    `yaml:"backend"`
	Table      `yaml:"table"`
	Login      `yaml:"login"`
	Audit      `yaml:"audit"`
}

type HTTPServer struct {
	Address           string        `yaml:"address" env:"MAD_LISTEN_ADDR" env-default:":3000"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"MAD_READ_TIMEOUT" env-default:"15s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"MAD_READ_HEADER_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"MAD_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"MAD_IDLE_TIMEOUT" env-default:"60s"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" env:"MAD_MAX_UPLOAD_BYTES" env-default:"5242880"`
}

type Backend struct {
	URL string `yaml:"url" env:"MAD_API_URL" env-default:"http://localhost:3001"`
}

type Table struct {
	DefaultPageSize int           `yaml:"default_page_size" env:"MAD_DEFAULT_PAGE_SIZE" env-default:"10"`
	SearchDebounce  time.Duration `yaml:"search_debounce" env:"MAD_SEARCH_DEBOUNCE" env-default:"300ms"`
}

type Login struct {
	RatePerSecond int `yaml:"rate_per_second" env:"MAD_LOGIN_RATE_PER_SEC" env-default:"1"`
	RateBurst     int `yaml:"rate_burst" env:"MAD_LOGIN_RATE_BURST" env-default:"5"`
}

type Audit struct {
	DSN             string `yaml:"dsn" env:"MAD_PG_DSN"`
	MigrationsTable string `yaml:"migrations_table" env:"MAD_PG_MIGRATIONS_TABLE" env-default:"console_schema_migrations"`
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Load reads the YAML file at path when it is non-empty, then applies the
// environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics, for use from main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.Table.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive, got %d", c.Table.DefaultPageSize)
	}
	if c.Login.RatePerSecond <= 0 || c.Login.RateBurst <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}
	return nil
}
