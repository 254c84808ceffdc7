package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port string `yaml:"port"`
	Env  string `yaml:"env"` // development, production

	// Backend API
	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// Session store: a SQLite path or a postgres:// URL
	DatabaseURL string `yaml:"database_url"`

	// Security
	SessionSecret      string `yaml:"-"`
	SecureCookies      bool   `yaml:"secure_cookies"`
	LoginRatePerMinute int    `yaml:"login_rate_per_minute"`

	// Console
	Brand          string     `yaml:"brand"`
	GuardCutover   time.Month `yaml:"guard_cutover_month"`
	DefaultCutover time.Month `yaml:"default_batch_cutover_month"`
	FirstBatchYear int        `yaml:"first_batch_year"`
	CountryCode    string     `yaml:"phone_country_code"`
	MaxImageMB     int        `yaml:"max_image_mb"`
}

// Defaults returns the configuration used before any file or environment
// variable is applied.
func Defaults() *Config {
	return &Config{
		Port:               "8080",
		Env:                "development",
		DatabaseURL:        "console.db",
		LoginRatePerMinute: 10,
		Brand:              "Datalytics Admin",
		GuardCutover:       time.June,
		DefaultCutover:     time.July,
		FirstBatchYear:     2019,
		CountryCode:        "+91",
		MaxImageMB:         5,
	}
}

// Load builds and validates the configuration. A .env file is loaded if
// present, then the optional YAML file at path (or CONSOLE_CONFIG), then
// environment variables, which win.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read is Load without validation, for commands that need only part of the
// configuration.
func Read(path string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONSOLE_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.BackendURL = getEnv("BACKEND_URL", c.BackendURL)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.Brand = getEnv("CONSOLE_BRAND", c.Brand)
	c.CountryCode = getEnv("PHONE_COUNTRY_CODE", c.CountryCode)

	var errs []error
	if v, ok := os.LookupEnv("BACKEND_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BACKEND_TIMEOUT: %w", err))
		}
		c.BackendTimeout = d
	}
	if v, ok := os.LookupEnv("SECURE_COOKIES"); ok {
		c.SecureCookies = v == "true"
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LOGIN_RATE_PER_MINUTE", &c.LoginRatePerMinute},
		{"FIRST_BATCH_YEAR", &c.FirstBatchYear},
		{"MAX_IMAGE_MB", &c.MaxImageMB},
	}
	for _, it := range ints {
		if err := envInt(it.key, it.dst); err != nil {
			errs = append(errs, err)
		}
	}
	for key, dst := range map[string]*time.Month{
		"GUARD_CUTOVER_MONTH":         &c.GuardCutover,
		"DEFAULT_BATCH_CUTOVER_MONTH": &c.DefaultCutover,
	} {
		n := int(*dst)
		if err := envInt(key, &n); err != nil {
			errs = append(errs, err)
		}
		*dst = time.Month(n)
	}
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}

	for name, m := range map[string]time.Month{
		"GUARD_CUTOVER_MONTH":         c.GuardCutover,
		"DEFAULT_BATCH_CUTOVER_MONTH": c.DefaultCutover,
	} {
		if m < time.January || m > time.December {
			return fmt.Errorf("%s must be between 1 and 12", name)
		}
	}

	if c.FirstBatchYear < 1900 {
		return fmt.Errorf("FIRST_BATCH_YEAR must be a four-digit year")
	}
	if c.MaxImageMB <= 0 {
		return fmt.Errorf("MAX_IMAGE_MB must be positive")
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must not be negative")
	}
	if !strings.HasPrefix(c.CountryCode, "+") {
		return fmt.Errorf("PHONE_COUNTRY_CODE must start with +")
	}
	return nil
}

// CutoversDiffer reports whether access checks and form defaults disagree
// on when a batch starts.
func (c *Config) CutoversDiffer() bool {
	return c.GuardCutover != c.DefaultCutover
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
