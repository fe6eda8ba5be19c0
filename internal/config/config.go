package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Lookup     LookupConfig     `yaml:"lookup"`
	Completion CompletionConfig `yaml:"completion"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig describes how identity is established. Access tokens are issued by
// the external identity provider and verified with JWTSecret; the sentinel
// cookie is minted by this service and signed with SentinelSecret.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	AccessCookie   string        `yaml:"access_cookie"`
	RefreshCookie  string        `yaml:"refresh_cookie"`
	SentinelCookie string        `yaml:"sentinel_cookie"`
	SentinelSecret string        `yaml:"sentinel_secret"`
	SentinelTTL    time.Duration `yaml:"sentinel_ttl"`
	CSRFKey        string        `yaml:"csrf_key"`
	InsecureCookie bool          `yaml:"insecure_cookie"`
}

type LookupConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	CacheDir string        `yaml:"cache_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CompletionConfig selects how workout sessions are completed.
// Procedure is one of "auto", "always" or "never".
type CompletionConfig struct {
	Procedure string        `yaml:"procedure"`
	ProbeTTL  time.Duration `yaml:"probe_ttl"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, loads a .env file from the working
// directory if present, then applies environment variable overrides.
// Env vars use the prefix REPCOACH_ and underscore-separated paths:
//
//	REPCOACH_SERVER_HOST, REPCOACH_SERVER_PORT,
//	REPCOACH_DB_HOST, REPCOACH_DB_PORT, REPCOACH_DB_NAME,
//	REPCOACH_DB_USER, REPCOACH_DB_PASSWORD, REPCOACH_DB_SSLMODE,
//	REPCOACH_AUTH_JWT_SECRET, REPCOACH_AUTH_SENTINEL_SECRET, REPCOACH_AUTH_CSRF_KEY,
//	REPCOACH_LOOKUP_BASE_URL, REPCOACH_LOOKUP_API_KEY,
//	REPCOACH_COMPLETION_PROCEDURE, REPCOACH_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("REPCOACH_SERVER_HOST", &cfg.Server.Host)
	setInt("REPCOACH_SERVER_PORT", &cfg.Server.Port)
	setString("REPCOACH_DB_HOST", &cfg.Database.Host)
	setInt("REPCOACH_DB_PORT", &cfg.Database.Port)
	setString("REPCOACH_DB_NAME", &cfg.Database.Name)
	setString("REPCOACH_DB_USER", &cfg.Database.User)
	setString("REPCOACH_DB_PASSWORD", &cfg.Database.Password)
	setString("REPCOACH_DB_SSLMODE", &cfg.Database.SSLMode)
	setString("REPCOACH_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("REPCOACH_AUTH_SENTINEL_SECRET", &cfg.Auth.SentinelSecret)
	setString("REPCOACH_AUTH_CSRF_KEY", &cfg.Auth.CSRFKey)
	setString("REPCOACH_LOOKUP_BASE_URL", &cfg.Lookup.BaseURL)
	setString("REPCOACH_LOOKUP_API_KEY", &cfg.Lookup.APIKey)
	setString("REPCOACH_COMPLETION_PROCEDURE", &cfg.Completion.Procedure)
	setString("REPCOACH_LOG_LEVEL", &cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.AccessCookie == "" {
		cfg.Auth.AccessCookie = "sb-access-token"
	}
	if cfg.Auth.RefreshCookie == "" {
		cfg.Auth.RefreshCookie = "sb-refresh-token"
	}
	if cfg.Auth.SentinelCookie == "" {
		cfg.Auth.SentinelCookie = "repcoach_session"
	}
	if cfg.Auth.SentinelTTL == 0 {
		cfg.Auth.SentinelTTL = 12 * time.Hour
	}
	if cfg.Lookup.BaseURL == "" {
		cfg.Lookup.BaseURL = "https://api.api-ninjas.com/v1/exercises"
	}
	if cfg.Lookup.CacheDir == "" {
		cfg.Lookup.CacheDir = ".repcoach"
	}
	if cfg.Lookup.CacheTTL == 0 {
		cfg.Lookup.CacheTTL = 24 * time.Hour
	}
	if cfg.Completion.Procedure == "" {
		cfg.Completion.Procedure = "auto"
	}
	if cfg.Completion.ProbeTTL == 0 {
		cfg.Completion.ProbeTTL = 5 * time.Minute
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "repcoach"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.SentinelSecret == "" {
		return fmt.Errorf("auth.sentinel_secret is required")
	}
	if c.Auth.CSRFKey != "" && len(c.Auth.CSRFKey) != 32 {
		return fmt.Errorf("auth.csrf_key must be 32 bytes, got %d", len(c.Auth.CSRFKey))
	}
	switch strings.ToLower(c.Completion.Procedure) {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("completion.procedure must be auto, always or never, got %q", c.Completion.Procedure)
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		return fmt.Errorf("tailscale.state_dir is required when tailscale is enabled")
	}
	return nil
}
