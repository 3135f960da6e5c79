// Package config provides configuration management for Glow
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	glowerrors "github.com/aethra/glow/internal/errors"
	"github.com/aethra/glow/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GLOW_"

// Database drivers.
const (
	DriverNone     = ""
	DriverPostgres = "postgres" // pgx through gorm's postgres driver
	DriverPQ       = "pq"       // lib/pq through gorm's postgres dialector
	DriverMySQL    = "mysql"
)

// Config holds the runtime configuration
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	CORS        CORSConfig                `yaml:"cors"`
	Auth        AuthConfig                `yaml:"auth"`
	API         APIConfig                 `yaml:"api"`
	Pagination  PaginationConfig          `yaml:"pagination"`
	Mock        MockConfig                `yaml:"mock"`
	Theme       ThemeConfig               `yaml:"theme"`
	Database    DatabaseConfig            `yaml:"database"`
	Log         LogConfig                 `yaml:"log"`
	Dashboard   []models.DashboardSection `yaml:"dashboard"`
	ModulesFile string                    `yaml:"modulesFile"`
	WatchSchema bool                      `yaml:"watchSchema"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port         string        `yaml:"port"`
	Mode         string        `yaml:"mode"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	AppName      string        `yaml:"appName"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

// AuthConfig holds session cookie settings
type AuthConfig struct {
	SessionSecret string        `yaml:"sessionSecret"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	SecureCookie  bool          `yaml:"secureCookie"`
	MaxSessions   int           `yaml:"maxSessions"`
}

// APIConfig describes the portal API the dashboard reads from. An empty
// BaseURL means local data only.
type APIConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	Version    string        `yaml:"version"`
	Portal     string        `yaml:"portal"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryMax   int           `yaml:"retryMax"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

// PaginationConfig holds list defaults
type PaginationConfig struct {
	PageSize       int           `yaml:"pageSize"`
	SearchDebounce time.Duration `yaml:"searchDebounce"`
}

// MockConfig tunes the generated data set
type MockConfig struct {
	Delay time.Duration `yaml:"delay"`
	Rows  int           `yaml:"rows"`
}

// ThemeConfig holds the defaults for visitors without a preference cookie
type ThemeConfig struct {
	Mode   string `yaml:"mode"`
	Accent string `yaml:"accent"`
}

// DatabaseConfig holds database settings. DSN wins over the separate fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode"`
}

// Enabled reports whether rows are persisted.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != DriverNone
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8090",
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			AppName:      "Glow – Car Garage",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowCredentials: true,
		},
		Auth: AuthConfig{
			SessionTTL:  7 * 24 * time.Hour,
			MaxSessions: 10000,
		},
		API: APIConfig{
			Version:    "v1",
			Portal:     "abiportal",
			Timeout:    10 * time.Second,
			RetryMax:   2,
			RetryDelay: 200 * time.Millisecond,
		},
		Pagination: PaginationConfig{
			PageSize:       models.DefaultPageSize,
			SearchDebounce: 350 * time.Millisecond,
		},
		Mock: MockConfig{Rows: 10},
		Theme: ThemeConfig{
			Mode:   models.ThemeSystem,
			Accent: models.AccentAmber,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			SSLMode: "disable",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path (if
// any) and GLOW_* environment variables, in that order.
func Load(path string) (*Config, error) {
	return LoadWith(path, NewEnvSource(os.Getenv))
}

// LoadWith is Load with an explicit environment.
func LoadWith(path string, env *EnvSource) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env *EnvSource) {
	c.Server.Port = env.GetWithDefault("SERVER_PORT", env.GetRawWithDefault("PORT", c.Server.Port))
	c.Server.Mode = env.GetWithDefault("SERVER_MODE", c.Server.Mode)
	c.Server.ReadTimeout = env.GetDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = env.GetDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.AppName = env.GetWithDefault("APP_NAME", c.Server.AppName)

	if origins := env.Get("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitString(origins)
	}
	c.CORS.AllowCredentials = env.GetBool("CORS_ALLOW_CREDENTIALS", c.CORS.AllowCredentials)

	c.Auth.SessionSecret = env.GetWithDefault("SESSION_SECRET", c.Auth.SessionSecret)
	c.Auth.SessionTTL = env.GetDuration("SESSION_TTL", c.Auth.SessionTTL)
	c.Auth.SecureCookie = env.GetBool("SECURE_COOKIE", c.Auth.SecureCookie)
	c.Auth.MaxSessions = env.GetInt("MAX_SESSIONS", c.Auth.MaxSessions)

	c.API.BaseURL = env.GetWithDefault("API_BASE_URL", c.API.BaseURL)
	c.API.Version = env.GetWithDefault("API_VERSION", c.API.Version)
	c.API.Portal = env.GetWithDefault("API_PORTAL", c.API.Portal)
	c.API.Timeout = env.GetDuration("API_TIMEOUT", c.API.Timeout)
	c.API.RetryMax = env.GetInt("API_RETRY_MAX", c.API.RetryMax)
	c.API.RetryDelay = env.GetDuration("API_RETRY_DELAY", c.API.RetryDelay)

	c.Pagination.PageSize = env.GetInt("PAGE_SIZE", c.Pagination.PageSize)
	c.Pagination.SearchDebounce = env.GetDuration("SEARCH_DEBOUNCE", c.Pagination.SearchDebounce)

	c.Mock.Delay = env.GetDuration("MOCK_DELAY", c.Mock.Delay)
	c.Mock.Rows = env.GetInt("MOCK_ROWS", c.Mock.Rows)

	c.Theme.Mode = env.GetWithDefault("THEME", c.Theme.Mode)
	c.Theme.Accent = env.GetWithDefault("ACCENT", c.Theme.Accent)

	c.Database.Driver = env.GetWithDefault("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = env.GetWithDefault("DB_DSN", c.Database.DSN)
	c.Database.Host = env.GetWithDefault("DB_HOST", c.Database.Host)
	c.Database.Port = env.GetWithDefault("DB_PORT", c.Database.Port)
	c.Database.User = env.GetWithDefault("DB_USER", c.Database.User)
	c.Database.Password = env.GetWithDefault("DB_PASSWORD", c.Database.Password)
	c.Database.Name = env.GetWithDefault("DB_NAME", c.Database.Name)
	c.Database.SSLMode = env.GetWithDefault("DB_SSLMODE", c.Database.SSLMode)

	c.Log.Level = env.GetWithDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.GetWithDefault("LOG_FORMAT", c.Log.Format)

	c.ModulesFile = env.GetWithDefault("MODULES_FILE", c.ModulesFile)
	c.WatchSchema = env.GetBool("WATCH_SCHEMA", c.WatchSchema)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return glowerrors.NewValidationError("server.mode", fmt.Sprintf("unknown server mode %q (want debug, release or test)", c.Server.Mode))
	}
	if c.Pagination.PageSize < 1 || c.Pagination.PageSize > models.MaxPageSize {
		return glowerrors.NewValidationError("pagination.pageSize", fmt.Sprintf("page size must be between 1 and %d", models.MaxPageSize))
	}
	if c.Auth.MaxSessions < 1 {
		return glowerrors.NewValidationError("auth.maxSessions", "session limit must be at least 1")
	}
	if c.Mock.Rows < 0 {
		return glowerrors.NewValidationError("mock.rows", "mock row count cannot be negative")
	}
	switch c.Database.Driver {
	case DriverNone, DriverPostgres, DriverPQ, DriverMySQL:
	default:
		return glowerrors.NewValidationError("database.driver",
			fmt.Sprintf("unknown database driver %q (want postgres, pq or mysql)", c.Database.Driver))
	}
	if c.API.Portal == "" {
		return glowerrors.NewValidationError("api.portal", "portal name cannot be empty")
	}
	for i, s := range c.Dashboard {
		if s.ModuleID == "" {
			return glowerrors.NewValidationError("dashboard", fmt.Sprintf("dashboard section %d has no moduleId", i))
		}
	}
	return nil
}

// Preferences returns the configured default appearance.
func (c *Config) Preferences() models.Preferences {
	return models.Preferences{Theme: c.Theme.Mode, Accent: c.Theme.Accent}.Normalize()
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// EnvSource reads GLOW_* overrides.
type EnvSource struct {
	lookup func(string) string
}

// NewEnvSource wraps a lookup such as os.Getenv.
func NewEnvSource(lookup func(string) string) *EnvSource {
	return &EnvSource{lookup: lookup}
}

// MapEnv is an EnvSource over a fixed map of full variable names.
func MapEnv(values map[string]string) *EnvSource {
	return NewEnvSource(func(key string) string { return values[key] })
}

// Get returns GLOW_<key>, or "" when unset.
func (s *EnvSource) Get(key string) string {
	return strings.TrimSpace(s.lookup(EnvPrefix + key))
}

// GetRawWithDefault reads an unprefixed variable such as PORT.
func (s *EnvSource) GetRawWithDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(s.lookup(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetWithDefault returns a config value or default if not found
func (s *EnvSource) GetWithDefault(key, defaultValue string) string {
	if val := s.Get(key); val != "" {
		return val
	}
	return defaultValue
}

// GetInt returns a config value as int
func (s *EnvSource) GetInt(key string, defaultValue int) int {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	return defaultValue
}

// GetBool returns a config value as bool
func (s *EnvSource) GetBool(key string, defaultValue bool) bool {
	val := strings.ToLower(s.Get(key))
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1" || val == "yes"
}

// GetDuration accepts Go durations ("250ms", "10s") or whole milliseconds.
func (s *EnvSource) GetDuration(key string, defaultValue time.Duration) time.Duration {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// GenerateSessionSecret generates a secure random cookie signing secret
func GenerateSessionSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "glow-fallback-secret-" + uuid.New().String()
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// splitString splits a comma-separated string into a slice
func splitString(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
