package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	glowerrors "github.com/aethra/glow/internal/errors"
	"github.com/aethra/glow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadWith("", MapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "v1", cfg.API.Version)
	assert.Equal(t, "abiportal", cfg.API.Portal)
	assert.Empty(t, cfg.API.BaseURL)
	assert.Equal(t, models.DefaultPageSize, cfg.Pagination.PageSize)
	assert.Equal(t, 350*time.Millisecond, cfg.Pagination.SearchDebounce)
	assert.Equal(t, 10, cfg.Mock.Rows)
	assert.Equal(t, 10000, cfg.Auth.MaxSessions)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, models.DefaultPreferences(), cfg.Preferences())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9000"
api:
  baseURL: http://portal.local
  timeout: 3s
pagination:
  pageSize: 10
mock:
  delay: 150ms
  rows: 40
database:
  driver: mysql
  dsn: glow:secret@tcp(db:3306)/glow
theme:
  mode: dark
  accent: green
dashboard:
  - id: leads
    label: Leads
    moduleId: enquiries
modulesFile: modules.yaml
`)
	cfg, err := LoadWith(path, MapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "http://portal.local", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "v1", cfg.API.Version)
	assert.Equal(t, 10, cfg.Pagination.PageSize)
	assert.Equal(t, 150*time.Millisecond, cfg.Mock.Delay)
	assert.Equal(t, 40, cfg.Mock.Rows)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, models.Preferences{Theme: "dark", Accent: "green"}, cfg.Preferences())
	assert.Equal(t, []models.DashboardSection{{ID: "leads", Label: "Leads", ModuleID: "enquiries"}}, cfg.Dashboard)
	assert.Equal(t, "modules.yaml", cfg.ModulesFile)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  port: \"9000\"\npagination:\n  pageSize: 10\n")
	env := MapEnv(map[string]string{
		"GLOW_SERVER_PORT":          "7000",
		"GLOW_PAGE_SIZE":            "50",
		"GLOW_MOCK_DELAY":           "250",
		"GLOW_API_TIMEOUT":          "2s",
		"GLOW_CORS_ALLOWED_ORIGINS": "http://a.test, ,http://b.test",
		"GLOW_WATCH_SCHEMA":         "yes",
		"GLOW_DB_DRIVER":            "pq",
		"GLOW_MAX_SESSIONS":         "64",
	})

	cfg, err := LoadWith(path, env)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Pagination.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Mock.Delay)
	assert.Equal(t, 2*time.Second, cfg.API.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.WatchSchema)
	assert.Equal(t, DriverPQ, cfg.Database.Driver)
	assert.Equal(t, 64, cfg.Auth.MaxSessions)
}

func TestLoad_PlainPort(t *testing.T) {
	cfg, err := LoadWith("", MapEnv(map[string]string{"PORT": "8181"}))
	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Server.Port)

	cfg, err = LoadWith("", MapEnv(map[string]string{"PORT": "8181", "GLOW_SERVER_PORT": "8282"}))
	require.NoError(t, err)
	assert.Equal(t, "8282", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"driver", map[string]string{"GLOW_DB_DRIVER": "oracle"}, "database.driver"},
		{"page size", map[string]string{"GLOW_PAGE_SIZE": "0"}, "pagination.pageSize"},
		{"page size above max", map[string]string{"GLOW_PAGE_SIZE": "100000"}, "pagination.pageSize"},
		{"max sessions", map[string]string{"GLOW_MAX_SESSIONS": "0"}, "auth.maxSessions"},
		{"rows", map[string]string{"GLOW_MOCK_ROWS": "-1"}, "mock.rows"},
		{"mode", map[string]string{"GLOW_SERVER_MODE": "production"}, "server.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith("", MapEnv(tt.env))
			var ve *glowerrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := LoadWith(writeFile(t, "server: [\n"), MapEnv(nil))
	assert.Error(t, err)
	_, err = LoadWith(filepath.Join(t.TempDir(), "missing.yaml"), MapEnv(nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvSource(t *testing.T) {
	env := MapEnv(map[string]string{
		"GLOW_N":    "12",
		"GLOW_BAD":  "twelve",
		"GLOW_FLAG": "TRUE",
		"GLOW_D":    "nonsense",
	})
	assert.Equal(t, 12, env.GetInt("N", 1))
	assert.Equal(t, 1, env.GetInt("BAD", 1))
	assert.Equal(t, 1, env.GetInt("MISSING", 1))
	assert.True(t, env.GetBool("FLAG", false))
	assert.True(t, env.GetBool("MISSING", true))
	assert.Equal(t, time.Second, env.GetDuration("D", time.Second))
	assert.Equal(t, "x", env.GetWithDefault("MISSING", "x"))
}

func TestGenerateSessionSecret(t *testing.T) {
	a, b := GenerateSessionSecret(), GenerateSessionSecret()
	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := LoadWith(filepath.Join("..", "..", "glow.example.yaml"), MapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, Default().API, cfg.API)
	assert.Len(t, cfg.Dashboard, 4)
	assert.False(t, cfg.Database.Enabled())
}
