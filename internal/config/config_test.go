package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gameleadership/leadmap/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvDatabaseURL, EnvDataDir, EnvNominatimURL, EnvUserAgent, EnvAdminUser,
		EnvSubmissionWindow, EnvSubmissionMax, EnvSearchWindow, EnvSearchMax,
		EnvSubmitterSearchWindow, EnvSubmitterSearchMax,
		EnvInstitutionSearchLimit, EnvSubmitterSearchLimit,
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/leadmap/config.yml", Path())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	assert.Equal(t, filepath.Join(home, ".config", "leadmap", "config.yml"), Path())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(DefaultDataDir, DBFile), cfg.DSN())
	assert.Equal(t, "admin", cfg.Reviewer())
	assert.Equal(t, 10, cfg.Search.InstitutionLimit)

	p := cfg.RatePolicies()
	assert.Equal(t, ratelimit.Policy{Window: time.Hour, Max: 5}, p[ratelimit.TypeSubmission])
	assert.Equal(t, ratelimit.Policy{Window: 10 * time.Minute, Max: 40}, p[ratelimit.TypeInstitutionSearch])
	assert.Equal(t, ratelimit.Policy{Window: 10 * time.Minute, Max: 40}, p[ratelimit.TypeSubmitterSearch])
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database_url: postgres://leadmap@localhost/leadmap
data_dir: /srv/leadmap
admin_user: curator
geocoder:
  disabled: true
rate_limits:
  submission:
    window_minutes: 30
    max: 2
search:
  submitter_limit: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://leadmap@localhost/leadmap", cfg.DSN())
	assert.Equal(t, "/srv/leadmap", cfg.DataDir)
	assert.Equal(t, "curator", cfg.Reviewer())
	assert.True(t, cfg.Geocoder.Disabled)
	assert.Equal(t, LimitConfig{WindowMinutes: 30, Max: 2}, cfg.RateLimits.Submission)
	assert.Equal(t, LimitConfig{WindowMinutes: 10, Max: 40}, cfg.RateLimits.InstitutionSearch, "unset sections keep defaults")
	assert.Equal(t, 7, cfg.Search.SubmitterLimit)
	assert.Equal(t, 10, cfg.Search.InstitutionLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "rate_limits: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "admin_user: from-file\n")
	t.Setenv(EnvAdminUser, "from-env")
	t.Setenv(EnvDatabaseURL, "sqlite:/tmp/x.db")
	t.Setenv(EnvNominatimURL, "http://localhost:8080/search")
	t.Setenv(EnvSubmissionMax, "9")
	t.Setenv(EnvSearchWindow, "15")
	t.Setenv(EnvSearchMax, "100")
	t.Setenv(EnvSubmitterSearchMax, "3")
	t.Setenv(EnvInstitutionSearchLimit, "20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AdminUser)
	assert.Equal(t, "sqlite:/tmp/x.db", cfg.DSN())
	assert.Equal(t, "http://localhost:8080/search", cfg.Geocoder.URL)
	assert.Equal(t, 9, cfg.RateLimits.Submission.Max)
	assert.Equal(t, LimitConfig{WindowMinutes: 15, Max: 100}, cfg.RateLimits.InstitutionSearch)
	assert.Equal(t, LimitConfig{WindowMinutes: 15, Max: 3}, cfg.RateLimits.SubmitterSearch,
		"submitter window falls back to the search window")
	assert.Equal(t, 20, cfg.Search.InstitutionLimit)
	assert.Equal(t, 20, cfg.Search.SubmitterLimit, "submitter limit falls back to the institution limit")
}

func TestLoad_BadEnvInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSubmissionWindow, "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, EnvSubmissionWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero window", func(c *Config) { c.RateLimits.Submission.WindowMinutes = 0 }},
		{"negative max", func(c *Config) { c.RateLimits.SubmitterSearch.Max = -1 }},
		{"zero search limit", func(c *Config) { c.Search.InstitutionLimit = 0 }},
		{"no geocoder url", func(c *Config) { c.Geocoder.URL = "" }},
		{"zero geocoder rate", func(c *Config) { c.Geocoder.Rate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Geocoder.Disabled = true
	cfg.Geocoder.URL = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEADMAP_TEST_A=from-file\nLEADMAP_TEST_B=from-file\n"), 0644))
	t.Setenv("LEADMAP_TEST_A", "preset")
	t.Setenv("LEADMAP_TEST_B", "")
	os.Unsetenv("LEADMAP_TEST_B")

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "preset", os.Getenv("LEADMAP_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("LEADMAP_TEST_B"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Equal(t, "/abs/data", ExpandPath("/abs/data"))
	assert.Equal(t, "", ExpandPath(""))
}
