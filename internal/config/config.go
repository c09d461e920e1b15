// Package config handles leadmap configuration.
//
// Settings come from code defaults, then the YAML file at
// $XDG_CONFIG_HOME/leadmap/config.yml (or an explicit path), then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gameleadership/leadmap/internal/geocode"
	"github.com/gameleadership/leadmap/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "leadmap"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// DBFile is the SQLite file used when no database URL is configured.
	DBFile = "leadmap.db"
)

// Defaults.
const (
	DefaultDataDir          = "data"
	DefaultReviewer         = "admin"
	DefaultSearchLimit      = 10
	DefaultSubmissionWindow = 60
	DefaultSubmissionMax    = 5
	DefaultSearchWindow     = 10
	DefaultSearchMax        = 40
)

// Config is the full leadmap configuration.
type Config struct {
	// DatabaseURL is a postgres:// URL or a SQLite path. Empty means
	// DBFile inside DataDir.
	DatabaseURL string `yaml:"database_url,omitempty" json:"database_url,omitempty"`
	// DataDir holds the reconciliation input files.
	DataDir   string `yaml:"data_dir,omitempty" json:"data_dir"`
	AdminUser string `yaml:"admin_user,omitempty" json:"admin_user"`

	Geocoder   GeocoderConfig   `yaml:"geocoder" json:"geocoder"`
	RateLimits RateLimitsConfig `yaml:"rate_limits" json:"rate_limits"`
	Search     SearchConfig     `yaml:"search" json:"search"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	URL       string  `yaml:"url,omitempty" json:"url"`
	UserAgent string  `yaml:"user_agent,omitempty" json:"user_agent"`
	Rate      float64 `yaml:"rate,omitempty" json:"rate"` // requests per second
	Disabled  bool    `yaml:"disabled,omitempty" json:"disabled"`
}

// RateLimitsConfig holds one policy per request type.
type RateLimitsConfig struct {
	Submission        LimitConfig `yaml:"submission" json:"submission"`
	InstitutionSearch LimitConfig `yaml:"institution_search" json:"institution_search"`
	SubmitterSearch   LimitConfig `yaml:"submitter_search" json:"submitter_search"`
}

// LimitConfig is a sliding-window quota.
type LimitConfig struct {
	WindowMinutes int `yaml:"window_minutes,omitempty" json:"window_minutes"`
	Max           int `yaml:"max,omitempty" json:"max"`
}

// SearchConfig holds default result limits.
type SearchConfig struct {
	InstitutionLimit int `yaml:"institution_limit,omitempty" json:"institution_limit"`
	SubmitterLimit   int `yaml:"submitter_limit,omitempty" json:"submitter_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:   DefaultDataDir,
		AdminUser: DefaultReviewer,
		Geocoder: GeocoderConfig{
			URL:       geocode.BaseURL,
			UserAgent: geocode.DefaultUserAgent,
			Rate:      geocode.RateLimit,
		},
		RateLimits: RateLimitsConfig{
			Submission:        LimitConfig{WindowMinutes: DefaultSubmissionWindow, Max: DefaultSubmissionMax},
			InstitutionSearch: LimitConfig{WindowMinutes: DefaultSearchWindow, Max: DefaultSearchMax},
			SubmitterSearch:   LimitConfig{WindowMinutes: DefaultSearchWindow, Max: DefaultSearchMax},
		},
		Search: SearchConfig{
			InstitutionLimit: DefaultSearchLimit,
			SubmitterLimit:   DefaultSearchLimit,
		},
	}
}

// Path returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/leadmap/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load reads the config file at path (Path() when empty) over the defaults
// and applies environment overrides. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = Path()
	}
	if path != "" {
		data, err := os.ReadFile(ExpandPath(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	limits := []struct {
		name string
		l    LimitConfig
	}{
		{"submission", c.RateLimits.Submission},
		{"institution_search", c.RateLimits.InstitutionSearch},
		{"submitter_search", c.RateLimits.SubmitterSearch},
	}
	for _, l := range limits {
		if l.l.WindowMinutes <= 0 {
			return fmt.Errorf("rate_limits.%s.window_minutes must be positive, got %d", l.name, l.l.WindowMinutes)
		}
		if l.l.Max <= 0 {
			return fmt.Errorf("rate_limits.%s.max must be positive, got %d", l.name, l.l.Max)
		}
	}
	if c.Search.InstitutionLimit <= 0 || c.Search.SubmitterLimit <= 0 {
		return errors.New("search limits must be positive")
	}
	if !c.Geocoder.Disabled {
		if c.Geocoder.URL == "" {
			return errors.New("geocoder.url is required unless the geocoder is disabled")
		}
		if c.Geocoder.Rate <= 0 {
			return fmt.Errorf("geocoder.rate must be positive, got %g", c.Geocoder.Rate)
		}
	}
	return nil
}

// DSN returns the database to open.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.DataDir, DBFile)
}

// Reviewer returns the identity recorded on approvals.
func (c *Config) Reviewer() string {
	if c.AdminUser == "" {
		return DefaultReviewer
	}
	return c.AdminUser
}

// RatePolicies converts the configured quotas for the rate limiter.
func (c *Config) RatePolicies() ratelimit.Policies {
	return ratelimit.Policies{
		ratelimit.TypeSubmission:        c.RateLimits.Submission.policy(),
		ratelimit.TypeInstitutionSearch: c.RateLimits.InstitutionSearch.policy(),
		ratelimit.TypeSubmitterSearch:   c.RateLimits.SubmitterSearch.policy(),
	}
}

func (l LimitConfig) policy() ratelimit.Policy {
	return ratelimit.Policy{
		Window: time.Duration(l.WindowMinutes) * time.Minute,
		Max:    l.Max,
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
