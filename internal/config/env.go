package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read on top of the config file.
const (
	EnvDatabaseURL            = "DATABASE_URL"
	EnvDataDir                = "DATA_DIR"
	EnvNominatimURL           = "NOMINATIM_URL"
	EnvUserAgent              = "USER_AGENT"
	EnvAdminUser              = "ADMIN_USER"
	EnvSubmissionWindow       = "SUBMISSION_RATE_LIMIT_WINDOW"
	EnvSubmissionMax          = "SUBMISSION_RATE_LIMIT_MAX"
	EnvSearchWindow           = "SEARCH_RATE_LIMIT_WINDOW"
	EnvSearchMax              = "SEARCH_RATE_LIMIT_MAX"
	EnvSubmitterSearchWindow  = "SUBMITTER_SEARCH_RATE_LIMIT_WINDOW"
	EnvSubmitterSearchMax     = "SUBMITTER_SEARCH_RATE_LIMIT_MAX"
	EnvInstitutionSearchLimit = "INSTITUTION_SEARCH_RESULT_LIMIT"
	EnvSubmitterSearchLimit   = "SUBMITTER_SEARCH_RESULT_LIMIT"
)

// LoadDotEnv loads variables from the given .env files (".env" when none)
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides file settings with environment variables. The
// submitter-search quota falls back to the general search variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(dst *int, keys ...string) {
		for _, key := range keys {
			v, ok := lookup(key)
			if !ok || v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: invalid integer %q", key, v)
				}
				return
			}
			*dst = n
			return
		}
	}

	str(EnvDatabaseURL, &c.DatabaseURL)
	str(EnvDataDir, &c.DataDir)
	str(EnvNominatimURL, &c.Geocoder.URL)
	str(EnvUserAgent, &c.Geocoder.UserAgent)
	str(EnvAdminUser, &c.AdminUser)

	rl := &c.RateLimits
	num(&rl.Submission.WindowMinutes, EnvSubmissionWindow)
	num(&rl.Submission.Max, EnvSubmissionMax)
	num(&rl.InstitutionSearch.WindowMinutes, EnvSearchWindow)
	num(&rl.InstitutionSearch.Max, EnvSearchMax)
	num(&rl.SubmitterSearch.WindowMinutes, EnvSubmitterSearchWindow, EnvSearchWindow)
	num(&rl.SubmitterSearch.Max, EnvSubmitterSearchMax, EnvSearchMax)

	num(&c.Search.InstitutionLimit, EnvInstitutionSearchLimit)
	num(&c.Search.SubmitterLimit, EnvSubmitterSearchLimit, EnvInstitutionSearchLimit)

	return firstErr
}
