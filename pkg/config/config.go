// Package config loads settings for the verifier binaries from the
// environment. Every setting has a default so a bare run needs none.
package config

import (
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultBaseURL      = "http://localhost:3000"
	DefaultOutDir       = "verification"
	DefaultTimeout      = 30 * time.Second
	DefaultVisible      = 5 * time.Second
	DefaultTemporalHost = "localhost:7233"
	DefaultPort         = "8080"
	TaskQueue           = "page-verification"
)

// VerifyConfig holds settings for a verification run
type VerifyConfig struct {
	BaseURL     string
	OutDir      string
	Timeout     time.Duration // Navigation and screenshots
	Visible     time.Duration // Each wait for visible text
	Headless    bool
	CheckResult bool
	ChromeBin   string
	MySQLDSN    string // Empty disables run history
}

// LoadVerifyConfig reads VERIFY_* variables plus CHROME_BIN and MYSQL_DSN
func LoadVerifyConfig(getenv func(string) string) (VerifyConfig, error) {
	cfg := VerifyConfig{
		BaseURL:   getEnvOrDefault(getenv, "VERIFY_BASE_URL", DefaultBaseURL),
		OutDir:    getEnvOrDefault(getenv, "VERIFY_OUT_DIR", DefaultOutDir),
		Timeout:   DefaultTimeout,
		Visible:   DefaultVisible,
		Headless:  true,
		ChromeBin: getenv("CHROME_BIN"),
		MySQLDSN:  getenv("MYSQL_DSN"),
	}

	var err error
	if cfg.Timeout, err = parseDuration(getenv, "VERIFY_TIMEOUT", cfg.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Visible, err = parseDuration(getenv, "VERIFY_VISIBLE_TIMEOUT", cfg.Visible); err != nil {
		return cfg, err
	}
	if cfg.Headless, err = parseBool(getenv, "VERIFY_HEADLESS", cfg.Headless); err != nil {
		return cfg, err
	}
	if cfg.CheckResult, err = parseBool(getenv, "VERIFY_CHECK_RESULT", false); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that cannot produce a run
func (c VerifyConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Visible <= 0 {
		return fmt.Errorf("visible timeout must be positive, got %s", c.Visible)
	}
	return nil
}

// ServiceConfig holds settings shared by the worker and API server
type ServiceConfig struct {
	Port          string
	TemporalHost  string
	MySQLDSN      string
	ScreenshotDir string
	Verify        VerifyConfig
}

// LoadServiceConfig reads PORT, TEMPORAL_HOST, MYSQL_DSN and SCREENSHOT_DIR
// on top of the verification settings
func LoadServiceConfig(getenv func(string) string) (ServiceConfig, error) {
	verify, err := LoadVerifyConfig(getenv)
	if err != nil {
		return ServiceConfig{}, err
	}

	return ServiceConfig{
		Port:          getEnvOrDefault(getenv, "PORT", DefaultPort),
		TemporalHost:  getEnvOrDefault(getenv, "TEMPORAL_HOST", DefaultTemporalHost),
		MySQLDSN:      verify.MySQLDSN,
		ScreenshotDir: getEnvOrDefault(getenv, "SCREENSHOT_DIR", verify.OutDir),
		Verify:        verify,
	}, nil
}

func getEnvOrDefault(getenv func(string) string, key, defaultVal string) string {
	if val := getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseBool(getenv func(string) string, key string, defaultVal bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseDuration(getenv func(string) string, key string, defaultVal time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
