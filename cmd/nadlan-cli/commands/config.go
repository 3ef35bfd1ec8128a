package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"nadlan-export/internal/components/retry"
	"nadlan-export/internal/exporter"
	"nadlan-export/internal/scrapers/nadlan"
	"nadlan-export/lib/configutil"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

const (
	envBaseUrl = "NADLAN_BASE_URL"
	envLogFile = "NADLAN_LOG_FILE"
)

// exported when neither a city nor a neighborhood is configured
const defaultNeighborhoodID = "65210992"

type RetryConfig struct {
	MaxAttempts     int     `json:"max_attempts"`
	InitialInterval string  `json:"initial_interval"`
	MaxInterval     string  `json:"max_interval"`
	Multiplier      float64 `json:"multiplier"`
}

type Config struct {
	BaseUrl           string      `json:"base_url"`
	Timeout           string      `json:"timeout"`
	RequestsPerSecond float64     `json:"requests_per_second"`
	Retry             RetryConfig `json:"retry"`

	PageDelay     string `json:"page_delay"`
	MaxPages      int    `json:"max_pages"`
	SkipMalformed bool   `json:"skip_malformed"`

	CityID         string `json:"city_id"`
	NeighborhoodID string `json:"neighborhood_id"`

	CSVPath     string `json:"csv_path"`
	SQLitePath  string `json:"sqlite_path"`
	PreviewRows int    `json:"preview_rows"`
	LogFile     string `json:"log_file"`
}

func defaultConfig() Config {
	return Config{
		BaseUrl:           nadlan.DefaultBaseUrl,
		Timeout:           "60s",
		RequestsPerSecond: 2,
		Retry: RetryConfig{
			MaxAttempts:     6,
			InitialInterval: "1s",
			MaxInterval:     "60s",
			Multiplier:      2,
		},
		PageDelay:   nadlan.DefaultPageDelay.String(),
		MaxPages:    10,
		CSVPath:     "tzur_igal.csv",
		PreviewRows: exporter.DefaultPreviewRows,
		LogFile:     "debug.log",
	}
}

// loadConfig decodes the json5 config at path (when it exists) over the defaults,
// so a field set in the file always wins, zero values included. Environment
// overrides are applied last, taken from the process environment first and
// envFile second.
func loadConfig(path string, required bool, envFile string) (Config, error) {
	cfg, found, err := configutil.ReadOptional(path, false, defaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if !found && required {
		return Config{}, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	if cfg.CityID == "" && cfg.NeighborhoodID == "" {
		cfg.NeighborhoodID = defaultNeighborhoodID
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return dotenv[key]
	}

	// unset variables are empty and leave the config alone
	env := Config{
		BaseUrl: lookup(envBaseUrl),
		LogFile: lookup(envLogFile),
	}
	err = mergo.Merge(&cfg, env, mergo.WithOverride)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func (c Config) retryPolicy() (retry.Policy, error) {
	initial, err := parseDuration("retry.initial_interval", c.Retry.InitialInterval)
	if err != nil {
		return retry.Policy{}, err
	}
	maxInterval, err := parseDuration("retry.max_interval", c.Retry.MaxInterval)
	if err != nil {
		return retry.Policy{}, err
	}
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = c.Retry.MaxAttempts
	policy.InitialInterval = initial
	policy.MaxInterval = maxInterval
	policy.Multiplier = c.Retry.Multiplier
	return policy, nil
}

func (c Config) clientOptions() (nadlan.ClientOptions, error) {
	timeout, err := parseDuration("timeout", c.Timeout)
	if err != nil {
		return nadlan.ClientOptions{}, err
	}
	policy, err := c.retryPolicy()
	if err != nil {
		return nadlan.ClientOptions{}, err
	}
	return nadlan.ClientOptions{
		BaseUrl:           c.BaseUrl,
		Timeout:           timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Retry:             policy,
	}, nil
}

func (c Config) pagerOptions() (nadlan.PagerOptions, error) {
	delay, err := parseDuration("page_delay", c.PageDelay)
	if err != nil {
		return nadlan.PagerOptions{}, err
	}
	return nadlan.PagerOptions{
		MaxPages:      c.MaxPages,
		Delay:         delay,
		SkipMalformed: c.SkipMalformed,
	}, nil
}
