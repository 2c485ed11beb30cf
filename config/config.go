// Package config loads the process configuration from a YAML file with
// IDEOGRAM_* environment overrides applied on top. Defaults come from the
// store's own DefaultConfig so the file only needs to name what it changes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/store"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// UpstreamConfig holds the vendor API settings.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single upstream exchange.
	Timeout time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Store    store.Config
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.ideogram.ai/v1",
			Timeout: 5 * time.Minute,
		},
		Store: store.DefaultConfig(),
	}
}

// fileConfig mirrors the YAML document. Durations are strings so "30m"
// style values work; pointers distinguish "absent" from zero.
type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Upstream struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`
	Store struct {
		Concurrency      *int     `yaml:"concurrency"`
		Retention        string   `yaml:"retention"`
		SweepInterval    string   `yaml:"sweep_interval"`
		ExpectedDuration string   `yaml:"expected_duration"`
		AdmissionRate    *float64 `yaml:"admission_rate"`
		AdmissionBurst   *int     `yaml:"admission_burst"`
		Retry            struct {
			MaxRetries   *int     `yaml:"max_retries"`
			InitialDelay string   `yaml:"initial_delay"`
			MaxDelay     string   `yaml:"max_delay"`
			Multiplier   *float64 `yaml:"multiplier"`
			Jitter       *bool    `yaml:"jitter"`
		} `yaml:"retry"`
	} `yaml:"store"`
}

// Load reads the YAML file at path (skipped when path is empty), overlays
// it on the defaults, and applies environment overrides last.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: read %s: %w", path, err)
		}

		var f fileConfig
		if err := yaml.Unmarshal(b, &f); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := merge(&c, &f); err != nil {
			return c, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnv(&c); err != nil {
		return c, err
	}

	return c, nil
}

// merge overlays the parsed file onto the defaults.
func merge(c *Config, f *fileConfig) error {
	if f.Server.Addr != "" {
		c.Server.Addr = f.Server.Addr
	}
	if f.Upstream.BaseURL != "" {
		c.Upstream.BaseURL = f.Upstream.BaseURL
	}
	if f.Upstream.APIKey != "" {
		c.Upstream.APIKey = f.Upstream.APIKey
	}

	var err error
	err = mergeDuration(err, &c.Upstream.Timeout, "upstream.timeout", f.Upstream.Timeout)

	if f.Store.Concurrency != nil {
		c.Store.Concurrency = *f.Store.Concurrency
	}
	err = mergeDuration(err, &c.Store.Retention, "store.retention", f.Store.Retention)
	err = mergeDuration(err, &c.Store.SweepInterval, "store.sweep_interval", f.Store.SweepInterval)
	err = mergeDuration(err, &c.Store.ExpectedDuration, "store.expected_duration", f.Store.ExpectedDuration)
	if f.Store.AdmissionRate != nil {
		c.Store.AdmissionRate = *f.Store.AdmissionRate
	}
	if f.Store.AdmissionBurst != nil {
		c.Store.AdmissionBurst = *f.Store.AdmissionBurst
	}

	if f.Store.Retry.MaxRetries != nil {
		c.Store.Retry.MaxRetries = *f.Store.Retry.MaxRetries
	}
	err = mergeDuration(err, &c.Store.Retry.InitialDelay, "store.retry.initial_delay", f.Store.Retry.InitialDelay)
	err = mergeDuration(err, &c.Store.Retry.MaxDelay, "store.retry.max_delay", f.Store.Retry.MaxDelay)
	if f.Store.Retry.Multiplier != nil {
		c.Store.Retry.Multiplier = *f.Store.Retry.Multiplier
	}
	if f.Store.Retry.Jitter != nil {
		c.Store.Retry.Jitter = *f.Store.Retry.Jitter
	}

	return err
}

func mergeDuration(err error, dst *time.Duration, field, value string) error {
	if err != nil || value == "" {
		return err
	}
	parsed, parseErr := time.ParseDuration(value)
	if parseErr != nil {
		return fmt.Errorf("%s=%q: %w", field, value, parseErr)
	}
	*dst = parsed
	return nil
}

// applyEnv overrides config fields from IDEOGRAM_* environment variables.
func applyEnv(c *Config) error {
	var err error

	setString(&c.Server.Addr, "IDEOGRAM_ADDR")
	setString(&c.Upstream.BaseURL, "IDEOGRAM_BASE_URL")
	setString(&c.Upstream.APIKey, "IDEOGRAM_API_KEY")

	err = firstErr(err, setDuration(&c.Upstream.Timeout, "IDEOGRAM_UPSTREAM_TIMEOUT"))
	err = firstErr(err, setInt(&c.Store.Concurrency, "IDEOGRAM_CONCURRENCY"))
	err = firstErr(err, setDuration(&c.Store.Retention, "IDEOGRAM_RETENTION"))
	err = firstErr(err, setDuration(&c.Store.SweepInterval, "IDEOGRAM_SWEEP_INTERVAL"))
	err = firstErr(err, setDuration(&c.Store.ExpectedDuration, "IDEOGRAM_EXPECTED_DURATION"))
	err = firstErr(err, setFloat(&c.Store.AdmissionRate, "IDEOGRAM_ADMISSION_RATE"))
	err = firstErr(err, setInt(&c.Store.Retry.MaxRetries, "IDEOGRAM_RETRY_MAX_RETRIES"))
	err = firstErr(err, setDuration(&c.Store.Retry.InitialDelay, "IDEOGRAM_RETRY_INITIAL_DELAY"))
	err = firstErr(err, setDuration(&c.Store.Retry.MaxDelay, "IDEOGRAM_RETRY_MAX_DELAY"))
	err = firstErr(err, setFloat(&c.Store.Retry.Multiplier, "IDEOGRAM_RETRY_MULTIPLIER"))
	err = firstErr(err, setBool(&c.Store.Retry.Jitter, "IDEOGRAM_RETRY_JITTER"))

	return err
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}
