package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".tenderscan"

// File is the on-disk configuration. Every field is optional; pointer
// fields distinguish "not set" from a zero value.
type File struct {
	BaseURL     string            `yaml:"baseURL" toml:"baseURL"`
	StartPage   *int              `yaml:"startPage" toml:"startPage"`
	LastPage    *int              `yaml:"lastPage" toml:"lastPage"`
	MaxCount    *int              `yaml:"maxCount" toml:"maxCount"`
	Concurrency *int              `yaml:"concurrency" toml:"concurrency"`
	Timeout     string            `yaml:"timeout" toml:"timeout"`
	MaxRetries  *int              `yaml:"maxRetries" toml:"maxRetries"`
	UserAgent   string            `yaml:"userAgent" toml:"userAgent"`
	MaxBodySize *int64            `yaml:"maxBodySize" toml:"maxBodySize"`
	Proxy       string            `yaml:"proxy" toml:"proxy"`
	Headers     map[string]string `yaml:"headers" toml:"headers"`
	Format      string            `yaml:"format" toml:"format"`
	OutputDir   string            `yaml:"outputDir" toml:"outputDir"`
	ListenAddr  string            `yaml:"listenAddr" toml:"listenAddr"`
	Schedule    string            `yaml:"schedule" toml:"schedule"`
	DBDir       string            `yaml:"dbDir" toml:"dbDir"`
	SaveToDB    *bool             `yaml:"saveToDB" toml:"saveToDB"`
}

// LoadConfigFile reads a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Headers == nil {
		cf.Headers = make(map[string]string)
	}
	return &cf, nil
}

// Apply copies the settings present in the file onto cfg.
func (f *File) Apply(cfg *Config) error {
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	setInt(&cfg.StartPage, f.StartPage)
	setInt(&cfg.LastPage, f.LastPage)
	setInt(&cfg.MaxCount, f.MaxCount)
	setInt(&cfg.Concurrency, f.Concurrency)
	setInt(&cfg.MaxRetries, f.MaxRetries)
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimeout, f.Timeout)
		}
		cfg.Timeout = d
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.MaxBodySize != nil {
		cfg.MaxBodySize = *f.MaxBodySize
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.Format != "" {
		cfg.Format = strings.ToLower(f.Format)
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.Schedule != "" {
		cfg.Schedule = f.Schedule
	}
	if f.DBDir != "" {
		cfg.DBDir = f.DBDir
	}
	if f.SaveToDB != nil {
		cfg.SaveToDB = *f.SaveToDB
	}
	return nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .tenderscan in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .tenderscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Load builds a Config from defaults, the configuration file and the
// environment. An explicit configPath that does not exist is an error; a
// missing default file is not. Command-line flags are applied by the
// caller afterwards, followed by Validate.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		if f != nil {
			if err := f.Apply(cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			cfg.ConfigFilePath = path
		}
	}

	if err := ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}
