package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string `yaml:"port"`
	LogLevel       string `yaml:"logLevel"`
	APIBaseURL     string `yaml:"apiBaseURL"`
	DataDir        string `yaml:"dataDir"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisKeyPrefix string `yaml:"redisKeyPrefix"`
	SigninPath     string `yaml:"signinPath"`
	HomePath       string `yaml:"homePath"`
	RequestTimeout string `yaml:"requestTimeout"`
}

// Load reads config from path (defaults to config.yaml) and applies
// SHOPFRONT_* environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("SHOPFRONT_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("SHOPFRONT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("SHOPFRONT_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("SHOPFRONT_DATA_DIR"); v != "" {
		cfg.DataDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("SHOPFRONT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("SHOPFRONT_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if cfg.SigninPath == "" {
		cfg.SigninPath = "/signin"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.APIBaseURL == "" {
		return errors.New("config: apiBaseURL is required (set in config.yaml or SHOPFRONT_API_BASE_URL)")
	}
	if strings.TrimSpace(cfg.DataDir) == "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: dataDir or redisAddr is required for device-local storage")
	}
	if !strings.HasPrefix(cfg.SigninPath, "/") || !strings.HasPrefix(cfg.HomePath, "/") {
		return errors.New("config: signinPath and homePath must be absolute paths")
	}
	return nil
}

// ParseRequestTimeout parses the optional remote request timeout.
func ParseRequestTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid requestTimeout duration: %w", err)
	}
	return dur, nil
}
