package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"judgeflow/internal/judging/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:3000"
	DefaultTimeout     = 10 * time.Second
	DefaultStatePath   = "configs/judgectl_state.json"
	DefaultHistoryPath = "configs/judgectl_history"

	// EnvBaseURL overrides the configured service address.
	EnvBaseURL = "JUDGECTL_BASE_URL"
)

// Config holds judgectl configuration.
type Config struct {
	BaseURL     string         `yaml:"baseURL"`
	Timeout     time.Duration  `yaml:"timeout"`
	StatePath   string         `yaml:"statePath"`
	HistoryPath string         `yaml:"historyPath"`
	PrettyJSON  *bool          `yaml:"prettyJSON"`
	Policies    model.Policies `yaml:"policies"`
}

// Load reads the YAML file at path after loading envFile into the process
// environment. A missing env file is ignored.
func Load(path, envFile string) (Config, error) {
	cfg := Config{}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load env file failed: %w", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file failed: %w", err)
	}
	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		cfg.BaseURL = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *Config) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = DefaultHistoryPath
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
	cfg.Policies = cfg.Policies.WithDefaults()
}
