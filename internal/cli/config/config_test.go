package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "judgectl.yaml", "prettyJSON: false\n")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.Timeout != DefaultTimeout {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StatePath != DefaultStatePath || cfg.HistoryPath != DefaultHistoryPath {
		t.Fatalf("unexpected paths: %+v", cfg)
	}
	if cfg.PrettyJSON == nil || *cfg.PrettyJSON {
		t.Fatalf("prettyJSON should stay false")
	}
	if cfg.Policies.Run.ClientDeadline != 30*time.Second || cfg.Policies.Submit.ClientDeadline != 600*time.Second {
		t.Fatalf("unexpected deadlines: %+v", cfg.Policies)
	}
	if cfg.Policies.Run.PollInterval != 3*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Policies.Run.PollInterval)
	}
}

func TestLoadReadsPoliciesAndEnvFile(t *testing.T) {
	path := writeFile(t, "judgectl.yaml", `
baseURL: http://yaml.local:3000/
policies:
  run:
    pollInterval: 1s
    clientDeadline: 10s
`)
	envFile := writeFile(t, ".env", EnvBaseURL+"=http://env.local:4000\n")
	t.Setenv(EnvBaseURL, "")
	_ = os.Unsetenv(EnvBaseURL)

	cfg, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://env.local:4000" {
		t.Fatalf("BaseURL = %s", cfg.BaseURL)
	}
	if cfg.Policies.Run.PollInterval != time.Second || cfg.Policies.Run.ClientDeadline != 10*time.Second {
		t.Fatalf("unexpected run policy: %+v", cfg.Policies.Run)
	}
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	cfg := Config{BaseURL: "http://yaml.local"}
	applyEnv(&cfg, func(string) (string, bool) { return "  ", true })
	if cfg.BaseURL != "http://yaml.local" {
		t.Fatalf("blank env should not override: %s", cfg.BaseURL)
	}
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	path := writeFile(t, "judgectl.yaml", "")
	if _, err := Load(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}
