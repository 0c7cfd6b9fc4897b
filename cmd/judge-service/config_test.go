package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"judgeflow/internal/judging/model"
)

const sampleConfig = `
server:
  addr: "127.0.0.1:3001"
database:
  dsn: "root:pw@tcp(localhost:3306)/judgeflow?parseTime=true"
redis:
  addr: "localhost:6379"
minio:
  endpoint: "localhost:9000"
  bucket: "fixtures"
callback:
  publicBaseURL: "http://localhost:3001"
judging:
  policies:
    submit:
      clientDeadline: 5m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "judge_service.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	_, err := loadAppConfig(writeConfig(t, sampleConfig), "")
	if err == nil {
		t.Fatalf("expected missing judge0 url to fail without the simulator")
	}

	cfg, err := loadAppConfig(writeConfig(t, sampleConfig+"simulator:\n  enabled: true\n"), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Judge0.BaseURL != "http://localhost:3001/dev/judge0" {
		t.Fatalf("simulator should back judge0, got %q", cfg.Judge0.BaseURL)
	}
	if cfg.Fixtures.Bucket != "fixtures" || cfg.Events.Topic != defaultVerdictTopic {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Fixtures, cfg.Events)
	}
	p := cfg.Judging.Policies
	if p.Submit.ClientDeadline != 5*time.Minute || p.Run.ClientDeadline != model.DefaultRunDeadline {
		t.Fatalf("unexpected deadlines: %+v", p)
	}
	if p.Run.FixtureLimit != model.DefaultSampleFixtureCount || p.Run.Mode != model.ModeRun {
		t.Fatalf("unexpected run policy: %+v", p.Run)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout || cfg.Database.MaxOpenConnections == 0 {
		t.Fatalf("server and pool defaults missing")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"JUDGE0_URL":                 "http://judge0:2358",
		"WEBHOOK_URL":                "https://api.example.com",
		"JUDGEFLOW_DATABASE_DSN":     "dsn-from-env",
		"JUDGEFLOW_REDIS_ADDR":       "redis:6379",
		"JUDGEFLOW_CALLBACK_SECRET":  "s3cret",
		"JUDGEFLOW_MINIO_ACCESS_KEY": "ak",
		"JUDGEFLOW_MINIO_SECRET_KEY": "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	var cfg AppConfig
	cfg.MinIO.SecretKey = "from-yaml"
	applyEnvOverrides(&cfg, lookup)

	if cfg.Judge0.BaseURL != "http://judge0:2358" || cfg.Callback.PublicBaseURL != "https://api.example.com" {
		t.Fatalf("legacy names not applied: %+v %+v", cfg.Judge0, cfg.Callback)
	}
	if cfg.Database.DSN != "dsn-from-env" || cfg.Redis.Addr != "redis:6379" || cfg.Callback.Secret != "s3cret" {
		t.Fatalf("overrides not applied")
	}
	if cfg.MinIO.AccessKey != "ak" || cfg.MinIO.SecretKey != "from-yaml" {
		t.Fatalf("blank values must not override: %+v", cfg.MinIO)
	}
}

func TestLoadAppConfigEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("JUDGE0_URL=http://judge0.local:2358\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("JUDGE0_URL") })

	cfg, err := loadAppConfig(writeConfig(t, sampleConfig), envPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Judge0.BaseURL != "http://judge0.local:2358" {
		t.Fatalf("env file not applied, got %q", cfg.Judge0.BaseURL)
	}

	if _, err := loadAppConfig(writeConfig(t, sampleConfig), filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("a missing env file is not an error: %v", err)
	}
}
