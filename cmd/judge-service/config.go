package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	commonmw "judgeflow/internal/common/http/middleware"
	"judgeflow/internal/common/mq"
	"judgeflow/internal/common/storage"
	"judgeflow/internal/judging/executor"
	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
	"judgeflow/internal/judging/service"
	"judgeflow/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:3000"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultVerdictTopic    = "judging.verdict.final"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string              `yaml:"addr"`
	ReadTimeout     time.Duration       `yaml:"readTimeout"`
	WriteTimeout    time.Duration       `yaml:"writeTimeout"`
	IdleTimeout     time.Duration       `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdownTimeout"`
	CORS            commonmw.CORSConfig `yaml:"cors"`
}

// EventsConfig holds final verdict publishing settings. Publishing is
// disabled when no brokers are configured.
type EventsConfig struct {
	Kafka mq.KafkaConfig `yaml:"kafka"`
	Topic string         `yaml:"topic"`
}

// CacheTTLConfig holds repository cache lifetimes.
type CacheTTLConfig struct {
	Submission   time.Duration `yaml:"submission"`
	Problem      time.Duration `yaml:"problem"`
	ProblemEmpty time.Duration `yaml:"problemEmpty"`
}

// DispatchConfig bounds the execution fan-out.
type DispatchConfig struct {
	MaxWidth int `yaml:"maxWidth"`
}

// JudgingConfig holds the session settings.
type JudgingConfig struct {
	Policies       model.Policies          `yaml:"policies"`
	MaxCodeBytes   int                     `yaml:"maxCodeBytes"`
	IdempotencyTTL time.Duration           `yaml:"idempotencyTTL"`
	RateLimit      service.RateLimitConfig `yaml:"rateLimit"`
	Timeouts       service.TimeoutConfig   `yaml:"timeouts"`
	Dispatch       DispatchConfig          `yaml:"dispatch"`
	CacheTTL       CacheTTLConfig          `yaml:"cacheTTL"`
}

// SupervisorConfig enables the stale session sweeper.
type SupervisorConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Grace     time.Duration `yaml:"grace"`
	BatchSize int           `yaml:"batchSize"`
}

// AppConfig holds judge-service configuration.
type AppConfig struct {
	Server     ServerConfig                  `yaml:"server"`
	Logger     logger.Config                 `yaml:"logger"`
	Database   db.MySQLConfig                `yaml:"database"`
	Redis      cache.RedisConfig             `yaml:"redis"`
	MinIO      storage.MinIOConfig           `yaml:"minio"`
	Fixtures   repository.FixtureStoreConfig `yaml:"fixtures"`
	Judge0     executor.Judge0Config         `yaml:"judge0"`
	Callback   executor.CallbackConfig       `yaml:"callback"`
	Simulator  executor.SimulatorConfig      `yaml:"simulator"`
	Events     EventsConfig                  `yaml:"events"`
	Judging    JudgingConfig                 `yaml:"judging"`
	Supervisor SupervisorConfig              `yaml:"supervisor"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads an optional .env file, the YAML file at path and then
// applies environment overrides and defaults.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg, os.LookupEnv)
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("JUDGE0_URL", &cfg.Judge0.BaseURL)
	set("WEBHOOK_URL", &cfg.Callback.PublicBaseURL)
	set("JUDGEFLOW_DATABASE_DSN", &cfg.Database.DSN)
	set("JUDGEFLOW_REDIS_ADDR", &cfg.Redis.Addr)
	set("JUDGEFLOW_CALLBACK_SECRET", &cfg.Callback.Secret)
	set("JUDGEFLOW_MINIO_ACCESS_KEY", &cfg.MinIO.AccessKey)
	set("JUDGEFLOW_MINIO_SECRET_KEY", &cfg.MinIO.SecretKey)
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	dbDefaults := db.DefaultMySQLConfig()
	if cfg.Database.MaxOpenConnections == 0 {
		cfg.Database.MaxOpenConnections = dbDefaults.MaxOpenConnections
	}
	if cfg.Database.MaxIdleConnections == 0 {
		cfg.Database.MaxIdleConnections = dbDefaults.MaxIdleConnections
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = dbDefaults.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = dbDefaults.ConnMaxIdleTime
	}

	redisDefaults := cache.DefaultRedisConfig()
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = redisDefaults.DialTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = redisDefaults.ReadTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = redisDefaults.WriteTimeout
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = redisDefaults.PoolSize
	}

	if cfg.Fixtures.Bucket == "" {
		cfg.Fixtures.Bucket = cfg.MinIO.Bucket
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaultVerdictTopic
	}

	cfg.Judging.Policies = cfg.Judging.Policies.WithDefaults()
	if cfg.Judging.Policies.Run.FixtureLimit == 0 {
		cfg.Judging.Policies.Run.FixtureLimit = model.DefaultSampleFixtureCount
	}
	if cfg.Judging.MaxCodeBytes == 0 {
		cfg.Judging.MaxCodeBytes = 64 * 1024
	}
	if cfg.Judging.IdempotencyTTL == 0 {
		cfg.Judging.IdempotencyTTL = 10 * time.Minute
	}
	if cfg.Judging.RateLimit.Window == 0 {
		cfg.Judging.RateLimit.Window = time.Minute
	}
	if cfg.Judging.Timeouts.DB == 0 {
		cfg.Judging.Timeouts.DB = 3 * time.Second
	}
	if cfg.Judging.Timeouts.Cache == 0 {
		cfg.Judging.Timeouts.Cache = time.Second
	}
	if cfg.Judging.Timeouts.Storage == 0 {
		cfg.Judging.Timeouts.Storage = 5 * time.Second
	}
	if cfg.Judging.Timeouts.Dispatch == 0 {
		cfg.Judging.Timeouts.Dispatch = 10 * time.Second
	}
	if cfg.Judging.Timeouts.Publish == 0 {
		cfg.Judging.Timeouts.Publish = 3 * time.Second
	}

	if cfg.Callback.PublicBaseURL == "" {
		return fmt.Errorf("callback publicBaseURL (WEBHOOK_URL) is required")
	}
	if cfg.Judge0.BaseURL == "" {
		if !cfg.Simulator.Enabled {
			return fmt.Errorf("judge0 baseURL (JUDGE0_URL) is required")
		}
		cfg.Judge0.BaseURL = strings.TrimRight(cfg.Callback.PublicBaseURL, "/") + "/dev/judge0"
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	return nil
}
