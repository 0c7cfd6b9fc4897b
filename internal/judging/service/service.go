package service

import (
	"context"
	"fmt"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
)

const (
	defaultIdempotencyTTL = 10 * time.Minute
	defaultMaxCodeBytes   = 64 * 1024
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx db.Transaction) error) error
}

// CallbackURLs builds and verifies the per-result callback address.
type CallbackURLs interface {
	URL(resultID, submissionID string) (string, error)
	Verify(resultID, sig string) error
}

// RateLimitConfig holds throttling configuration for session creation.
type RateLimitConfig struct {
	UserMax int           `yaml:"userMax"`
	IPMax   int           `yaml:"ipMax"`
	Window  time.Duration `yaml:"window"`
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB       time.Duration `yaml:"db"`
	Cache    time.Duration `yaml:"cache"`
	Storage  time.Duration `yaml:"storage"`
	Dispatch time.Duration `yaml:"dispatch"`
	Publish  time.Duration `yaml:"publish"`
}

// Config holds judging service dependencies and settings.
type Config struct {
	Submissions repository.SubmissionRepository
	Results     repository.ResultRepository
	Problems    repository.ProblemRepository
	Fixtures    repository.FixtureStore
	Tx          TxRunner
	Dispatcher  *Dispatcher
	Callbacks   CallbackURLs

	// Cache backs rate limiting and idempotency. Both are skipped when nil.
	Cache cache.Cache
	// Publisher receives final submit verdicts. Optional.
	Publisher repository.VerdictPublisher

	Policies       model.Policies
	MaxCodeBytes   int
	IdempotencyTTL time.Duration
	RateLimit      RateLimitConfig
	Timeouts       TimeoutConfig
	Now            func() time.Time
}

// JudgingService creates grading sessions, reconciles callbacks and resolves polls.
type JudgingService struct {
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	problems    repository.ProblemRepository
	fixtures    repository.FixtureStore
	tx          TxRunner
	dispatcher  *Dispatcher
	callbacks   CallbackURLs
	cache       cache.Cache
	publisher   repository.VerdictPublisher

	policies       model.Policies
	maxCodeBytes   int
	idempotencyTTL time.Duration
	rateLimit      RateLimitConfig
	timeouts       TimeoutConfig
	now            func() time.Time
}

// NewJudgingService validates cfg and creates the service.
func NewJudgingService(cfg Config) (*JudgingService, error) {
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result repository is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Fixtures == nil {
		return nil, fmt.Errorf("fixture store is required")
	}
	if cfg.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Callbacks == nil {
		return nil, fmt.Errorf("callback urls are required")
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JudgingService{
		submissions:    cfg.Submissions,
		results:        cfg.Results,
		problems:       cfg.Problems,
		fixtures:       cfg.Fixtures,
		tx:             cfg.Tx,
		dispatcher:     cfg.Dispatcher,
		callbacks:      cfg.Callbacks,
		cache:          cfg.Cache,
		publisher:      cfg.Publisher,
		policies:       cfg.Policies.WithDefaults(),
		maxCodeBytes:   cfg.MaxCodeBytes,
		idempotencyTTL: cfg.IdempotencyTTL,
		rateLimit:      cfg.RateLimit,
		timeouts:       cfg.Timeouts,
		now:            cfg.Now,
	}, nil
}

// Policy returns the variant policy for mode.
func (s *JudgingService) Policy(mode model.Mode) model.VariantPolicy {
	return s.policies.PolicyFor(mode)
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
