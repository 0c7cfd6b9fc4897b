package service

import (
	"context"
	"fmt"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
	"judgeflow/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 100
	defaultSweepLockKey  = "judging:supervisor:lock"
)

// TimeoutSupervisor watches for sessions whose callbacks never arrive.
type TimeoutSupervisor interface {
	// Run blocks until ctx is done.
	Run(ctx context.Context) error
}

// NoopSupervisor does nothing. The client deadline is then the only thing
// that ends a session whose callbacks were lost.
type NoopSupervisor struct{}

// Run returns immediately without sweeping.
func (NoopSupervisor) Run(ctx context.Context) error {
	return nil
}

// SupervisorConfig configures SweepSupervisor.
type SupervisorConfig struct {
	Submissions repository.SubmissionRepository
	Results     repository.ResultRepository
	Cache       cache.Cache
	Publisher   repository.VerdictPublisher
	Policies    model.Policies

	Interval time.Duration
	// Grace is added to each mode's client deadline before a session counts as stale.
	Grace     time.Duration
	BatchSize int
	LockKey   string
	LockTTL   time.Duration
	Now       func() time.Time
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	TimedOut int
	Deleted  int
}

// SweepSupervisor periodically times out stale submit sessions and deletes
// stale run sessions. Only the instance holding the lock sweeps.
type SweepSupervisor struct {
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	cache       cache.Cache
	publisher   repository.VerdictPublisher
	policies    model.Policies
	interval    time.Duration
	grace       time.Duration
	batchSize   int
	lockKey     string
	lockTTL     time.Duration
	now         func() time.Time
}

// NewSweepSupervisor validates cfg and fills in interval, batch and lock defaults.
func NewSweepSupervisor(cfg SupervisorConfig) (*SweepSupervisor, error) {
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if cfg.LockKey == "" {
		cfg.LockKey = defaultSweepLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SweepSupervisor{
		submissions: cfg.Submissions,
		results:     cfg.Results,
		cache:       cfg.Cache,
		publisher:   cfg.Publisher,
		policies:    cfg.Policies.WithDefaults(),
		interval:    cfg.Interval,
		grace:       cfg.Grace,
		batchSize:   cfg.BatchSize,
		lockKey:     cfg.LockKey,
		lockTTL:     cfg.LockTTL,
		now:         cfg.Now,
	}, nil
}

func (s *SweepSupervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.Warn(ctx, "timeout sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass. It returns zero stats when another instance holds the lock.
func (s *SweepSupervisor) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	locked, err := s.cache.TryLock(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		return stats, fmt.Errorf("acquire sweep lock failed: %w", err)
	}
	if !locked {
		return stats, nil
	}
	defer func() {
		if err := s.cache.Unlock(context.WithoutCancel(ctx), s.lockKey); err != nil {
			logger.Warn(ctx, "release sweep lock failed", zap.Error(err))
		}
	}()

	now := s.now()
	for _, mode := range []model.Mode{model.ModeSubmit, model.ModeRun} {
		policy := s.policies.PolicyFor(mode)
		cutoff := now.Add(-(policy.ClientDeadline + s.grace))
		stale, err := s.submissions.ListStale(ctx, mode, cutoff, s.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list stale %s sessions failed: %w", mode, err)
		}
		for _, session := range stale {
			sessionCtx := logger.WithSubmission(ctx, session.ID)
			if session.Mode == model.ModeRun {
				if err := s.submissions.Delete(ctx, session.ID); err != nil {
					logger.Warn(sessionCtx, "delete stale run failed", zap.Error(err))
					continue
				}
				stats.Deleted++
				continue
			}
			_, applied, err := s.submissions.Finalize(ctx, session.ID, model.StatusTimeout, now)
			if err != nil {
				logger.Warn(sessionCtx, "time out stale submission failed", zap.Error(err))
				continue
			}
			if applied {
				stats.TimedOut++
				s.publishTimeout(sessionCtx, session.ID)
			}
		}
	}
	if stats.TimedOut > 0 || stats.Deleted > 0 {
		logger.Info(ctx, "timeout sweep finished",
			zap.Int("timed_out", stats.TimedOut),
			zap.Int("deleted", stats.Deleted),
		)
	}
	return stats, nil
}

func (s *SweepSupervisor) publishTimeout(ctx context.Context, submissionID string) {
	if s.publisher == nil {
		return
	}
	submission, err := s.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		logger.Warn(ctx, "load timed out submission failed", zap.Error(err))
		return
	}
	agg := model.Aggregate{Total: submission.TotalTestCases}
	if s.results != nil {
		if results, err := s.results.ListBySubmission(ctx, submissionID); err == nil {
			agg = model.Summarize(results, submission.TotalTestCases)
		}
	}
	finalizedAt := s.now()
	if submission.FinalizedAt != nil {
		finalizedAt = *submission.FinalizedAt
	}
	err = s.publisher.PublishFinal(ctx, newVerdictEvent(submission, agg, finalizedAt))
	if err != nil {
		logger.Warn(ctx, "publish timeout verdict failed", zap.Error(err))
	}
}
