package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
	appErr "judgeflow/pkg/errors"
	"judgeflow/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	idempotencyKeyPrefix = "judging:idempotency:"
	rateKeyPrefix        = "judging:rate:"
	processingMarker     = "processing"
)

// Create starts a run or submit session and dispatches its test cases.
func (s *JudgingService) Create(ctx context.Context, req model.CreateRequest) (model.Created, error) {
	if err := s.validateCreate(req); err != nil {
		return model.Created{}, err
	}
	policy := s.policies.PolicyFor(req.Mode)

	if err := s.checkRateLimit(ctx, req.Mode, req.UserID, req.ClientIP); err != nil {
		return model.Created{}, err
	}

	idemKey := ""
	if req.Mode == model.ModeSubmit {
		idemKey = strings.TrimSpace(req.IdempotencyKey)
	}
	acquired, existingID, err := s.acquireIdempotency(ctx, idemKey)
	if err != nil {
		return model.Created{}, err
	}
	if !acquired && existingID != "" {
		return model.Created{ID: existingID, Mode: req.Mode}, nil
	}

	created, job, err := s.createSession(ctx, req, policy)
	if err != nil {
		s.releaseIdempotency(ctx, idemKey, acquired)
		return model.Created{}, err
	}
	s.finalizeIdempotency(ctx, idemKey, created.ID, acquired)

	s.dispatcher.Dispatch(ctx, job)
	logger.Info(ctx, "judging session created",
		zap.String("submission_id", created.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("test_cases", len(job.Cases)),
	)
	return created, nil
}

func (s *JudgingService) createSession(ctx context.Context, req model.CreateRequest, policy model.VariantPolicy) (model.Created, DispatchJob, error) {
	problem, err := s.getProblem(ctx, req.ProblemSlug)
	if err != nil {
		return model.Created{}, DispatchJob{}, err
	}

	fixtures, err := s.fetchFixtures(ctx, problem.Slug)
	if err != nil {
		return model.Created{}, DispatchJob{}, err
	}
	fixtures = policy.SelectFixtures(fixtures)
	if len(fixtures) == 0 {
		return model.Created{}, DispatchJob{}, appErr.Newf(appErr.TestCaseNotFound, "no test cases found for %s", problem.Slug)
	}

	source := req.Code
	if policy.MergeBoilerplate {
		source, err = s.mergeSource(ctx, problem.ID, req.LanguageID, req.Code)
		if err != nil {
			return model.Created{}, DispatchJob{}, err
		}
	}

	now := s.now()
	for attempt := 1; ; attempt++ {
		session := newSession(req, problem.ID, fixtures, source, now)
		err = s.insertSession(ctx, session)
		if err == nil {
			return session.created, session.job, nil
		}
		if !errors.Is(err, repository.ErrDuplicateID) || attempt == maxCreateAttempts {
			return model.Created{}, DispatchJob{}, appErr.Wrapf(err, appErr.DatabaseError, "create submission failed")
		}
		logger.Warn(ctx, "session id collision, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
}

const maxCreateAttempts = 3

type pendingSession struct {
	submission *model.Submission
	results    []model.TestCaseResult
	created    model.Created
	job        DispatchJob
}

// newSession assigns fresh ids to the submission and every result row.
func newSession(req model.CreateRequest, problemID int64, fixtures []model.Fixture, source string, now time.Time) pendingSession {
	submission := &model.Submission{
		ID:             uuid.NewString(),
		Mode:           req.Mode,
		UserID:         req.UserID,
		ProblemID:      problemID,
		LanguageID:     req.LanguageID,
		Code:           req.Code,
		Status:         model.StatusProcessing,
		Token:          req.Mode.Token(now),
		TotalTestCases: len(fixtures),
		CreatedAt:      now,
	}
	out := pendingSession{
		submission: submission,
		results:    make([]model.TestCaseResult, len(fixtures)),
		created:    model.Created{ID: submission.ID, Mode: req.Mode},
		job: DispatchJob{
			SubmissionID: submission.ID,
			LanguageID:   req.LanguageID,
			Source:       source,
			Cases:        make([]DispatchCase, len(fixtures)),
		},
	}
	for i, f := range fixtures {
		out.results[i] = model.TestCaseResult{
			ID:           uuid.NewString(),
			SubmissionID: submission.ID,
			Ordinal:      i,
			Verdict:      model.VerdictPending,
			UpdatedAt:    now,
		}
		out.job.Cases[i] = DispatchCase{ResultID: out.results[i].ID, Stdin: f.Input, Expected: f.Output}
		if req.Mode == model.ModeRun {
			out.created.TestCases = append(out.created.TestCases, model.RunTestCase{
				ResultID:       out.results[i].ID,
				Input:          f.Input,
				ExpectedOutput: f.Output,
			})
		}
	}
	return out
}

func (s *JudgingService) insertSession(ctx context.Context, sess pendingSession) error {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	return s.tx.Transaction(ctxDB.ctx, func(tx db.Transaction) error {
		if err := s.submissions.Create(ctxDB.ctx, tx, sess.submission); err != nil {
			return err
		}
		return s.results.CreateBatch(ctxDB.ctx, tx, sess.results)
	})
}

// MergeSource splices code into scaffold in place of the first occurrence of stub.
func MergeSource(scaffold, stub, code string) (string, bool) {
	if stub == "" || !strings.Contains(scaffold, stub) {
		return "", false
	}
	return strings.Replace(scaffold, stub, code, 1), true
}

func (s *JudgingService) mergeSource(ctx context.Context, problemID int64, languageID int, code string) (string, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	bp, err := s.problems.GetBoilerplate(ctxDB.ctx, problemID, languageID)
	if err != nil {
		if errors.Is(err, repository.ErrBoilerplateNotFound) {
			return "", appErr.New(appErr.BoilerplateNotFound).
				WithDetail("problem_id", problemID).
				WithDetail("language_id", languageID)
		}
		return "", appErr.Wrapf(err, appErr.DatabaseError, "get boilerplate failed")
	}
	merged, ok := MergeSource(bp.FullScaffold, bp.EditableStub, code)
	if !ok {
		return "", appErr.MergeError(problemID, languageID)
	}
	return merged, nil
}

func (s *JudgingService) getProblem(ctx context.Context, problemSlug string) (*model.Problem, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	problem, err := s.problems.GetBySlug(ctxDB.ctx, problemSlug)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return nil, appErr.Newf(appErr.ProblemNotFound, "problem %s not found", problemSlug)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get problem failed")
	}
	return problem, nil
}

func (s *JudgingService) fetchFixtures(ctx context.Context, problemSlug string) ([]model.Fixture, error) {
	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	fixtures, err := s.fixtures.FetchFixtures(ctxStorage.ctx, problemSlug)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "fetch test cases failed")
	}
	return fixtures, nil
}

func (s *JudgingService) validateCreate(req model.CreateRequest) error {
	if _, err := model.ParseMode(string(req.Mode)); err != nil {
		return appErr.ValidationError("mode", "invalid")
	}
	if strings.TrimSpace(req.ProblemSlug) == "" {
		return appErr.ValidationError("problemSlug", "required")
	}
	if !slug.IsSlug(req.ProblemSlug) {
		return appErr.ValidationError("problemSlug", "invalid")
	}
	if req.LanguageID <= 0 {
		return appErr.ValidationError("languageId", "required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return appErr.ValidationError("code", "required")
	}
	if len(req.Code) > s.maxCodeBytes {
		return appErr.New(appErr.CodeTooLarge).WithMessage("source code too large")
	}
	if req.UserID < 0 {
		return appErr.ValidationError("userId", "invalid")
	}
	if req.Mode == model.ModeSubmit && req.UserID == 0 {
		return appErr.ValidationError("userId", "required")
	}
	return nil
}

func (s *JudgingService) acquireIdempotency(ctx context.Context, key string) (bool, string, error) {
	if key == "" || s.cache == nil {
		return true, "", nil
	}
	cacheKey := idempotencyKeyPrefix + key
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	existing, err := s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}
	ok, err := s.cache.SetNX(ctxCache.ctx, cacheKey, processingMarker, s.idempotencyTTL)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "reserve idempotency key failed")
	}
	if ok {
		return true, "", nil
	}
	existing, err = s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}
	return false, "", appErr.New(appErr.TooManyRequests).WithMessage("request is processing")
}

func (s *JudgingService) finalizeIdempotency(ctx context.Context, key, submissionID string, acquired bool) {
	if !acquired || key == "" || s.cache == nil {
		return
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Set(ctxCache.ctx, idempotencyKeyPrefix+key, submissionID, s.idempotencyTTL); err != nil {
		logger.Warn(ctx, "update idempotency key failed", zap.Error(err))
	}
}

func (s *JudgingService) releaseIdempotency(ctx context.Context, key string, acquired bool) {
	if !acquired || key == "" || s.cache == nil {
		return
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Del(ctxCache.ctx, idempotencyKeyPrefix+key); err != nil {
		logger.Warn(ctx, "release idempotency key failed", zap.Error(err))
	}
}

func (s *JudgingService) checkRateLimit(ctx context.Context, mode model.Mode, userID int64, clientIP string) error {
	if s.cache == nil || s.rateLimit.Window <= 0 || (s.rateLimit.UserMax <= 0 && s.rateLimit.IPMax <= 0) {
		return nil
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	prefix := rateKeyPrefix + string(mode) + ":"
	if s.rateLimit.UserMax > 0 && userID > 0 {
		if err := s.checkRateCounter(ctxCache.ctx, fmt.Sprintf("%suser:%d", prefix, userID), s.rateLimit.UserMax); err != nil {
			return err
		}
	}
	if s.rateLimit.IPMax > 0 && clientIP != "" {
		if err := s.checkRateCounter(ctxCache.ctx, prefix+"ip:"+clientIP, s.rateLimit.IPMax); err != nil {
			return err
		}
	}
	return nil
}

func (s *JudgingService) checkRateCounter(ctx context.Context, key string, max int) error {
	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	if count == 1 {
		if err := s.cache.Expire(ctx, key, s.rateLimit.Window); err != nil {
			logger.Warn(ctx, "set rate limit window failed", zap.String("key", key), zap.Error(err))
		}
	}
	if int(count) > max {
		return appErr.New(appErr.SubmitTooFrequently).WithMessage("submit too frequently")
	}
	return nil
}
