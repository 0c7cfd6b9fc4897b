package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
	appErr "judgeflow/pkg/errors"
	"judgeflow/pkg/utils/logger"

	"go.uber.org/zap"
)

// Poll returns the current view of a session, finalizing it once every
// result is terminal. Resolved run sessions are deleted after the view is built.
func (s *JudgingService) Poll(ctx context.Context, mode model.Mode, submissionID string) (model.PollResult, error) {
	if _, err := model.ParseMode(string(mode)); err != nil {
		return model.PollResult{}, appErr.ValidationError("mode", "invalid")
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return model.PollResult{}, appErr.ValidationError("submissionId", "required")
	}
	ctx = logger.WithSubmission(ctx, submissionID)

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return model.PollResult{}, err
	}
	if submission == nil || submission.Mode != mode {
		if mode == model.ModeRun {
			return completedRun(nil), nil
		}
		return model.PollResult{}, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
	}

	results, err := s.listResults(ctx, submissionID)
	if err != nil {
		return model.PollResult{}, err
	}
	if len(results) == 0 && mode == model.ModeRun {
		// Rows are inserted with the session, so none left means another
		// poller resolved and deleted it after our read.
		return completedRun(nil), nil
	}
	agg := model.Summarize(results, submission.TotalTestCases)

	if !submission.Status.IsTerminal() {
		if !agg.Resolved() {
			return processingView(mode, agg, results), nil
		}
		finalized, err := s.finalize(ctx, submission, agg)
		if err != nil {
			return model.PollResult{}, err
		}
		if finalized == nil {
			if mode == model.ModeRun {
				return completedRun(results), nil
			}
			return model.PollResult{}, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
		}
		submission = finalized
	}

	var res model.PollResult
	if mode == model.ModeRun {
		res = completedRun(results)
	} else {
		res = model.PollResult{Mode: mode, Submission: terminalView(submission, agg, results)}
	}
	if !s.policies.PolicyFor(mode).RetainAfterResolve {
		s.cleanup(ctx, submissionID)
	}
	return res, nil
}

func (s *JudgingService) loadSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	submission, err := s.submissions.GetByID(ctxDB.ctx, nil, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return submission, nil
}

func (s *JudgingService) listResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	results, err := s.results.ListBySubmission(ctxDB.ctx, submissionID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list test case results failed")
	}
	return results, nil
}

// finalize applies the computed verdict. When another writer got there first
// the stored status is returned instead. A nil submission means the session
// was deleted in the meantime.
func (s *JudgingService) finalize(ctx context.Context, submission *model.Submission, agg model.Aggregate) (*model.Submission, error) {
	at := s.now()
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()

	effective, applied, err := s.submissions.Finalize(ctxDB.ctx, submission.ID, agg.Status(), at)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		logger.Debug(ctx, "session removed before finalize", zap.String("mode", string(submission.Mode)))
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SubmissionFinalizeFailed, "finalize submission failed")
	}

	finalized := *submission
	finalized.Status = effective
	if applied {
		finalized.FinalizedAt = &at
		logger.Info(ctx, "submission finalized",
			zap.String("mode", string(submission.Mode)),
			zap.String("status", effective.String()),
			zap.Int("passed", agg.Passed),
			zap.Int("total", agg.Total),
		)
		if submission.Mode == model.ModeSubmit {
			s.publishFinal(ctx, &finalized, agg)
		}
		return &finalized, nil
	}

	if submission.Mode == model.ModeSubmit {
		if stored, err := s.loadSubmission(ctx, submission.ID); err == nil && stored != nil {
			return stored, nil
		}
	}
	return &finalized, nil
}

func (s *JudgingService) publishFinal(ctx context.Context, submission *model.Submission, agg model.Aggregate) {
	if s.publisher == nil {
		return
	}
	finalizedAt := s.now()
	if submission.FinalizedAt != nil {
		finalizedAt = *submission.FinalizedAt
	}
	ctxPub := withTimeout(ctx, s.timeouts.Publish)
	defer ctxPub.cancel()
	err := s.publisher.PublishFinal(ctxPub.ctx, newVerdictEvent(submission, agg, finalizedAt))
	if err != nil {
		logger.Warn(ctx, "publish final verdict failed", zap.Error(err))
	}
}

func (s *JudgingService) cleanup(ctx context.Context, submissionID string) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.submissions.Delete(ctxDB.ctx, submissionID); err != nil {
		logger.Warn(ctx, "delete resolved session failed", zap.Error(err))
	}
}

func completedRun(results []model.TestCaseResult) model.PollResult {
	return model.PollResult{
		Mode: model.ModeRun,
		Run: &model.RunView{
			Status:  model.RunStatusCompleted,
			Results: model.ToResultViews(results),
		},
	}
}

func processingView(mode model.Mode, agg model.Aggregate, results []model.TestCaseResult) model.PollResult {
	if mode == model.ModeRun {
		return model.PollResult{
			Mode: mode,
			Run: &model.RunView{
				Status:  model.RunStatusProcessing,
				Results: model.ToResultViews(results),
			},
		}
	}
	return model.PollResult{
		Mode: mode,
		Submission: &model.SubmissionView{
			StatusID:       model.StatusProcessing,
			Message:        model.ProcessingMessage,
			FinishedCount:  agg.Finished,
			TotalTestCases: agg.Total,
		},
	}
}

func terminalView(submission *model.Submission, agg model.Aggregate, results []model.TestCaseResult) *model.SubmissionView {
	passed := agg.Passed
	createdAt := submission.CreatedAt
	var finalizedAt *time.Time
	if submission.FinalizedAt != nil {
		t := *submission.FinalizedAt
		finalizedAt = &t
	}
	return &model.SubmissionView{
		SubmissionID:   submission.ID,
		UserID:         submission.UserID,
		ProblemID:      submission.ProblemID,
		LanguageID:     submission.LanguageID,
		Code:           submission.Code,
		StatusID:       submission.Status,
		Status:         submission.Status.String(),
		Token:          submission.Token,
		CreatedAt:      &createdAt,
		FinalizedAt:    finalizedAt,
		Results:        model.ToResultViews(results),
		PassedCount:    &passed,
		FinishedCount:  agg.Finished,
		TotalTestCases: agg.Total,
	}
}

func newVerdictEvent(submission *model.Submission, agg model.Aggregate, finalizedAt time.Time) model.VerdictEvent {
	return model.VerdictEvent{
		SubmissionID:   submission.ID,
		UserID:         submission.UserID,
		ProblemID:      submission.ProblemID,
		LanguageID:     submission.LanguageID,
		StatusID:       submission.Status,
		Status:         submission.Status.String(),
		PassedCount:    agg.Passed,
		TotalTestCases: agg.Total,
		FinalizedAt:    finalizedAt,
	}
}
