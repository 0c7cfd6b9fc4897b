package service

import (
	"context"
	"errors"
	"strings"

	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"
	appErr "judgeflow/pkg/errors"
	"judgeflow/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconcile records the verdict carried by one execution callback. It only
// writes the result row and never touches the submission aggregate.
func (s *JudgingService) Reconcile(ctx context.Context, resultID, sig string, payload model.CallbackPayload) error {
	resultID = strings.TrimSpace(resultID)
	if resultID == "" {
		return appErr.ValidationError("resultId", "required")
	}
	if _, err := uuid.Parse(resultID); err != nil {
		return appErr.ValidationError("resultId", "invalid")
	}
	if err := s.callbacks.Verify(resultID, sig); err != nil {
		return appErr.Wrapf(err, appErr.CallbackSignatureInvalid, "invalid callback signature")
	}
	if err := validateCallback(payload); err != nil {
		return err
	}

	update := model.ResultUpdate{
		ResultID:       resultID,
		Verdict:        model.VerdictFromExecution(*payload.Status.ID),
		ExecutionToken: *payload.Token,
		Stdout:         payload.Stdout,
		Stderr:         payload.Stderr,
		UpdatedAt:      s.now(),
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.results.Apply(ctxDB.ctx, update); err != nil {
		if errors.Is(err, repository.ErrResultNotFound) {
			logger.Warn(ctx, "callback for unknown test case result", zap.String("result_id", resultID))
			return appErr.New(appErr.UnknownResultID).WithDetail("result_id", resultID)
		}
		return appErr.Wrapf(err, appErr.DatabaseError, "apply test case result failed")
	}
	logger.Debug(ctx, "test case result recorded",
		zap.String("result_id", resultID),
		zap.String("verdict", update.Verdict.String()),
	)
	return nil
}

func validateCallback(payload model.CallbackPayload) error {
	if payload.Status == nil || payload.Status.ID == nil {
		return appErr.New(appErr.InvalidCallback).WithDetail("field", "status.id")
	}
	if payload.Token == nil || strings.TrimSpace(*payload.Token) == "" {
		return appErr.New(appErr.InvalidCallback).WithDetail("field", "token")
	}
	return nil
}
