package controller

import (
	"context"

	"judgeflow/internal/judging/model"
)

// JudgingService is the service surface used by the HTTP controllers.
type JudgingService interface {
	Create(ctx context.Context, req model.CreateRequest) (model.Created, error)
	Poll(ctx context.Context, mode model.Mode, submissionID string) (model.PollResult, error)
	Reconcile(ctx context.Context, resultID, sig string, payload model.CallbackPayload) error
	GetProblem(ctx context.Context, slug string) (*model.ProblemView, error)
}
