package service

import (
	"context"
	"strings"

	"judgeflow/internal/judging/model"
	appErr "judgeflow/pkg/errors"

	"github.com/gosimple/slug"
)

// GetProblem returns a catalog problem with the editable stub for each language.
func (s *JudgingService) GetProblem(ctx context.Context, problemSlug string) (*model.ProblemView, error) {
	problemSlug = strings.TrimSpace(problemSlug)
	if problemSlug == "" {
		return nil, appErr.ValidationError("slug", "required")
	}
	if !slug.IsSlug(problemSlug) {
		return nil, appErr.ValidationError("slug", "invalid")
	}
	problem, err := s.getProblem(ctx, problemSlug)
	if err != nil {
		return nil, err
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	boilerplates, err := s.problems.ListBoilerplates(ctxDB.ctx, problem.ID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list boilerplates failed")
	}
	if boilerplates == nil {
		boilerplates = []model.Boilerplate{}
	}
	return &model.ProblemView{Problem: *problem, Boilerplates: boilerplates}, nil
}
