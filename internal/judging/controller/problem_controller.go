package controller

import (
	"judgeflow/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController serves catalog reads.
type ProblemController struct {
	svc JudgingService
}

func NewProblemController(svc JudgingService) *ProblemController {
	return &ProblemController{svc: svc}
}

// Get returns a problem with its editable stubs.
func (h *ProblemController) Get(c *gin.Context) {
	view, err := h.svc.GetProblem(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
