package controller

import (
	"judgeflow/internal/judging/model"
	"judgeflow/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RunController handles sample run endpoints.
type RunController struct {
	svc JudgingService
}

func NewRunController(svc JudgingService) *RunController {
	return &RunController{svc: svc}
}

// Create starts a run session against the sample fixtures.
func (h *RunController) Create(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	created, err := h.svc.Create(c.Request.Context(), model.CreateRequest{
		Mode:        model.ModeRun,
		UserID:      req.UserID,
		ProblemSlug: req.ProblemSlug,
		LanguageID:  req.LanguageID,
		Code:        req.Code,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	testCases := created.TestCases
	if testCases == nil {
		testCases = []model.RunTestCase{}
	}
	response.Accepted(c, RunResponse{RunID: created.ID, TestCases: testCases})
}

// Poll returns the run status, deleting the session once it completes.
func (h *RunController) Poll(c *gin.Context) {
	runID := c.Param("runId")
	if runID == "" {
		response.BadRequest(c, "Invalid run id")
		return
	}
	res, err := h.svc.Poll(c.Request.Context(), model.ModeRun, runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res.Run)
}

// RunRequest defines the run payload.
type RunRequest struct {
	UserID      int64  `json:"userId"`
	ProblemSlug string `json:"problemSlug" binding:"required"`
	LanguageID  int    `json:"languageId" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// RunResponse defines the run creation response.
type RunResponse struct {
	RunID     string              `json:"runId"`
	TestCases []model.RunTestCase `json:"testCases"`
}
