package controller

import (
	"strings"

	"judgeflow/internal/judging/model"
	"judgeflow/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmitController handles graded submission endpoints.
type SubmitController struct {
	svc JudgingService
}

func NewSubmitController(svc JudgingService) *SubmitController {
	return &SubmitController{svc: svc}
}

// Create handles submission requests.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	created, err := h.svc.Create(c.Request.Context(), model.CreateRequest{
		Mode:           model.ModeSubmit,
		UserID:         req.UserID,
		ProblemSlug:    req.ProblemSlug,
		LanguageID:     req.LanguageID,
		Code:           req.Code,
		ClientIP:       c.ClientIP(),
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, SubmitResponse{SubmissionID: created.ID})
}

// Poll returns the submission status or the full record once judged.
func (h *SubmitController) Poll(c *gin.Context) {
	submissionID := c.Param("submissionId")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	res, err := h.svc.Poll(c.Request.Context(), model.ModeSubmit, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res.Submission)
}

// SubmitRequest defines the submission payload.
type SubmitRequest struct {
	UserID      int64  `json:"userId" binding:"required"`
	ProblemSlug string `json:"problemSlug" binding:"required"`
	LanguageID  int    `json:"languageId" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// SubmitResponse defines the submission creation response.
type SubmitResponse struct {
	SubmissionID string `json:"submissionId"`
}
