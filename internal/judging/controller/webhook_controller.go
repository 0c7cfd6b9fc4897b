package controller

import (
	"judgeflow/internal/judging/executor"
	"judgeflow/internal/judging/model"
	appErr "judgeflow/pkg/errors"
	"judgeflow/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// WebhookController receives per-test-case callbacks from the execution service.
type WebhookController struct {
	svc JudgingService
}

func NewWebhookController(svc JudgingService) *WebhookController {
	return &WebhookController{svc: svc}
}

// Handle reconciles one callback.
func (h *WebhookController) Handle(c *gin.Context) {
	resultID := c.Query(executor.ResultIDParam)
	if resultID == "" {
		resultID = c.Query(executor.LegacyResultIDParam)
	}
	if resultID == "" {
		response.Error(c, appErr.ValidationError(executor.ResultIDParam, "required"))
		return
	}

	var payload model.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InvalidCallback, "invalid callback body"))
		return
	}
	if err := h.svc.Reconcile(c.Request.Context(), resultID, c.Query(executor.SignatureParam), payload); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"resultId": resultID})
}
