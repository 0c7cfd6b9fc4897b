package controller

import (
	"net/http"

	"judgeflow/internal/judging/executor"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the judging API on router. The execution simulator is
// mounted only when sim is non-nil.
func RegisterRoutes(router gin.IRouter, svc JudgingService, sim *executor.Simulator) {
	router.GET("/healthz", Healthz)

	api := router.Group("/api")
	runController := NewRunController(svc)
	api.POST("/run", runController.Create)
	api.GET("/run/:runId", runController.Poll)

	submitController := NewSubmitController(svc)
	api.POST("/submit", submitController.Create)
	api.GET("/submit/:submissionId", submitController.Poll)

	webhookController := NewWebhookController(svc)
	api.POST("/webhook", webhookController.Handle)

	problemController := NewProblemController(svc)
	api.GET("/problems/:slug", problemController.Get)

	if sim != nil {
		router.POST("/dev/judge0/submissions", sim.Handle)
	}
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
