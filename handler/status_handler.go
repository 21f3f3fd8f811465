package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openpariksha/pariksha-be/service"
	"github.com/openpariksha/pariksha-be/types"
)

type StatusHandler struct {
	provider string
	dataDir  string
	pipeline *service.PipelineService
}

func NewStatusHandler(provider, dataDir string, pipeline *service.PipelineService) *StatusHandler {
	return &StatusHandler{
		provider: provider,
		dataDir:  dataDir,
		pipeline: pipeline,
	}
}

func (h *StatusHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StatusHandler) HandleStatus(c *gin.Context) {
	total, active, err := h.pipeline.CountRuns(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, types.StatusResponse{
		Status:     "ok",
		Provider:   h.provider,
		DataDir:    h.dataDir,
		ActiveRuns: int(active),
		TotalRuns:  int(total),
	})
}
