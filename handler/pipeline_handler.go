package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/service"
	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
)

type PipelineHandler struct {
	pipeline *service.PipelineService
	logger   *logrus.Logger
}

func NewPipelineHandler(pipeline *service.PipelineService, logger *logrus.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// HandleProcessPipeline starts a full run for the requested paper and
// returns the created run without waiting; progress arrives over the
// websocket and GET /api/v1/runs/:id.
func (h *PipelineHandler) HandleProcessPipeline(c *gin.Context) {
	var req types.ProcessPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	pdfPath, err := h.pipeline.ResolvePDF(req.Paper)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	run, err := h.pipeline.StartRun(pdfPath)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, types.DataResponse{
		Status:  "success",
		Message: "pipeline started",
		Data:    run,
	})
}

func (h *PipelineHandler) HandleListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		sendError(c, http.StatusBadRequest, "Invalid limit")
		return
	}
	runs, err := h.pipeline.ListRuns(c.Request.Context(), c.Query("paper"), c.QueryArray("status"), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, runs)
}

func (h *PipelineHandler) HandleGetRun(c *gin.Context) {
	run, err := h.pipeline.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrRunNotFound) {
		sendError(c, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, run)
}

// HandleExtractDiagrams runs the diagram-extraction step alone.
func (h *PipelineHandler) HandleExtractDiagrams(c *gin.Context) {
	var req types.ExtractDiagramsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	pdfPath, err := h.pipeline.ResolvePDF(req.Paper)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	meta, err := h.pipeline.ExtractDiagrams(c.Request.Context(), pdfPath)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, meta)
}

// HandleMapDiagrams runs the diagram-mapping step alone, against the
// recorded preview sheet unless the request names one.
func (h *PipelineHandler) HandleMapDiagrams(c *gin.Context) {
	var req types.MapDiagramsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	pdfPath, err := h.pipeline.ResolvePDF(req.Paper)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	preview, err := h.pipeline.PreviewPath(req.Preview)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	mapping, err := h.pipeline.MapDiagrams(c.Request.Context(), pdfPath, preview)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, mapping)
}

func (h *PipelineHandler) HandleExtractMarks(c *gin.Context) {
	var req types.ExtractMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	pdfPath, err := h.pipeline.ResolvePDF(req.Paper)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	mapping, err := h.pipeline.MapMarks(c.Request.Context(), pdfPath)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, mapping)
}

func (h *PipelineHandler) HandleExtractQuestions(c *gin.Context) {
	var req types.ExtractQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	pdfPath, err := h.pipeline.ResolvePDF(req.Paper)
	if err != nil {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	text, err := h.pipeline.ExtractQuestions(c.Request.Context(), pdfPath)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, gin.H{
		"paper": utils.Stem(pdfPath),
		"text":  text,
	})
}
