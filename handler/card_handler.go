package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/service"
	"github.com/openpariksha/pariksha-be/types"
)

type CardHandler struct {
	cards  *service.CardService
	index  *service.IndexService
	logger *logrus.Logger
}

func NewCardHandler(cards *service.CardService, index *service.IndexService, logger *logrus.Logger) *CardHandler {
	return &CardHandler{
		cards:  cards,
		index:  index,
		logger: logger,
	}
}

// HandleGenerateCards rebuilds the card set from the stored artifacts and
// returns it. The stored set is always the full one; the response is
// filtered when the request carries a filter.
func (h *CardHandler) HandleGenerateCards(c *gin.Context) {
	var req types.GenerateCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Paper == "" {
		sendError(c, http.StatusBadRequest, "paper is required")
		return
	}

	set, err := h.cards.GenerateCards(req.Paper)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if h.index.Enabled() {
		if err := h.index.IndexPaper(c.Request.Context(), req.Paper); err != nil {
			h.logger.WithError(err).WithField("paper", req.Paper).Warn("reindex after card generation")
		}
	}

	if req.Filter != nil {
		filtered := *set
		filtered.Cards = service.ApplyCardFilter(set.Cards, *req.Filter)
		sendSuccess(c, &filtered)
		return
	}
	sendSuccess(c, set)
}

// HandleListPapers lists every paper with a stored card set.
func (h *CardHandler) HandleListPapers(c *gin.Context) {
	papers, err := h.cards.Papers()
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, papers)
}

// HandleGetCards serves a stored card set, filtered by query parameters
// when any are present.
func (h *CardHandler) HandleGetCards(c *gin.Context) {
	paper := c.Param("paper")
	set, err := h.cards.Cards(paper)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if set == nil {
		sendError(c, http.StatusNotFound, fmt.Sprintf("no cards generated for %s", paper))
		return
	}

	if filter, ok := cardFilterFromQuery(c); ok {
		filtered := *set
		filtered.Cards = service.ApplyCardFilter(set.Cards, filter)
		sendSuccess(c, &filtered)
		return
	}
	sendSuccess(c, set)
}

func (h *CardHandler) HandleGetSummary(c *gin.Context) {
	paper := c.Param("paper")
	set, err := h.cards.Cards(paper)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if set == nil {
		sendError(c, http.StatusNotFound, fmt.Sprintf("no cards generated for %s", paper))
		return
	}
	sendSuccess(c, set.Summary)
}

// HandleSearch runs a near-text query over the question-bank index.
func (h *CardHandler) HandleSearch(c *gin.Context) {
	req := &types.SearchCardsRequest{
		Query: c.Query("q"),
		Paper: c.Query("paper"),
		Types: c.QueryArray("type"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			sendError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		req.Limit = limit
	}
	if req.Query == "" {
		sendError(c, http.StatusBadRequest, "query parameter q is required")
		return
	}

	hits, err := h.index.Search(c.Request.Context(), req)
	if errors.Is(err, service.ErrIndexDisabled) {
		sendError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, hits)
}

func cardFilterFromQuery(c *gin.Context) (types.CardFilter, bool) {
	var filter types.CardFilter
	var any bool

	if qTypes := c.QueryArray("type"); len(qTypes) > 0 {
		filter.Types = qTypes
		any = true
	}
	if marks := c.Query("marks"); marks != "" {
		filter.Marks = marks
		any = true
	}
	if raw, ok := c.GetQuery("with_diagrams"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.WithDiagrams = &v
			any = true
		}
	}
	if raw, ok := c.GetQuery("with_internal_choice"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.WithInternalChoice = &v
			any = true
		}
	}
	return filter, any
}
