package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/database"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/types"
)

const defaultSearchLimit = 10

// ErrIndexDisabled reports a search against an unconfigured index.
var ErrIndexDisabled = errors.New("question-bank index is not configured")

// IndexService pushes finalized card sets into the question-bank index
// and serves semantic search over them. A nil index disables the
// component: indexing becomes a no-op and search reports unavailable.
type IndexService struct {
	index     database.CardIndex
	artifacts repository.ArtifactRepo
	logger    *logrus.Logger
}

func NewIndexService(index database.CardIndex, artifacts repository.ArtifactRepo, logger *logrus.Logger) *IndexService {
	return &IndexService{index: index, artifacts: artifacts, logger: logger}
}

func (s *IndexService) Enabled() bool {
	return s.index != nil
}

// IndexPaper replaces the indexed cards of one paper with its stored
// card set, so the index always holds exactly one generation per paper.
func (s *IndexService) IndexPaper(ctx context.Context, paper string) error {
	if s.index == nil {
		s.logger.WithField("paper", paper).Debug("question-bank index disabled, skipping")
		return nil
	}

	set, err := s.artifacts.LoadCardSet(paper)
	if err != nil {
		return fmt.Errorf("load card set for %s: %w", paper, err)
	}
	if set == nil {
		return fmt.Errorf("no card set for %s, generate cards first", paper)
	}

	if err := s.index.DeleteCards(ctx, paper); err != nil {
		return fmt.Errorf("clear indexed cards for %s: %w", paper, err)
	}
	if err := s.index.IndexCards(ctx, paper, set.Cards); err != nil {
		return fmt.Errorf("index cards for %s: %w", paper, err)
	}

	s.logger.WithFields(logrus.Fields{
		"paper": paper,
		"cards": len(set.Cards),
	}).Info("card set indexed")
	return nil
}

// Search runs a near-text query over the indexed cards.
func (s *IndexService) Search(ctx context.Context, req *types.SearchCardsRequest) ([]types.SearchHit, error) {
	if s.index == nil {
		return nil, ErrIndexDisabled
	}
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search query is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.index.SearchCards(ctx, req.Query, req.Paper, req.Types, limit)
}
