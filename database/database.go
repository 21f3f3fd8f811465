package database

import (
	"context"

	"github.com/openpariksha/pariksha-be/types"
)

// CardIndex is the vector-search surface over indexed question cards.
// Implementations own the class schema; callers only see cards in and
// search hits out.
type CardIndex interface {
	// IndexCards inserts one paper's finalized cards. Callers that re-run
	// a paper should DeleteCards first so the class holds one generation.
	IndexCards(ctx context.Context, paper string, cards []types.QuestionCard) error
	DeleteCards(ctx context.Context, paper string) error

	// SearchCards runs a near-text query, optionally restricted to one
	// paper and a set of question types. limit <= 0 means no limit.
	SearchCards(ctx context.Context, query, paper string, questionTypes []string, limit int) ([]types.SearchHit, error)

	// ReInit drops and recreates the class, losing every indexed card.
	ReInit() error
}
