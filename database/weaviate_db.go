package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

var (
	QUESTION_CARD_CLASS        = "QuestionCard"
	QUESTION_CARD_CLASS_OBJECT = &models.Class{
		Class: QUESTION_CARD_CLASS,
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "paper", DataType: []string{"text"}},
			{Name: "questionNumber", DataType: []string{"text"}},
			{Name: "questionType", DataType: []string{"text"}},
			{Name: "marks", DataType: []string{"text"}},
			{Name: "questionText", DataType: []string{"text"}},
			{Name: "hasDiagram", DataType: []string{"boolean"}},
			{Name: "hasInternalChoice", DataType: []string{"boolean"}},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
	}
)

type WeaviateIndex struct {
	client *weaviate.Client
}

func NewWeaviateIndex(cfg config.IndexConfig) (*WeaviateIndex, error) {
	var scheme string
	if strings.Contains(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		wcfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	QUESTION_CARD_CLASS_OBJECT.Vectorizer = cfg.Text2Vec
	QUESTION_CARD_CLASS_OBJECT.ModuleConfig = map[string]interface{}{
		cfg.Text2Vec: map[string]interface{}{
			"vectorizeClassName": false,
		},
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}

	schema, err := client.Schema().Getter().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %v", err)
	}

	hasCardClass := false
	for _, class := range schema.Classes {
		if class.Class == QUESTION_CARD_CLASS {
			hasCardClass = true
			break
		}
	}
	// Create QuestionCard class if it doesn't exist
	if !hasCardClass {
		err = client.Schema().ClassCreator().WithClass(QUESTION_CARD_CLASS_OBJECT).Do(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create QuestionCard class: %v", err)
		}
	}
	return &WeaviateIndex{
		client: client,
	}, nil
}

func (s *WeaviateIndex) ReInit() error {
	err := s.client.Schema().ClassDeleter().WithClassName(QUESTION_CARD_CLASS).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to delete QuestionCard class: %v", err)
	}

	err = s.client.Schema().ClassCreator().WithClass(QUESTION_CARD_CLASS_OBJECT).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create QuestionCard class: %v", err)
	}
	return nil
}

func (s *WeaviateIndex) IndexCards(ctx context.Context, paper string, cards []types.QuestionCard) error {
	now := time.Now().Unix()
	total := len(cards)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			batcher = batcher.WithObjects(&models.Object{
				Class:      QUESTION_CARD_CLASS,
				Properties: cardProperties(paper, cards[j], now),
			})
		}

		_, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to index batch %d-%d: %v", i, end, err)
		}

		log.Printf("Indexed batch %d-%d of %d cards for %s", i, end, total, paper)
	}

	return nil
}

func (s *WeaviateIndex) DeleteCards(ctx context.Context, paper string) error {
	where := filters.Where().
		WithPath([]string{"paper"}).
		WithOperator(filters.Equal).
		WithValueString(paper)
	result, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(QUESTION_CARD_CLASS).
		WithWhere(where).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete indexed cards for %s: %v", paper, err)
	}
	if result != nil && result.Results != nil {
		log.Printf("Removed %d indexed cards for %s", result.Results.Successful, paper)
	}
	return nil
}

func (s *WeaviateIndex) SearchCards(ctx context.Context, query, paper string, questionTypes []string, limit int) ([]types.SearchHit, error) {
	fields := []graphql.Field{
		{Name: "paper"},
		{Name: "questionNumber"},
		{Name: "questionType"},
		{Name: "marks"},
		{Name: "questionText"},
		{Name: "hasDiagram"},
		{Name: "hasInternalChoice"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}, {Name: "id"}}},
	}

	getBuilder := s.client.GraphQL().Get().
		WithClassName(QUESTION_CARD_CLASS).
		WithFields(fields...).
		WithNearText((&graphql.NearTextArgumentBuilder{}).
			WithConcepts([]string{query}))
	if limit > 0 {
		getBuilder = getBuilder.WithLimit(limit)
	}
	if where := buildCardFilter(paper, questionTypes); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %v", err)
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}

	root, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	data, ok := root[QUESTION_CARD_CLASS].([]interface{})
	if !ok {
		return nil, nil
	}

	var hits []types.SearchHit
	for _, item := range data {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hit := types.SearchHit{
			Paper:      asString(obj["paper"]),
			HasDiagram: asBool(obj["hasDiagram"]),
			Card: types.QuestionCard{
				QuestionNumber:    asString(obj["questionNumber"]),
				QuestionType:      asString(obj["questionType"]),
				Marks:             asString(obj["marks"]),
				QuestionText:      asString(obj["questionText"]),
				HasInternalChoice: asBool(obj["hasInternalChoice"]),
			},
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				hit.Distance = float32(distance)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// cardProperties flattens one card into the indexed object. content is
// the vectorized text; the rest are filter and display fields.
func cardProperties(paper string, card types.QuestionCard, createdAt int64) map[string]interface{} {
	return map[string]interface{}{
		"content":           cardSearchText(card),
		"paper":             paper,
		"questionNumber":    card.QuestionNumber,
		"questionType":      card.QuestionType,
		"marks":             card.Marks,
		"questionText":      card.QuestionText,
		"hasDiagram":        cardHasDiagram(card),
		"hasInternalChoice": card.HasInternalChoice,
		"createdAt":         createdAt,
	}
}

// cardSearchText joins every text fragment on the card so a query can
// hit sub-parts and either side of an internal choice.
func cardSearchText(card types.QuestionCard) string {
	parts := make([]string, 0, 4)
	if card.QuestionText != "" {
		parts = append(parts, card.QuestionText)
	}
	parts = append(parts, card.Options...)
	for _, sub := range card.SubParts {
		if sub.Text != "" {
			parts = append(parts, sub.Text)
		}
	}
	for _, choice := range card.Choices {
		if choice.Text != "" {
			parts = append(parts, choice.Text)
		}
		parts = append(parts, choice.Options...)
	}
	return strings.Join(parts, "\n")
}

func cardHasDiagram(card types.QuestionCard) bool {
	if len(card.Diagrams) > 0 {
		return true
	}
	for _, choice := range card.Choices {
		if len(choice.Diagrams) > 0 {
			return true
		}
	}
	return false
}

func buildCardFilter(paper string, questionTypes []string) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if paper != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"paper"}).
			WithOperator(filters.Equal).
			WithValueString(paper))
	}

	if len(questionTypes) == 1 {
		operands = append(operands, filters.Where().
			WithPath([]string{"questionType"}).
			WithOperator(filters.Equal).
			WithValueString(questionTypes[0]))
	} else if len(questionTypes) > 1 {
		typeFilters := make([]*filters.WhereBuilder, 0, len(questionTypes))
		for _, qt := range questionTypes {
			typeFilters = append(typeFilters, filters.Where().
				WithPath([]string{"questionType"}).
				WithOperator(filters.Equal).
				WithValueString(qt))
		}
		operands = append(operands, filters.Where().
			WithOperator(filters.Or).
			WithOperands(typeFilters))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
