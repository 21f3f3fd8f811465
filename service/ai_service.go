package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
)

// ErrInvalidArtifact marks raw model output whose container shape cannot
// be parsed. The step that hit it fails; the pipeline records the failure
// and continues with whatever artifacts it has.
var ErrInvalidArtifact = errors.New("invalid artifact shape")

// ExtractionEngine is the LLM boundary. Every operation returns the raw
// model text alongside the parsed artifact so callers can persist it for
// audit even when parsing fails.
type ExtractionEngine interface {
	// MapDiagrams reads the exam PDF and the labeled figure preview sheet
	// and assigns each figure to a question and choice location.
	MapDiagrams(ctx context.Context, pdfPath, previewPath string) (types.DiagramMapping, string, error)

	// MapMarks classifies every question's type and marks allocation.
	MapMarks(ctx context.Context, pdfPath string) (types.MarksMapping, string, error)

	// ExtractQuestions produces the delimited Markdown question stream.
	ExtractQuestions(ctx context.Context, pdfPath string) (string, string, error)
}

// NewExtractionEngine selects the provider configured under ai.provider.
func NewExtractionEngine(cfg config.AIConfig, parsing config.ParsingConfig, logger *logrus.Logger) (ExtractionEngine, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiEngine(cfg.Gemini, parsing, logger)
	case "openai":
		return NewOpenAIEngine(cfg.OpenAI, parsing, logger), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}

func parseDiagramMapping(raw string) (types.DiagramMapping, error) {
	block, err := utils.ExtractJSONBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	var mapping types.DiagramMapping
	if err := json.Unmarshal([]byte(block), &mapping); err != nil {
		return nil, fmt.Errorf("%w: decode diagram mapping: %v", ErrInvalidArtifact, err)
	}
	return mapping, nil
}

func parseMarksMapping(raw string) (types.MarksMapping, error) {
	block, err := utils.ExtractJSONBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	var mapping types.MarksMapping
	if err := json.Unmarshal([]byte(block), &mapping); err != nil {
		return nil, fmt.Errorf("%w: decode marks mapping: %v", ErrInvalidArtifact, err)
	}
	return mapping, nil
}

func parseQuestionText(raw string) (string, error) {
	text := utils.ExtractMarkdownBlock(raw)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty question stream", ErrInvalidArtifact)
	}
	return text, nil
}
