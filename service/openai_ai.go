package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/types"
)

// OpenAIEngine targets OpenAI-compatible chat APIs behind a configurable
// base URL. Attachments ride as base64 data URLs on image parts; the
// multimodal gateways this engine is pointed at accept PDFs that way too.
type OpenAIEngine struct {
	client  *openai.Client
	model   string
	prompts promptSet
	logger  *logrus.Logger
}

func NewOpenAIEngine(cfg config.OpenAIConfig, parsing config.ParsingConfig, logger *logrus.Logger) *OpenAIEngine {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIEngine{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		prompts: buildPrompts(parsing),
		logger:  logger,
	}
}

func (e *OpenAIEngine) MapDiagrams(ctx context.Context, pdfPath, previewPath string) (types.DiagramMapping, string, error) {
	pdfPart, err := fileDataURL(pdfPath, "application/pdf")
	if err != nil {
		return nil, "", err
	}
	imgPart, err := fileDataURL(previewPath, "image/png")
	if err != nil {
		return nil, "", err
	}

	raw, err := e.complete(ctx, e.prompts.diagramSystem, e.prompts.diagramUser, pdfPart, imgPart)
	if err != nil {
		return nil, "", err
	}
	mapping, err := parseDiagramMapping(raw)
	if err != nil {
		return nil, raw, err
	}
	return mapping, raw, nil
}

func (e *OpenAIEngine) MapMarks(ctx context.Context, pdfPath string) (types.MarksMapping, string, error) {
	pdfPart, err := fileDataURL(pdfPath, "application/pdf")
	if err != nil {
		return nil, "", err
	}

	raw, err := e.complete(ctx, e.prompts.marksSystem, e.prompts.marksUser, pdfPart)
	if err != nil {
		return nil, "", err
	}
	mapping, err := parseMarksMapping(raw)
	if err != nil {
		return nil, raw, err
	}
	return mapping, raw, nil
}

func (e *OpenAIEngine) ExtractQuestions(ctx context.Context, pdfPath string) (string, string, error) {
	pdfPart, err := fileDataURL(pdfPath, "application/pdf")
	if err != nil {
		return "", "", err
	}

	raw, err := e.complete(ctx, e.prompts.questionSystem, e.prompts.questionUser, pdfPart)
	if err != nil {
		return "", "", err
	}
	text, err := parseQuestionText(raw)
	if err != nil {
		return "", raw, err
	}
	return text, raw, nil
}

func (e *OpenAIEngine) complete(ctx context.Context, systemPrompt, userPrompt string, attachments ...openai.ChatMessagePart) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(attachments)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: userPrompt,
	})
	parts = append(parts, attachments...)

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, MultiContent: parts},
			},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response generated")
	}
	return resp.Choices[0].Message.Content, nil
}

func fileDataURL(path, mimeType string) (openai.ChatMessagePart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return openai.ChatMessagePart{}, err
	}
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
		},
	}, nil
}
