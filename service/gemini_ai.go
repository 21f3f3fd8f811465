package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/types"
)

// GeminiEngine drives extraction through the Gemini Files API. A failed
// request rotates to the next configured key and retries once; the RWMutex
// keeps rotation from closing the client under a concurrent request.
type GeminiEngine struct {
	apiKeys    []string
	currentKey int
	client     *genai.Client
	model      *genai.GenerativeModel
	modelName  string
	prompts    promptSet
	logger     *logrus.Logger
	mu         sync.RWMutex
}

type fileArg struct {
	path string
	mime string
}

func NewGeminiEngine(cfg config.GeminiConfig, parsing config.ParsingConfig, logger *logrus.Logger) (*GeminiEngine, error) {
	keys := cfg.Keys()
	if len(keys) == 0 {
		return nil, errors.New("no Gemini API keys provided")
	}

	engine := &GeminiEngine{
		apiKeys:   keys,
		modelName: cfg.Model,
		prompts:   buildPrompts(parsing),
		logger:    logger,
	}
	if err := engine.initClient(); err != nil {
		return nil, err
	}
	return engine, nil
}

func (e *GeminiEngine) initClient() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initClientLocked()
}

func (e *GeminiEngine) initClientLocked() error {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(e.apiKeys[e.currentKey]))
	if err != nil {
		return err
	}
	e.client = client
	model := client.GenerativeModel(e.modelName)
	model.SetTemperature(0)
	e.model = model
	return nil
}

func (e *GeminiEngine) rotateAPIKey() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentKey = (e.currentKey + 1) % len(e.apiKeys)
	if err := e.client.Close(); err != nil {
		return err
	}
	return e.initClientLocked()
}

func (e *GeminiEngine) MapDiagrams(ctx context.Context, pdfPath, previewPath string) (types.DiagramMapping, string, error) {
	raw, err := e.run(ctx, []fileArg{
		{path: pdfPath, mime: "application/pdf"},
		{path: previewPath, mime: "image/png"},
	}, e.prompts.diagramSystem, e.prompts.diagramUser)
	if err != nil {
		return nil, "", err
	}
	mapping, err := parseDiagramMapping(raw)
	if err != nil {
		return nil, raw, err
	}
	return mapping, raw, nil
}

func (e *GeminiEngine) MapMarks(ctx context.Context, pdfPath string) (types.MarksMapping, string, error) {
	raw, err := e.run(ctx, []fileArg{
		{path: pdfPath, mime: "application/pdf"},
	}, e.prompts.marksSystem, e.prompts.marksUser)
	if err != nil {
		return nil, "", err
	}
	mapping, err := parseMarksMapping(raw)
	if err != nil {
		return nil, raw, err
	}
	return mapping, raw, nil
}

func (e *GeminiEngine) ExtractQuestions(ctx context.Context, pdfPath string) (string, string, error) {
	raw, err := e.run(ctx, []fileArg{
		{path: pdfPath, mime: "application/pdf"},
	}, e.prompts.questionSystem, e.prompts.questionUser)
	if err != nil {
		return "", "", err
	}
	text, err := parseQuestionText(raw)
	if err != nil {
		return "", raw, err
	}
	return text, raw, nil
}

// run performs one upload-and-generate attempt, rotating the API key and
// retrying once on failure. Files are re-uploaded on retry because an
// uploaded file belongs to the key that uploaded it.
func (e *GeminiEngine) run(ctx context.Context, files []fileArg, systemPrompt, userPrompt string) (string, error) {
	raw, err := e.attempt(ctx, files, systemPrompt, userPrompt)
	if err == nil {
		return raw, nil
	}

	e.logger.WithError(err).Warn("Gemini request failed, rotating API key and retrying")
	if rerr := e.rotateAPIKey(); rerr != nil {
		return "", rerr
	}
	return e.attempt(ctx, files, systemPrompt, userPrompt)
}

func (e *GeminiEngine) attempt(ctx context.Context, files []fileArg, systemPrompt, userPrompt string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var uploaded []*genai.File
	defer func() {
		for _, f := range uploaded {
			if err := e.client.DeleteFile(context.Background(), f.Name); err != nil {
				e.logger.WithError(err).WithField("file", f.Name).Warn("failed to delete uploaded file")
			}
		}
	}()

	parts := make([]genai.Part, 0, len(files)+2)
	for _, fa := range files {
		file, err := e.uploadLocked(ctx, fa.path, fa.mime)
		if err != nil {
			return "", err
		}
		uploaded = append(uploaded, file)
		parts = append(parts, genai.FileData{MIMEType: fa.mime, URI: file.URI})
	}
	parts = append(parts, genai.Text(systemPrompt), genai.Text(userPrompt))

	resp, err := e.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (e *GeminiEngine) uploadLocked(ctx context.Context, path, mimeType string) (*genai.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := e.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		if file, err = e.client.GetFile(ctx, file.Name); err != nil {
			return nil, err
		}
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("uploaded file %s is not active (state %v)", file.Name, file.State)
	}
	return file, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no response generated")
	}
	content := ""
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					content += string(text)
				}
			}
		}
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("no response generated")
	}
	return content, nil
}
