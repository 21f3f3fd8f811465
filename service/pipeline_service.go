package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/types"
	"github.com/openpariksha/pariksha-be/utils"
)

// rasterDPI is the resolution pages are rendered at for layout detection.
const rasterDPI = 150

const workspacesDir = "workspaces"

// PipelineService drives one exam paper through the five processing steps:
// diagram extraction, diagram mapping, marks mapping, question extraction
// and card generation. The diagram chain and the two other extraction
// steps run concurrently; card generation waits for all of them. A failed
// step never aborts the run, it is recorded and card generation works with
// whatever artifacts exist.
type PipelineService struct {
	cfg       config.PipelineConfig
	inboxDir  string
	pdf       *PDFService
	layout    *LayoutService
	engine    ExtractionEngine
	cards     *CardService
	index     *IndexService
	artifacts repository.ArtifactRepo
	runs      repository.RunRepository
	progress  func(types.ProgressEvent)
	logger    *logrus.Logger
}

func NewPipelineService(
	cfg config.PipelineConfig,
	inboxDir string,
	pdf *PDFService,
	layout *LayoutService,
	engine ExtractionEngine,
	cards *CardService,
	index *IndexService,
	artifacts repository.ArtifactRepo,
	runs repository.RunRepository,
	logger *logrus.Logger,
) *PipelineService {
	return &PipelineService{
		cfg:       cfg,
		inboxDir:  inboxDir,
		pdf:       pdf,
		layout:    layout,
		engine:    engine,
		cards:     cards,
		index:     index,
		artifacts: artifacts,
		runs:      runs,
		logger:    logger,
	}
}

// OnProgress registers the listener step transitions are published to.
func (s *PipelineService) OnProgress(fn func(types.ProgressEvent)) {
	s.progress = fn
}

// ResolvePDF turns a paper name or path into the PDF to process: an
// existing path is used as is, otherwise the inbox is searched for the
// name, otherwise the newest PDF in the inbox wins.
func (s *PipelineService) ResolvePDF(name string) (string, error) {
	if name != "" {
		if fileReadable(name) {
			return name, nil
		}
		for _, candidate := range []string{
			filepath.Join(s.inboxDir, name),
			filepath.Join(s.inboxDir, name+".pdf"),
		} {
			if fileReadable(candidate) {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("no PDF named %s in %s", name, s.inboxDir)
	}

	entries, err := os.ReadDir(s.inboxDir)
	if err != nil {
		return "", fmt.Errorf("read inbox %s: %w", s.inboxDir, err)
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = filepath.Join(s.inboxDir, e.Name()), info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no PDFs in %s, upload one first", s.inboxDir)
	}
	return newest, nil
}

// StartRun records a new run and processes the PDF on a background
// goroutine. The returned run is the initial snapshot; poll GetRun or
// subscribe to progress for updates.
func (s *PipelineService) StartRun(pdfPath string) (*types.PipelineRun, error) {
	if err := s.pdf.Validate(pdfPath); err != nil {
		return nil, err
	}
	run := s.newRun(pdfPath)
	if err := s.runs.CreateRun(context.Background(), run); err != nil {
		return nil, fmt.Errorf("record pipeline run: %w", err)
	}

	snapshot := *run
	snapshot.Steps = append([]types.StepResult(nil), run.Steps...)
	go s.execute(context.Background(), run)
	return &snapshot, nil
}

// Run processes the PDF synchronously. The CLI path.
func (s *PipelineService) Run(ctx context.Context, pdfPath string) (*types.PipelineRun, error) {
	if err := s.pdf.Validate(pdfPath); err != nil {
		return nil, err
	}
	run := s.newRun(pdfPath)
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record pipeline run: %w", err)
	}
	s.execute(ctx, run)
	return s.runs.GetRun(ctx, run.ID)
}

func (s *PipelineService) GetRun(ctx context.Context, id string) (*types.PipelineRun, error) {
	return s.runs.GetRun(ctx, id)
}

func (s *PipelineService) ListRuns(ctx context.Context, paper string, status []string, limit int) ([]*types.PipelineRun, error) {
	return s.runs.ListRuns(ctx, paper, status, limit)
}

func (s *PipelineService) CountRuns(ctx context.Context) (total, active int64, err error) {
	return s.runs.CountRuns(ctx)
}

// ExtractDiagrams rasterizes the PDF, crops its printed figures and
// persists the diagram metadata artifact.
func (s *PipelineService) ExtractDiagrams(ctx context.Context, pdfPath string) (*types.DiagramMeta, error) {
	paper := utils.Stem(pdfPath)
	pagesDir := filepath.Join(s.artifacts.DataDir(), workspacesDir, utils.SanitizeFilename(paper), "pages")
	pages, err := s.pdf.RasterizePages(pdfPath, pagesDir, rasterDPI)
	if err != nil {
		return nil, err
	}
	meta, err := s.layout.ExtractDiagrams(ctx, pages, s.artifacts.DiagramImagesDir(), s.artifacts.DiagramPreviewsDir())
	if err != nil {
		return nil, err
	}
	if _, err := s.artifacts.SaveDiagramMeta(meta); err != nil {
		return nil, fmt.Errorf("persist diagram metadata: %w", err)
	}
	return meta, nil
}

// PreviewPath resolves the preview sheet the mapping step reads: an
// explicit override wins, otherwise the one recorded by the last diagram
// extraction.
func (s *PipelineService) PreviewPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	meta, err := s.artifacts.LoadDiagramMeta()
	if err != nil {
		return "", err
	}
	if meta == nil || meta.Preview == "" {
		return "", fmt.Errorf("no preview sheet on record, run diagram extraction first")
	}
	return meta.Preview, nil
}

// MapDiagrams asks the model to assign each figure on the preview sheet
// to its question. The raw reply is kept for audit even when parsing
// fails.
func (s *PipelineService) MapDiagrams(ctx context.Context, pdfPath, previewPath string) (types.DiagramMapping, error) {
	paper := utils.Stem(pdfPath)
	mapping, raw, err := s.engine.MapDiagrams(ctx, pdfPath, previewPath)
	s.saveRaw(repository.RawFamilyDiagramMappings, paper, raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.artifacts.SaveDiagramMapping(paper, previewPath, mapping); err != nil {
		return nil, fmt.Errorf("persist diagram mapping: %w", err)
	}
	return mapping, nil
}

// MapMarks asks the model to classify every question's type and marks.
func (s *PipelineService) MapMarks(ctx context.Context, pdfPath string) (types.MarksMapping, error) {
	paper := utils.Stem(pdfPath)
	mapping, raw, err := s.engine.MapMarks(ctx, pdfPath)
	s.saveRaw(repository.RawFamilyMarksMappings, paper, raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.artifacts.SaveMarksMapping(paper, mapping); err != nil {
		return nil, fmt.Errorf("persist marks mapping: %w", err)
	}
	return mapping, nil
}

// ExtractQuestions asks the model for the delimited question stream.
func (s *PipelineService) ExtractQuestions(ctx context.Context, pdfPath string) (string, error) {
	paper := utils.Stem(pdfPath)
	text, raw, err := s.engine.ExtractQuestions(ctx, pdfPath)
	s.saveRaw(repository.RawFamilyQuestions, paper, raw)
	if err != nil {
		return "", err
	}
	if _, err := s.artifacts.SaveQuestionText(paper, text); err != nil {
		return "", fmt.Errorf("persist question text: %w", err)
	}
	return text, nil
}

func (s *PipelineService) newRun(pdfPath string) *types.PipelineRun {
	now := time.Now().Unix()
	steps := make([]types.StepResult, len(types.PipelineSteps))
	for i, name := range types.PipelineSteps {
		steps[i] = types.StepResult{Name: name, Status: types.STEP_STATUS_PENDING}
	}
	return &types.PipelineRun{
		ID:       uuid.NewString(),
		Paper:    utils.Stem(pdfPath),
		PDFPath:  pdfPath,
		Status:   types.RUN_STATUS_RUNNING,
		Steps:    steps,
		CreateAt: now,
		UpdateAt: now,
	}
}

func (s *PipelineService) execute(ctx context.Context, run *types.PipelineRun) {
	tracker := &runTracker{run: run, repo: s.runs, progress: s.progress, logger: s.logger}

	s.logger.WithFields(logrus.Fields{
		"run":   run.ID,
		"paper": run.Paper,
		"pdf":   filepath.Base(run.PDFPath),
	}).Info("pipeline run started")

	marks := func() {
		s.runStep(ctx, tracker, types.StepMarksMapping, func(stepCtx context.Context) error {
			_, err := s.MapMarks(stepCtx, run.PDFPath)
			return err
		})
	}
	questions := func() {
		s.runStep(ctx, tracker, types.StepQuestionExtraction, func(stepCtx context.Context) error {
			_, err := s.ExtractQuestions(stepCtx, run.PDFPath)
			return err
		})
	}

	if s.cfg.Sequential {
		s.runDiagramChain(ctx, tracker)
		marks()
		questions()
	} else {
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.runDiagramChain(ctx, tracker)
		}()
		go func() {
			defer wg.Done()
			marks()
		}()
		go func() {
			defer wg.Done()
			questions()
		}()
		wg.Wait()
	}

	s.runStep(ctx, tracker, types.StepCardGeneration, func(stepCtx context.Context) error {
		set, err := s.cards.GenerateCards(run.Paper)
		if err != nil {
			return err
		}
		summary := set.Summary
		tracker.setSummary(&summary)
		if s.index.Enabled() {
			if err := s.index.IndexPaper(stepCtx, run.Paper); err != nil {
				s.logger.WithError(err).WithField("paper", run.Paper).Warn("index card set")
			}
		}
		return nil
	})

	status := tracker.finish(ctx)
	s.logger.WithFields(logrus.Fields{
		"run":    run.ID,
		"paper":  run.Paper,
		"status": status,
	}).Info("pipeline run finished")
}

// runDiagramChain runs diagram extraction and, when it yields figures,
// the mapping step that reads its preview sheet.
func (s *PipelineService) runDiagramChain(ctx context.Context, t *runTracker) {
	run := t.run
	var meta *types.DiagramMeta
	err := s.runStep(ctx, t, types.StepDiagramExtraction, func(stepCtx context.Context) error {
		var stepErr error
		meta, stepErr = s.ExtractDiagrams(stepCtx, run.PDFPath)
		return stepErr
	})
	switch {
	case err != nil:
		t.update(ctx, types.StepDiagramMapping, types.STEP_STATUS_FAILED, "diagram extraction failed upstream")
	case meta == nil || len(meta.Figures) == 0:
		t.update(ctx, types.StepDiagramMapping, types.STEP_STATUS_COMPLETED, "no figures detected, nothing to map")
	default:
		s.runStep(ctx, t, types.StepDiagramMapping, func(stepCtx context.Context) error {
			_, mapErr := s.MapDiagrams(stepCtx, run.PDFPath, meta.Preview)
			return mapErr
		})
	}
}

func (s *PipelineService) runStep(ctx context.Context, t *runTracker, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout())
	defer cancel()

	t.update(ctx, name, types.STEP_STATUS_RUNNING, "")
	err := fn(stepCtx)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"run":  t.run.ID,
			"step": name,
		}).Error("pipeline step failed")
		t.update(ctx, name, types.STEP_STATUS_FAILED, err.Error())
		return err
	}
	t.update(ctx, name, types.STEP_STATUS_COMPLETED, "")
	return nil
}

func (s *PipelineService) stepTimeout() time.Duration {
	if s.cfg.StepTimeoutSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.cfg.StepTimeoutSec) * time.Second
}

func (s *PipelineService) saveRaw(family, paper, raw string) {
	if raw == "" {
		return
	}
	if _, err := s.artifacts.SaveRawResponse(family, paper, raw); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"family": family,
			"paper":  paper,
		}).Warn("persist raw model reply")
	}
}

// runTracker serializes step updates for one run. Concurrent steps write
// disjoint entries, but the run is persisted wholesale, so every mutation
// happens under the lock.
type runTracker struct {
	mu       sync.Mutex
	run      *types.PipelineRun
	repo     repository.RunRepository
	progress func(types.ProgressEvent)
	logger   *logrus.Logger
}

func (t *runTracker) update(ctx context.Context, step, status, detail string) {
	t.mu.Lock()
	now := time.Now().Unix()
	for i := range t.run.Steps {
		if t.run.Steps[i].Name != step {
			continue
		}
		t.run.Steps[i].Status = status
		switch status {
		case types.STEP_STATUS_RUNNING:
			t.run.Steps[i].StartedAt = now
		case types.STEP_STATUS_COMPLETED, types.STEP_STATUS_FAILED:
			t.run.Steps[i].FinishedAt = now
		}
		if status == types.STEP_STATUS_FAILED {
			t.run.Steps[i].Error = detail
		}
		break
	}
	t.run.UpdateAt = now
	t.persistLocked(ctx)
	t.mu.Unlock()

	t.emit(step, status, detail)
}

func (t *runTracker) setSummary(summary *types.CardSummary) {
	t.mu.Lock()
	t.run.Summary = summary
	t.mu.Unlock()
}

// finish settles the run status: failed when no cards came out, degraded
// when cards exist but an earlier step failed, completed otherwise.
func (t *runTracker) finish(ctx context.Context) string {
	t.mu.Lock()
	status := types.RUN_STATUS_COMPLETED
	for _, step := range t.run.Steps {
		if step.Status != types.STEP_STATUS_FAILED {
			continue
		}
		if step.Name == types.StepCardGeneration {
			status = types.RUN_STATUS_FAILED
		} else if status == types.RUN_STATUS_COMPLETED {
			status = types.RUN_STATUS_DEGRADED
		}
	}
	t.run.Status = status
	t.run.UpdateAt = time.Now().Unix()
	t.persistLocked(ctx)
	t.mu.Unlock()

	t.emit("pipeline", status, "")
	return status
}

func (t *runTracker) persistLocked(ctx context.Context) {
	if err := t.repo.UpdateRun(ctx, t.run); err != nil {
		t.logger.WithError(err).WithField("run", t.run.ID).Warn("persist pipeline run")
	}
}

func (t *runTracker) emit(step, status, detail string) {
	if t.progress == nil {
		return
	}
	t.progress(types.ProgressEvent{
		RunID:     t.run.ID,
		Paper:     t.run.Paper,
		Step:      step,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	})
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
