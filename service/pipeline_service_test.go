package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/reconcile"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/types"
)

type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	diagrams  types.DiagramMapping
	marks     types.MarksMapping
	questions string
}

func (f *fakeEngine) MapDiagrams(_ context.Context, _, _ string) (types.DiagramMapping, string, error) {
	f.record("diagrams")
	return f.diagrams, "diagrams raw", nil
}

func (f *fakeEngine) MapMarks(_ context.Context, _ string) (types.MarksMapping, string, error) {
	f.record("marks")
	return f.marks, "marks raw", nil
}

func (f *fakeEngine) ExtractQuestions(_ context.Context, _ string) (string, string, error) {
	f.record("questions")
	return f.questions, "questions raw", nil
}

func (f *fakeEngine) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeEngine) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type progressLog struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (p *progressLog) add(ev types.ProgressEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *progressLog) first() types.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return types.ProgressEvent{}
	}
	return p.events[0]
}

func (p *progressLog) last() types.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return types.ProgressEvent{}
	}
	return p.events[len(p.events)-1]
}

func newTestPipelineService(t *testing.T, engine ExtractionEngine) (*PipelineService, repository.RunRepository, repository.ArtifactRepo, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	artifacts, err := repository.NewArtifactRepo(t.TempDir(), logger)
	require.NoError(t, err)
	runs := repository.NewMemoryRunRepo()

	inbox := t.TempDir()
	cards := NewCardService(artifacts, reconcile.New(reconcile.Config{}), config.ParsingConfig{}, logger)
	index := NewIndexService(nil, artifacts, logger)
	pdf := NewPDFService(logger)
	layout := NewLayoutService(config.LayoutConfig{BaseURL: "http://127.0.0.1:0"}, logger)

	svc := NewPipelineService(config.PipelineConfig{StepTimeoutSec: 30}, inbox,
		pdf, layout, engine, cards, index, artifacts, runs, logger)
	return svc, runs, artifacts, inbox
}

func stepsByName(run *types.PipelineRun) map[string]types.StepResult {
	out := make(map[string]types.StepResult, len(run.Steps))
	for _, step := range run.Steps {
		out[step.Name] = step
	}
	return out
}

func hasStep(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

func TestNewRunPrefillsSteps(t *testing.T) {
	svc, _, _, _ := newTestPipelineService(t, &fakeEngine{})

	run := svc.newRun(filepath.Join("inbox", "cbse_2024_set1.pdf"))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "cbse_2024_set1", run.Paper)
	assert.Equal(t, types.RUN_STATUS_RUNNING, run.Status)
	require.Len(t, run.Steps, len(types.PipelineSteps))
	for i, step := range run.Steps {
		assert.Equal(t, types.PipelineSteps[i], step.Name)
		assert.Equal(t, types.STEP_STATUS_PENDING, step.Status)
	}
}

func TestResolvePDF(t *testing.T) {
	svc, _, _, inbox := newTestPipelineService(t, &fakeEngine{})

	direct := filepath.Join(t.TempDir(), "direct.pdf")
	require.NoError(t, os.WriteFile(direct, []byte("%PDF-1.4"), 0644))

	older := filepath.Join(inbox, "march_2023.pdf")
	newer := filepath.Join(inbox, "march_2024.pdf")
	require.NoError(t, os.WriteFile(older, []byte("%PDF-1.4"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("%PDF-1.4"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, old, old))

	got, err := svc.ResolvePDF(direct)
	require.NoError(t, err)
	assert.Equal(t, direct, got)

	got, err = svc.ResolvePDF("march_2023")
	require.NoError(t, err)
	assert.Equal(t, older, got)

	got, err = svc.ResolvePDF("march_2024.pdf")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = svc.ResolvePDF("")
	require.NoError(t, err)
	assert.Equal(t, newer, got, "no name picks the newest upload")

	_, err = svc.ResolvePDF("never_uploaded")
	require.Error(t, err)
}

func TestResolvePDFEmptyInbox(t *testing.T) {
	svc, _, _, _ := newTestPipelineService(t, &fakeEngine{})

	_, err := svc.ResolvePDF("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload one first")
}

func TestStartRunRejectsInvalidPDF(t *testing.T) {
	svc, runs, _, inbox := newTestPipelineService(t, &fakeEngine{})

	bogus := filepath.Join(inbox, "not_a_pdf.pdf")
	require.NoError(t, os.WriteFile(bogus, []byte("plain text, no header"), 0644))

	_, err := svc.StartRun(bogus)
	require.Error(t, err)

	total, _, err := runs.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total, "rejected runs are never recorded")
}

func TestRunStatusSettlement(t *testing.T) {
	cases := []struct {
		name   string
		failed []string
		want   string
	}{
		{
			name: "clean run completes",
			want: types.RUN_STATUS_COMPLETED,
		},
		{
			name:   "failed extraction step degrades",
			failed: []string{types.StepMarksMapping},
			want:   types.RUN_STATUS_DEGRADED,
		},
		{
			name:   "failed card generation fails the run",
			failed: []string{types.StepDiagramExtraction, types.StepCardGeneration},
			want:   types.RUN_STATUS_FAILED,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, runs, _, _ := newTestPipelineService(t, &fakeEngine{})
			run := svc.newRun("sample.pdf")
			require.NoError(t, runs.CreateRun(context.Background(), run))

			tracker := &runTracker{run: run, repo: runs, logger: svc.logger}
			for _, step := range types.PipelineSteps {
				if hasStep(tc.failed, step) {
					tracker.update(context.Background(), step, types.STEP_STATUS_FAILED, "boom")
				} else {
					tracker.update(context.Background(), step, types.STEP_STATUS_COMPLETED, "")
				}
			}

			assert.Equal(t, tc.want, tracker.finish(context.Background()))
			stored, err := runs.GetRun(context.Background(), run.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Status)
		})
	}
}

func TestExecuteDegradesWhenDiagramChainFails(t *testing.T) {
	engine := &fakeEngine{
		marks: types.MarksMapping{
			"question-1": {QuestionType: types.QuestionTypeMCQ, Marks: types.MarksValue{Scalar: "1"}},
			"question-2": {QuestionType: types.QuestionTypeNormalSubjective, Marks: types.MarksValue{Scalar: "3"}},
		},
		questions: "1. What is 2 + 2?\n[####]\n2. State the Pythagoras theorem.",
	}
	svc, runs, artifacts, _ := newTestPipelineService(t, engine)

	progress := &progressLog{}
	svc.OnProgress(progress.add)

	run := svc.newRun(filepath.Join("missing", "sample.pdf"))
	require.NoError(t, runs.CreateRun(context.Background(), run))
	svc.execute(context.Background(), run)

	stored, err := runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RUN_STATUS_DEGRADED, stored.Status)

	byName := stepsByName(stored)
	assert.Equal(t, types.STEP_STATUS_FAILED, byName[types.StepDiagramExtraction].Status)
	assert.Equal(t, types.STEP_STATUS_FAILED, byName[types.StepDiagramMapping].Status)
	assert.Equal(t, "diagram extraction failed upstream", byName[types.StepDiagramMapping].Error)
	assert.Equal(t, types.STEP_STATUS_COMPLETED, byName[types.StepMarksMapping].Status)
	assert.Equal(t, types.STEP_STATUS_COMPLETED, byName[types.StepQuestionExtraction].Status)
	assert.Equal(t, types.STEP_STATUS_COMPLETED, byName[types.StepCardGeneration].Status)

	require.NotNil(t, stored.Summary)
	assert.Equal(t, 2, stored.Summary.TotalQuestions)

	set, err := artifacts.LoadCardSet("sample")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Len(t, set.Cards, 2)
	assert.Equal(t, "1 marks", set.Cards[0].Marks)

	last := progress.last()
	assert.Equal(t, "pipeline", last.Step)
	assert.Equal(t, types.RUN_STATUS_DEGRADED, last.Status)

	assert.NotContains(t, engine.callNames(), "diagrams", "mapping is skipped without figures")
}

func TestExecuteSequentialOrdersSteps(t *testing.T) {
	engine := &fakeEngine{
		marks: types.MarksMapping{
			"question-1": {QuestionType: types.QuestionTypeNormalSubjective, Marks: types.MarksValue{Scalar: "2"}},
		},
		questions: "1. Solve for x: 2x + 3 = 11.",
	}
	svc, runs, _, _ := newTestPipelineService(t, engine)
	svc.cfg.Sequential = true

	progress := &progressLog{}
	svc.OnProgress(progress.add)

	run := svc.newRun("sample.pdf")
	require.NoError(t, runs.CreateRun(context.Background(), run))
	svc.execute(context.Background(), run)

	first := progress.first()
	assert.Equal(t, types.StepDiagramExtraction, first.Step)
	assert.Equal(t, types.STEP_STATUS_RUNNING, first.Status)
	assert.Equal(t, "pipeline", progress.last().Step)

	stored, err := runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RUN_STATUS_DEGRADED, stored.Status)
	assert.Equal(t, []string{"marks", "questions"}, engine.callNames())
}
