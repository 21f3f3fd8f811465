package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openpariksha/pariksha-be/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) ArtifactRepo {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	repo, err := NewArtifactRepo(t.TempDir(), logger)
	require.NoError(t, err)
	return repo
}

func TestArtifactRepoCreatesFamilyDirs(t *testing.T) {
	dataDir := t.TempDir()
	_, err := NewArtifactRepo(dataDir, logrus.New())
	require.NoError(t, err)

	for _, dir := range []string{
		"diagrams/images", "diagrams/previews", "diagram_mappings",
		"marks_mappings", "full_pdf_questions", "cards",
	} {
		info, err := os.Stat(filepath.Join(dataDir, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestDiagramMetaRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	missing, err := repo.LoadDiagramMeta()
	require.NoError(t, err)
	assert.Nil(t, missing, "no extraction yet")

	meta := &types.DiagramMeta{
		Figures: []types.FigureInfo{
			{FigureID: 1, Page: 2, Path: "diagrams/images/figure-1.png"},
			{FigureID: 2, Page: 3, Path: "diagrams/images/figure-2.png"},
		},
		Preview: "diagrams/previews/preview_1.png",
	}
	_, err = repo.SaveDiagramMeta(meta)
	require.NoError(t, err)

	loaded, err := repo.LoadDiagramMeta()
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)
}

func TestDiagramMappingRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	mapping := types.DiagramMapping{
		"figure-1": {QuestionIdentifier: "12", ChoiceLocation: "first"},
	}
	path, err := repo.SaveDiagramMapping("sample_paper", "preview_01.png", mapping)
	require.NoError(t, err)
	assert.Equal(t, "sample_paper__preview_01.json", filepath.Base(path))

	loaded, usedPath, err := repo.LoadDiagramMapping("sample_paper")
	require.NoError(t, err)
	assert.Equal(t, path, usedPath)
	assert.Equal(t, mapping, loaded)
}

func TestMarksMappingMostRecentFallback(t *testing.T) {
	repo := newTestRepo(t)

	older := types.MarksMapping{"question-1": {QuestionType: types.QuestionTypeMCQ, Marks: types.MarksValue{Scalar: "1"}}}
	newer := types.MarksMapping{"question-2": {QuestionType: types.QuestionTypeCaseStudy, Marks: types.MarksValue{Scalar: "4"}}}

	oldPath, err := repo.SaveMarksMapping("old_paper", older)
	require.NoError(t, err)
	newPath, err := repo.SaveMarksMapping("new_paper", newer)
	require.NoError(t, err)

	// Pin modification times so the fallback choice is unambiguous.
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldPath, base, base))
	require.NoError(t, os.Chtimes(newPath, base.Add(time.Minute), base.Add(time.Minute)))

	loaded, usedPath, err := repo.LoadMarksMapping("paper_with_no_artifact")
	require.NoError(t, err)
	assert.Equal(t, newPath, usedPath)
	assert.Equal(t, newer, loaded)

	// An exact name always beats the fallback.
	loaded, usedPath, err = repo.LoadMarksMapping("old_paper")
	require.NoError(t, err)
	assert.Equal(t, oldPath, usedPath)
	assert.Equal(t, older, loaded)
}

func TestMarksMappingRejectsNonObject(t *testing.T) {
	repo := newTestRepo(t)

	path := filepath.Join(repo.DataDir(), "marks_mappings", "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`["not", "a", "mapping"]`), 0644))

	_, _, err := repo.LoadMarksMapping("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestQuestionTextRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	text := "1. What is 2+2?\n[####]\n"
	path, err := repo.SaveQuestionText("paper one", text)
	require.NoError(t, err)
	assert.Equal(t, "paper_one.md", filepath.Base(path))

	loaded, usedPath, err := repo.LoadQuestionText("paper one")
	require.NoError(t, err)
	assert.Equal(t, path, usedPath)
	assert.Equal(t, text, loaded)
}

func TestRawResponseDoesNotShadowArtifacts(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.SaveRawResponse("full_pdf_questions", "paper", "raw model output")
	require.NoError(t, err)

	// Only the raw audit file exists; loading questions must not pick it.
	text, usedPath, err := repo.LoadQuestionText("paper")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, usedPath)
}

func TestCardSetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	missing, err := repo.LoadCardSet("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	set := &types.CardSet{
		Paper: "sample",
		Cards: []types.QuestionCard{
			{QuestionNumber: "1", QuestionType: types.QuestionTypeMCQ, Marks: "1", QuestionText: "What is 2+2?"},
		},
		Summary: types.CardSummary{TotalQuestions: 1, QuestionTypes: map[string]int{types.QuestionTypeMCQ: 1}},
	}
	_, err = repo.SaveCardSet("sample", set)
	require.NoError(t, err)

	loaded, err := repo.LoadCardSet("sample")
	require.NoError(t, err)
	assert.Equal(t, set, loaded)

	papers, err := repo.ListCardSets()
	require.NoError(t, err)
	assert.Equal(t, []string{"sample"}, papers)
}
