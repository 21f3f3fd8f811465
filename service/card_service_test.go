package service

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/reconcile"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/types"
)

func newTestCardService(t *testing.T) *CardService {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	repo, err := repository.NewArtifactRepo(t.TempDir(), logger)
	require.NoError(t, err)
	return NewCardService(repo, reconcile.New(reconcile.Config{}), config.ParsingConfig{}, logger)
}

func TestSplitOptionsSeparatesOptionRows(t *testing.T) {
	svc := newTestCardService(t)

	main, options := svc.splitOptions("12. What is 2 + 2?\n(a) 3\n(b) 4\n(C) 5\nChoose one.")
	assert.Equal(t, []string{"(a) 3", "(b) 4"}, options, "only lowercase (a)-(d) rows are options")
	assert.Equal(t, "12. What is 2 + 2?\n(C) 5\nChoose one.", main)
}

func TestSplitOptionsRendersLeftoverChoiceMarker(t *testing.T) {
	svc := newTestCardService(t)

	main, options := svc.splitOptions("Find x. [%OR%] Find y.\n(a) 1\n(b) 2")
	assert.Equal(t, []string{"(a) 1", "(b) 2"}, options)
	assert.Equal(t, "Find x.\n**OR**\nFind y.", main)
}

func TestFormatMarks(t *testing.T) {
	tests := []struct {
		name string
		in   types.MarksDescriptor
		want string
	}{
		{"integer value", types.MarksDescriptor{Value: "3"}, "3 marks"},
		{"fractional value", types.MarksDescriptor{Value: "2.5"}, "2.5 marks"},
		{"free text", types.MarksDescriptor{Value: "4 marks each"}, "4 marks each"},
		{"list", types.MarksDescriptor{Values: []string{"3", "3"}}, "2 choices"},
		{"empty", types.MarksDescriptor{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMarks(tt.in))
		})
	}
}

func TestPartitionSubParts(t *testing.T) {
	tests := []struct {
		name       string
		subParts   []types.SubPart
		wantOption int
		wantStruct int
	}{
		{
			name: "bare letter run is an option list",
			subParts: []types.SubPart{
				{Label: "a", Text: "3"}, {Label: "b", Text: "4"},
				{Label: "c", Text: "5"}, {Label: "d", Text: "6"},
			},
			wantOption: 4,
		},
		{
			name:       "roman parts stay structural",
			subParts:   []types.SubPart{{Label: "i", Text: "one"}, {Label: "ii", Text: "two"}},
			wantStruct: 2,
		},
		{
			name: "letter parts with own marks stay structural",
			subParts: []types.SubPart{
				{Label: "a", Text: "Find the height.", Marks: types.MarksDescriptor{Value: "2"}},
				{Label: "b", Text: "Find the distance.", Marks: types.MarksDescriptor{Value: "3"}},
			},
			wantStruct: 2,
		},
		{
			name:       "a lone letter part stays structural",
			subParts:   []types.SubPart{{Label: "a", Text: "only one"}},
			wantStruct: 1,
		},
		{
			name: "nesting disqualifies the run",
			subParts: []types.SubPart{
				{Label: "a", Text: "head", SubParts: []types.SubPart{{Label: "i", Text: "deep"}}},
				{Label: "b", Text: "tail"},
			},
			wantStruct: 2,
		},
		{name: "empty", subParts: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options, structured := partitionSubParts(tt.subParts)
			assert.Len(t, options, tt.wantOption)
			assert.Len(t, structured, tt.wantStruct)
		})
	}
}

func TestBuildCardRendersOptionRun(t *testing.T) {
	svc := newTestCardService(t)

	rec := types.QuestionRecord{
		Identifier: types.QuestionIdentifier{Root: "12"},
		Branches: []types.Branch{{
			Tag:  types.BranchNone,
			Text: "12. The distance between the points A and B is:",
			SubParts: []types.SubPart{
				{Label: "a", Text: "5 units"},
				{Label: "b", Text: "7 units"},
				{Label: "c", Text: "9 units"},
				{Label: "d", Text: "11 units"},
			},
			Marks: types.MarksDescriptor{Value: "1"},
		}},
		QuestionType: types.QuestionTypeMCQ,
	}

	card := svc.buildCard(rec)
	assert.Equal(t, "12", card.QuestionNumber)
	assert.Equal(t, "12. The distance between the points A and B is:", card.QuestionText)
	assert.Equal(t, []string{"(a) 5 units", "(b) 7 units", "(c) 9 units", "(d) 11 units"}, card.Options)
	assert.Empty(t, card.SubParts)
	assert.Equal(t, "1 marks", card.Marks)
	assert.False(t, card.HasInternalChoice)
}

func TestBuildCardKeepsStructuralSubParts(t *testing.T) {
	svc := newTestCardService(t)

	rec := types.QuestionRecord{
		Identifier: types.QuestionIdentifier{Root: "38"},
		Branches: []types.Branch{{
			Tag:  types.BranchNone,
			Text: "38. Read the passage and answer the questions.",
			SubParts: []types.SubPart{
				{Label: "i", Text: "Find the height of the tower.", Marks: types.MarksDescriptor{Value: "1"}},
				{Label: "ii", Text: "Find the distance walked.", Marks: types.MarksDescriptor{Value: "2"}},
			},
		}},
		QuestionType: types.QuestionTypeCaseStudy,
	}

	card := svc.buildCard(rec)
	assert.Empty(t, card.Options)
	require.Len(t, card.SubParts, 2)
	assert.Equal(t, "i", card.SubParts[0].Label)
	assert.Equal(t, "Find the height of the tower.", card.SubParts[0].Text)
	assert.Equal(t, "1 marks", card.SubParts[0].Marks)
	assert.Equal(t, "ii", card.SubParts[1].Label)
	assert.Equal(t, "2 marks", card.SubParts[1].Marks)
}

func TestNeedsReviewMatchesFoldedRoots(t *testing.T) {
	svc := newTestCardService(t)

	ds := []types.Discrepancy{
		{Identifier: "Q7", Kind: types.DISCREPANCY_MISSING_SOURCE},
	}
	assert.True(t, svc.needsReview("7", ds), "Q7 and 7 name the same question")
	assert.False(t, svc.needsReview("8", ds))
}

func TestApplyCardFilter(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	cards := []types.QuestionCard{
		{QuestionNumber: "1", QuestionType: types.QuestionTypeMCQ, Marks: "1 marks"},
		{QuestionNumber: "2", QuestionType: types.QuestionTypeCaseStudy, Marks: "4 marks",
			Diagrams: []types.DiagramRef{{Figure: "figure-1"}}},
		{QuestionNumber: "3", QuestionType: types.QuestionTypeInternalChoice, Marks: "2 choices",
			HasInternalChoice: true},
	}

	tests := []struct {
		name   string
		filter types.CardFilter
		want   []string
	}{
		{"zero filter keeps everything", types.CardFilter{}, []string{"1", "2", "3"}},
		{"type filter is case-insensitive", types.CardFilter{Types: []string{"mcq"}}, []string{"1"}},
		{"marks filter matches the leading token", types.CardFilter{Marks: "4"}, []string{"2"}},
		{"with diagrams", types.CardFilter{WithDiagrams: boolPtr(true)}, []string{"2"}},
		{"without internal choice", types.CardFilter{WithInternalChoice: boolPtr(false)}, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyCardFilter(cards, tt.filter)
			numbers := make([]string, 0, len(got))
			for _, c := range got {
				numbers = append(numbers, c.QuestionNumber)
			}
			assert.Equal(t, tt.want, numbers)
		})
	}
}

func TestGenerateCardsIntegratesAllArtifacts(t *testing.T) {
	svc := newTestCardService(t)
	paper := "board_2024"

	questionText := `1. What is 2 + 2?
(a) 3
(b) 4
(c) 5
(d) 6
[####]
2. Prove that the square root of 2 is irrational.
[%OR%]
Prove that the square root of 3 is irrational.
[####]`
	_, err := svc.artifacts.SaveQuestionText(paper, questionText)
	require.NoError(t, err)

	_, err = svc.artifacts.SaveMarksMapping(paper, types.MarksMapping{
		"question-1": {QuestionType: types.QuestionTypeMCQ, Marks: types.MarksValue{Scalar: "1"}},
		"question-2": {QuestionType: types.QuestionTypeInternalChoice, Marks: types.MarksValue{List: []string{"3", "3"}}},
	})
	require.NoError(t, err)

	_, err = svc.artifacts.SaveDiagramMapping(paper, "preview.png", types.DiagramMapping{
		"figure-1": {QuestionIdentifier: "2", ChoiceLocation: "first"},
	})
	require.NoError(t, err)

	_, err = svc.artifacts.SaveDiagramMeta(&types.DiagramMeta{
		Figures: []types.FigureInfo{{FigureID: 1, Page: 3, Path: "diagrams/images/figure-1.png"}},
	})
	require.NoError(t, err)

	set, err := svc.GenerateCards(paper)
	require.NoError(t, err)
	require.Len(t, set.Cards, 2)

	mcq := set.Cards[0]
	assert.Equal(t, "1", mcq.QuestionNumber)
	assert.Equal(t, types.QuestionTypeMCQ, mcq.QuestionType)
	assert.Equal(t, "1 marks", mcq.Marks)
	assert.Equal(t, "1. What is 2 + 2?", mcq.QuestionText)
	assert.Equal(t, []string{"(a) 3", "(b) 4", "(c) 5", "(d) 6"}, mcq.Options)
	assert.False(t, mcq.HasInternalChoice)
	assert.False(t, mcq.NeedsReview)

	choice := set.Cards[1]
	assert.Equal(t, "2", choice.QuestionNumber)
	assert.True(t, choice.HasInternalChoice)
	assert.Equal(t, "2 choices", choice.Marks)
	assert.Contains(t, choice.QuestionText, "**OR**")
	require.Len(t, choice.Choices, 2)
	assert.Equal(t, "first", choice.Choices[0].Location)
	assert.Equal(t, "3 marks", choice.Choices[0].Marks)
	require.Len(t, choice.Choices[0].Diagrams, 1)
	assert.Equal(t, 3, choice.Choices[0].Diagrams[0].Page)
	assert.Equal(t, "diagrams/images/figure-1.png", choice.Choices[0].Diagrams[0].Path)
	assert.Empty(t, choice.Choices[1].Diagrams)
	assert.False(t, choice.NeedsReview)

	assert.Equal(t, 2, set.Summary.TotalQuestions)
	assert.Equal(t, map[string]int{
		types.QuestionTypeMCQ:            1,
		types.QuestionTypeInternalChoice: 1,
	}, set.Summary.QuestionTypes)
	assert.Equal(t, 1, set.Summary.QuestionsWithDiagrams)
	assert.Equal(t, 1, set.Summary.QuestionsWithInternalChoice)
	assert.Equal(t, 1, set.Summary.TotalDiagrams)
	assert.Empty(t, set.Discrepancies)
	assert.True(t, set.Consistency.Passed)

	stored, err := svc.Cards(paper)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, set, stored)

	papers, err := svc.Papers()
	require.NoError(t, err)
	assert.Equal(t, []string{paper}, papers)
}

func TestGenerateCardsDegradesWithoutMarks(t *testing.T) {
	svc := newTestCardService(t)
	paper := "marks_missing"

	_, err := svc.artifacts.SaveQuestionText(paper, "1. Solve for x.\n[####]\n2. Solve for y.\n[####]")
	require.NoError(t, err)

	set, err := svc.GenerateCards(paper)
	require.NoError(t, err)
	require.Len(t, set.Cards, 2)

	for _, card := range set.Cards {
		assert.Equal(t, types.QuestionTypeUnknown, card.QuestionType)
		assert.Empty(t, card.Marks)
		assert.True(t, card.NeedsReview, "missing marks flags the card for review")
	}
	assert.Len(t, set.Discrepancies, 2)
	assert.Equal(t, map[string]int{types.QuestionTypeUnknown: 2}, set.Summary.QuestionTypes)
}

func TestGenerateCardsFailsWithoutQuestionText(t *testing.T) {
	svc := newTestCardService(t)

	_, err := svc.GenerateCards("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extracted question text")
}
