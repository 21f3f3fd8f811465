package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/reconcile"
	"github.com/openpariksha/pariksha-be/repository"
	"github.com/openpariksha/pariksha-be/types"
)

// optionPattern matches an MCQ option row at the start of a line. Only
// lowercase (a)-(d) rows count as options; anything else stays in the
// question text.
var optionPattern = regexp.MustCompile(`^\([a-d]\)\s*(.+)`)

// CardService reconciles one paper's stored artifacts into presentation
// cards and persists the resulting set.
type CardService struct {
	artifacts repository.ArtifactRepo
	engine    *reconcile.Engine
	orMarker  string
	logger    *logrus.Logger
}

func NewCardService(artifacts repository.ArtifactRepo, engine *reconcile.Engine, parsing config.ParsingConfig, logger *logrus.Logger) *CardService {
	marker := parsing.ChoiceDelimiter
	if marker == "" {
		marker = "[%OR%]"
	}
	return &CardService{
		artifacts: artifacts,
		engine:    engine,
		orMarker:  marker,
		logger:    logger,
	}
}

// GenerateCards loads the paper's artifacts, reconciles them and builds
// the persisted card set. Unreadable diagram or marks artifacts degrade
// the output and the engine records the gaps as discrepancies; only
// absent question text is fatal, there is nothing to segment without it.
func (s *CardService) GenerateCards(paper string) (*types.CardSet, error) {
	text, _, err := s.artifacts.LoadQuestionText(paper)
	if err != nil {
		return nil, fmt.Errorf("load question text for %s: %w", paper, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extracted question text for %s, run question extraction first", paper)
	}

	diagramMap, _, err := s.artifacts.LoadDiagramMapping(paper)
	if err != nil {
		s.logger.WithError(err).WithField("paper", paper).Warn("diagram mapping unreadable, generating cards without it")
		diagramMap = nil
	}
	meta, err := s.artifacts.LoadDiagramMeta()
	if err != nil {
		s.logger.WithError(err).WithField("paper", paper).Warn("diagram metadata unreadable, figure pages and paths unknown")
		meta = nil
	}
	marksMap, _, err := s.artifacts.LoadMarksMapping(paper)
	if err != nil {
		s.logger.WithError(err).WithField("paper", paper).Warn("marks mapping unreadable, generating cards without it")
		marksMap = nil
	}

	res, err := s.engine.Reconcile(reconcile.Input{
		QuestionText: text,
		DiagramMap:   diagramMap,
		DiagramMeta:  meta,
		MarksMap:     marksMap,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", paper, err)
	}

	set := &types.CardSet{
		Paper:             paper,
		GeneratedAt:       time.Now().Unix(),
		Cards:             s.buildCards(res),
		UnmatchedDiagrams: res.UnmatchedDiagrams,
		Discrepancies:     res.Discrepancies,
		Consistency:       res.Consistency,
	}
	set.Summary = summarizeCards(set.Cards)

	path, err := s.artifacts.SaveCardSet(paper, set)
	if err != nil {
		return nil, fmt.Errorf("save card set for %s: %w", paper, err)
	}
	s.logger.WithFields(logrus.Fields{
		"paper":         paper,
		"cards":         len(set.Cards),
		"discrepancies": len(set.Discrepancies),
		"path":          path,
	}).Info("card set generated")
	return set, nil
}

// Cards returns the stored card set for a paper, nil when none exists.
func (s *CardService) Cards(paper string) (*types.CardSet, error) {
	return s.artifacts.LoadCardSet(paper)
}

// Papers lists every paper with a stored card set.
func (s *CardService) Papers() ([]string, error) {
	return s.artifacts.ListCardSets()
}

func (s *CardService) buildCards(res *reconcile.Result) []types.QuestionCard {
	cards := make([]types.QuestionCard, 0, len(res.Records))
	for _, rec := range res.Records {
		card := s.buildCard(rec)
		card.NeedsReview = s.needsReview(rec.Identifier.Root, res.Discrepancies)
		cards = append(cards, card)
	}
	return cards
}

func (s *CardService) buildCard(rec types.QuestionRecord) types.QuestionCard {
	card := types.QuestionCard{
		QuestionNumber:    rec.Identifier.Root,
		QuestionType:      rec.QuestionType,
		HasInternalChoice: rec.HasInternalChoice(),
	}
	if len(rec.Branches) == 0 {
		return card
	}

	if !card.HasInternalChoice {
		b := rec.Branches[0]
		main, options := s.splitOptions(b.Text)
		optionParts, structured := partitionSubParts(b.SubParts)
		card.QuestionText = main
		card.Options = append(options, s.renderOptionRows(optionParts)...)
		card.SubParts = s.cardSubParts(structured, "")
		card.Diagrams = b.Diagrams
		card.Marks = formatMarks(b.Marks)
		return card
	}

	texts := make([]string, 0, len(rec.Branches))
	marked := 0
	for _, b := range rec.Branches {
		main, options := s.splitOptions(b.Text)
		optionParts, structured := partitionSubParts(b.SubParts)
		choice := types.CardChoice{
			Location: string(b.Tag),
			Text:     s.renderSubParts(main, structured),
			Options:  append(options, s.renderOptionRows(optionParts)...),
			Marks:    formatMarks(b.Marks),
			Diagrams: b.Diagrams,
		}
		if choice.Marks != "" {
			marked++
		}
		card.Choices = append(card.Choices, choice)
		texts = append(texts, choice.Text)
	}
	card.QuestionText = strings.Join(texts, "\n\n**OR**\n\n")
	if marked > 0 {
		card.Marks = fmt.Sprintf("%d choices", len(card.Choices))
	}
	return card
}

// optionRow reports whether a carved sub-part reads as an MCQ option row
// rather than a structural question part: a bare (a)-(d) label with no
// nesting, no own marks and no internal choice.
func optionRow(sp types.SubPart) bool {
	if len(sp.Label) != 1 || sp.Label[0] < 'a' || sp.Label[0] > 'd' {
		return false
	}
	return len(sp.SubParts) == 0 && len(sp.Branches) == 0 && sp.Marks.IsZero()
}

// partitionSubParts decides what the carved sub-parts of one branch mean
// for presentation. A run of two or more parts that all look like option
// rows is the question's option list; anything else stays structural.
func partitionSubParts(subParts []types.SubPart) ([]types.SubPart, []types.SubPart) {
	allOptions := len(subParts) >= 2
	for _, sp := range subParts {
		if !optionRow(sp) {
			allOptions = false
			break
		}
	}
	if allOptions {
		return subParts, nil
	}
	return nil, subParts
}

func (s *CardService) renderOptionRows(parts []types.SubPart) []string {
	var rows []string
	for _, sp := range parts {
		rows = append(rows, "("+sp.Label+") "+s.replaceORMarkers(sp.Text))
	}
	return rows
}

// needsReview reports whether any recorded discrepancy names this
// question, under the same root folding the reconcilers match with.
func (s *CardService) needsReview(root string, ds []types.Discrepancy) bool {
	norm := s.engine.Normalizer()
	for _, d := range ds {
		if norm.SameRoot(d.Identifier, root) {
			return true
		}
	}
	return false
}

// splitOptions separates MCQ option rows from the question body. Option
// rows keep their "(a)" prefix; the remaining non-empty lines join into
// the main text. Choice markers left in the text become a bold OR
// divider first, so a malformed second delimiter still reads naturally.
func (s *CardService) splitOptions(text string) (string, []string) {
	text = s.replaceORMarkers(text)
	var mainLines, options []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if optionPattern.MatchString(line) {
			options = append(options, line)
			continue
		}
		mainLines = append(mainLines, line)
	}
	return strings.Join(mainLines, "\n"), options
}

func (s *CardService) replaceORMarkers(text string) string {
	text = strings.ReplaceAll(text, s.orMarker, "\n\n**OR**\n\n")
	return strings.ReplaceAll(text, strings.ToLower(s.orMarker), "\n\n**or**\n\n")
}

// cardSubParts flattens the sub-part tree into dot-labeled rows ("a",
// then "a.i" for its children).
func (s *CardService) cardSubParts(subParts []types.SubPart, prefix string) []types.CardSubPart {
	var out []types.CardSubPart
	for _, sp := range subParts {
		label := sp.Label
		if prefix != "" {
			label = prefix + "." + sp.Label
		}
		out = append(out, types.CardSubPart{
			Label: label,
			Text:  s.subPartText(sp),
			Marks: formatMarks(sp.Marks),
		})
		out = append(out, s.cardSubParts(sp.SubParts, label)...)
	}
	return out
}

// subPartText is the row text for one flattened sub-part: its own text
// only, nested parts get rows of their own.
func (s *CardService) subPartText(sp types.SubPart) string {
	if len(sp.Branches) > 0 {
		return s.joinBranchTexts(sp.Branches)
	}
	return s.replaceORMarkers(sp.Text)
}

// renderSubParts folds a branch's sub-parts into one flat text blob as
// "(label) text" lines, for card fields that carry a single string.
func (s *CardService) renderSubParts(main string, subParts []types.SubPart) string {
	if len(subParts) == 0 {
		return main
	}
	var lines []string
	if main != "" {
		lines = append(lines, main)
	}
	for _, sp := range subParts {
		lines = append(lines, "("+sp.Label+") "+s.renderSubPart(sp))
	}
	return strings.Join(lines, "\n")
}

func (s *CardService) renderSubPart(sp types.SubPart) string {
	if len(sp.Branches) > 0 {
		return s.joinBranchTexts(sp.Branches)
	}
	return s.renderSubParts(s.replaceORMarkers(sp.Text), sp.SubParts)
}

func (s *CardService) joinBranchTexts(branches []types.Branch) string {
	texts := make([]string, 0, len(branches))
	for _, b := range branches {
		texts = append(texts, s.renderSubParts(s.replaceORMarkers(b.Text), b.SubParts))
	}
	return strings.Join(texts, "\n\n**OR**\n\n")
}

// formatMarks renders a marks descriptor for display: a list becomes
// "N choices", a bare number becomes "N marks" and free text passes
// through unchanged.
func formatMarks(m types.MarksDescriptor) string {
	if m.IsList() {
		return fmt.Sprintf("%d choices", len(m.Values))
	}
	if m.Value == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(m.Value, 64); err == nil {
		return m.Value + " marks"
	}
	return m.Value
}

// summarizeCards builds the exported summary: totals, per-type counts,
// diagram and internal-choice tallies.
func summarizeCards(cards []types.QuestionCard) types.CardSummary {
	summary := types.CardSummary{
		TotalQuestions: len(cards),
		QuestionTypes:  make(map[string]int),
	}
	for _, card := range cards {
		summary.QuestionTypes[card.QuestionType]++
		if n := cardDiagramCount(card); n > 0 {
			summary.QuestionsWithDiagrams++
			summary.TotalDiagrams += n
		}
		if card.HasInternalChoice {
			summary.QuestionsWithInternalChoice++
		}
	}
	return summary
}

func cardDiagramCount(card types.QuestionCard) int {
	n := len(card.Diagrams)
	for _, choice := range card.Choices {
		n += len(choice.Diagrams)
	}
	return n
}

// ApplyCardFilter selects the cards matching every set field of the
// filter. The marks filter matches the formatted value or its leading
// token, so "3" selects cards showing "3 marks".
func ApplyCardFilter(cards []types.QuestionCard, filter types.CardFilter) []types.QuestionCard {
	out := make([]types.QuestionCard, 0, len(cards))
	for _, card := range cards {
		if matchesFilter(card, filter) {
			out = append(out, card)
		}
	}
	return out
}

func matchesFilter(card types.QuestionCard, filter types.CardFilter) bool {
	if len(filter.Types) > 0 && !containsFold(filter.Types, card.QuestionType) {
		return false
	}
	if filter.Marks != "" && !marksMatch(card.Marks, filter.Marks) {
		return false
	}
	if filter.WithDiagrams != nil && *filter.WithDiagrams != (cardDiagramCount(card) > 0) {
		return false
	}
	if filter.WithInternalChoice != nil && *filter.WithInternalChoice != card.HasInternalChoice {
		return false
	}
	return true
}

func marksMatch(cardMarks, want string) bool {
	if strings.EqualFold(cardMarks, want) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(cardMarks), strings.ToLower(want)+" ")
}

func containsFold(list []string, want string) bool {
	for _, item := range list {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
