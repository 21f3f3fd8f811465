package types

// QuestionCard is the presentation unit built from one finalized record.
type QuestionCard struct {
	QuestionNumber    string        `json:"question_number"`
	QuestionType      string        `json:"question_type"`
	Marks             string        `json:"marks"`
	QuestionText      string        `json:"question_text"`
	Options           []string      `json:"options,omitempty"`
	SubParts          []CardSubPart `json:"sub_parts,omitempty"`
	Diagrams          []DiagramRef  `json:"diagrams,omitempty"`
	HasInternalChoice bool          `json:"has_internal_choice"`
	Choices           []CardChoice  `json:"choices,omitempty"`
	NeedsReview       bool          `json:"needs_review"`
}

// CardChoice is one side of an internal choice rendered on a card.
type CardChoice struct {
	Location string       `json:"location"`
	Text     string       `json:"text"`
	Options  []string     `json:"options,omitempty"`
	Marks    string       `json:"marks,omitempty"`
	Diagrams []DiagramRef `json:"diagrams,omitempty"`
}

type CardSubPart struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	Marks string `json:"marks,omitempty"`
}

type CardSummary struct {
	TotalQuestions              int            `json:"total_questions"`
	QuestionTypes               map[string]int `json:"question_types"`
	QuestionsWithDiagrams       int            `json:"questions_with_diagrams"`
	QuestionsWithInternalChoice int            `json:"questions_with_internal_choice"`
	TotalDiagrams               int            `json:"total_diagrams"`
}

// CardSet is the persisted output of card generation for one paper.
type CardSet struct {
	Paper             string            `json:"paper"`
	GeneratedAt       int64             `json:"generated_at"`
	Cards             []QuestionCard    `json:"cards"`
	Summary           CardSummary       `json:"summary"`
	UnmatchedDiagrams []DiagramRef      `json:"unmatched_diagrams,omitempty"`
	Discrepancies     []Discrepancy     `json:"discrepancies,omitempty"`
	Consistency       ConsistencyReport `json:"consistency"`
}

// CardFilter selects a subset of cards; zero value matches everything.
type CardFilter struct {
	Types              []string `json:"types,omitempty"`
	Marks              string   `json:"marks,omitempty"`
	WithDiagrams       *bool    `json:"with_diagrams,omitempty"`
	WithInternalChoice *bool    `json:"with_internal_choice,omitempty"`
}
