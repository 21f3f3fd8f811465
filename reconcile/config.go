package reconcile

// LabelSequence is an ordered run of sub-part labels that the parser
// recognizes as a numbering scheme, e.g. roman numerals or letters.
type LabelSequence struct {
	Name   string
	Labels []string
}

// First reports whether label opens the sequence.
func (s LabelSequence) First(label string) bool {
	return len(s.Labels) > 0 && s.Labels[0] == label
}

// Contains reports whether label belongs to the sequence.
func (s LabelSequence) Contains(label string) bool {
	for _, l := range s.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Successor returns the label that immediately follows prev, or "" when
// prev is unknown or last.
func (s LabelSequence) Successor(prev string) string {
	for i, l := range s.Labels {
		if l == prev && i+1 < len(s.Labels) {
			return s.Labels[i+1]
		}
	}
	return ""
}

// Config carries the tunable surface of the reconciliation engine. All
// fields have working defaults from DefaultConfig; zero values fall back
// to those defaults in New.
type Config struct {
	// QuestionDelimiter terminates one question segment in the raw
	// extracted text.
	QuestionDelimiter string
	// ChoiceDelimiter separates the two branches of an internal-choice
	// question. Matched case-insensitively.
	ChoiceDelimiter string
	// ChoiceSynonyms maps each canonical branch tag to the raw
	// choice-location strings producers emit for it.
	ChoiceSynonyms map[string][]string
	// LabelSequences are tried in order when classifying a sub-part
	// label; earlier sequences win ambiguous tokens such as "(i)".
	LabelSequences []LabelSequence
	// MaxSubPartDepth caps sub-part nesting. Labels below the cap stay
	// in the enclosing part's text.
	MaxSubPartDepth int
}

// DefaultConfig returns the engine configuration used when the caller
// supplies nothing. The delimiters mirror the markers the extraction
// prompts instruct the model to emit.
func DefaultConfig() Config {
	return Config{
		QuestionDelimiter: "[####]",
		ChoiceDelimiter:   "[%OR%]",
		ChoiceSynonyms: map[string][]string{
			"none":   {"", "null", "none", "nil", "na", "n/a"},
			"first":  {"first", "1", "a", "one", "left", "top"},
			"second": {"second", "2", "b", "two", "right", "bottom"},
		},
		LabelSequences: []LabelSequence{
			{Name: "roman", Labels: []string{"i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix", "x", "xi", "xii"}},
			{Name: "letter", Labels: []string{"a", "b", "c", "d", "e", "f", "g", "h"}},
			{Name: "number", Labels: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}},
		},
		MaxSubPartDepth: 2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.QuestionDelimiter == "" {
		c.QuestionDelimiter = def.QuestionDelimiter
	}
	if c.ChoiceDelimiter == "" {
		c.ChoiceDelimiter = def.ChoiceDelimiter
	}
	if len(c.ChoiceSynonyms) == 0 {
		c.ChoiceSynonyms = def.ChoiceSynonyms
	}
	if len(c.LabelSequences) == 0 {
		c.LabelSequences = def.LabelSequences
	}
	if c.MaxSubPartDepth <= 0 {
		c.MaxSubPartDepth = def.MaxSubPartDepth
	}
	return c
}
