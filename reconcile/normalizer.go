package reconcile

import (
	"errors"
	"strings"
	"unicode"

	"github.com/openpariksha/pariksha-be/types"
)

// ErrEmptyIdentifier is returned when a raw identifier string contains no
// alphanumeric root at all ("", "??", "---").
var ErrEmptyIdentifier = errors.New("identifier has no alphanumeric root")

// Normalizer folds the inconsistent identifier spellings the three
// extraction sources emit ("12", "Q12", "(12)", "question-12") into one
// comparable form so the reconcilers can join records across sources.
type Normalizer struct {
	choices map[string]types.BranchTag
}

func NewNormalizer(cfg Config) *Normalizer {
	cfg = cfg.withDefaults()
	choices := make(map[string]types.BranchTag)
	for canonical, raws := range cfg.ChoiceSynonyms {
		tag := types.BranchTag(canonical)
		for _, raw := range raws {
			choices[strings.ToLower(strings.TrimSpace(raw))] = tag
		}
	}
	return &Normalizer{choices: choices}
}

// NormalizeRoot strips surrounding punctuation and whitespace from a raw
// identifier and extracts its leading alphanumeric root. A letter prefix
// separated from digits by punctuation or spaces is joined with them, so
// "Question 12" and "q-12" both yield usable roots.
func (n *Normalizer) NormalizeRoot(raw string) (string, error) {
	s := []rune(strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	if len(s) == 0 {
		return "", ErrEmptyIdentifier
	}

	var root []rune
	joined := false
	i := 0
	for i < len(s) {
		if isAlnum(s[i]) {
			root = append(root, s[i])
			i++
			continue
		}
		// Allow one separator run between a letter prefix and its digits.
		if !joined && len(root) > 0 && allLetters(string(root)) {
			j := i
			for j < len(s) && isSeparator(s[j]) {
				j++
			}
			if j < len(s) && unicode.IsDigit(s[j]) {
				joined = true
				i = j
				continue
			}
		}
		break
	}
	if len(root) == 0 {
		return "", ErrEmptyIdentifier
	}
	return string(root), nil
}

// NormalizeChoice maps a raw choice-location string to a branch tag using
// the configured synonym table. The second return is false when the raw
// string is not recognized.
func (n *Normalizer) NormalizeChoice(raw string) (types.BranchTag, bool) {
	tag, ok := n.choices[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return types.BranchNone, false
	}
	return tag, true
}

// Normalize builds a full identifier from raw root and choice strings.
func (n *Normalizer) Normalize(rawRoot, rawChoice string) (types.QuestionIdentifier, error) {
	root, err := n.NormalizeRoot(rawRoot)
	if err != nil {
		return types.QuestionIdentifier{}, err
	}
	tag, _ := n.NormalizeChoice(rawChoice)
	return types.QuestionIdentifier{Root: root, Branch: tag}, nil
}

// SameRoot reports whether two raw roots name the same question under
// case-insensitive, punctuation-insensitive comparison. "12", "Q12" and
// "(12)" all agree.
func (n *Normalizer) SameRoot(a, b string) bool {
	ca, cb := canonicalRoot(a), canonicalRoot(b)
	return ca != "" && ca == cb
}

// canonicalRoot reduces a root to its comparison key: lowercase, alnum
// only, with a "question"/"q" prefix dropped when digits follow it.
func canonicalRoot(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	for _, prefix := range []string{"question", "q"} {
		rest := strings.TrimPrefix(s, prefix)
		if rest != s && rest != "" && unicode.IsDigit(rune(rest[0])) {
			return rest
		}
	}
	return s
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func allLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '-' || r == '_' || r == '.' || r == ':' || r == '\t'
}
