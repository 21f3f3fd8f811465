package reconcile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/openpariksha/pariksha-be/types"
)

// rootPatterns are tried in order against the head of each trimmed
// segment. The first match wins; its capture group is the question root.
var rootPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)\.`),
	regexp.MustCompile(`^Q(\d+)`),
	regexp.MustCompile(`^Question\s+(\d+)`),
	regexp.MustCompile(`^(\d+)\s`),
}

// Parser segments delimiter-marked question text into ordered blocks.
// It is type-agnostic: option rows and sub-question labels are carved
// the same way, and downstream presentation decides what they mean.
type Parser struct {
	cfg           Config
	labelPatterns []*regexp.Regexp
}

func NewParser(cfg Config) *Parser {
	return &Parser{
		cfg: cfg.withDefaults(),
		labelPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*\(([a-z0-9]{1,4})\)\s*`),
			regexp.MustCompile(`^\s*\[([a-z0-9]{1,4})\]\s*`),
			regexp.MustCompile(`^\s*([a-z0-9]{1,4})\.(?:\s+|$)`),
		},
	}
}

// Parse splits raw extracted text on the question delimiter and parses
// each non-empty segment into one QuestionBlock, preserving source order.
// Malformed segments still produce a block; the problem is recorded as a
// discrepancy instead of dropping the text.
func (p *Parser) Parse(text string) ([]types.QuestionBlock, []types.Discrepancy) {
	segments := splitSegments(text, p.cfg.QuestionDelimiter)
	blocks := make([]types.QuestionBlock, 0, len(segments))
	var discrepancies []types.Discrepancy
	for i, seg := range segments {
		block, ds := p.parseSegment(seg, i+1)
		blocks = append(blocks, block)
		discrepancies = append(discrepancies, ds...)
	}
	return blocks, discrepancies
}

func splitSegments(text, delim string) []string {
	parts := strings.Split(text, delim)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (p *Parser) parseSegment(seg string, position int) (types.QuestionBlock, []types.Discrepancy) {
	var ds []types.Discrepancy

	root, consumed := extractRoot(seg)
	synthesized := false
	if root == "" {
		root = strconv.Itoa(position)
		synthesized = true
		ds = append(ds, types.Discrepancy{
			Identifier: root,
			Sources:    "parser",
			Kind:       types.DISCREPANCY_MISSING_SOURCE,
			Detail:     "segment has no recognizable question number, identifier synthesized from source position",
		})
	}

	cuts := tokenIndexes(seg, p.cfg.ChoiceDelimiter)
	var branches []types.Branch
	switch {
	case len(cuts) == 0:
		branches = []types.Branch{p.buildBranch(types.BranchNone, seg, consumed)}
	default:
		if len(cuts) > 1 {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "parser",
				Kind:       types.DISCREPANCY_PARSE_MALFORMED,
				Detail:     "segment contains " + strconv.Itoa(len(cuts)) + " internal-choice delimiters, split at the first; the rest stay in the second branch text",
			})
		}
		first := seg[:cuts[0]]
		second := seg[cuts[0]+len(p.cfg.ChoiceDelimiter):]
		branches = []types.Branch{
			p.buildBranch(types.BranchFirst, first, consumed),
			p.buildBranch(types.BranchSecond, second, 0),
		}
	}

	return types.QuestionBlock{
		Identifier:  types.QuestionIdentifier{Root: root},
		Position:    position,
		RawText:     seg,
		Branches:    branches,
		Synthesized: synthesized,
	}, ds
}

// buildBranch carves sub-parts out of one branch body. rootLen bytes at
// the head of body hold the question number; they are skipped during
// label scanning so "1." never reads as a numeric sub-part label, then
// restored into the branch text.
func (p *Parser) buildBranch(tag types.BranchTag, body string, rootLen int) types.Branch {
	scan := body
	prefix := ""
	if rootLen > 0 && rootLen <= len(body) {
		prefix = strings.TrimSpace(body[:rootLen])
		scan = body[rootLen:]
	}

	preamble, subParts := p.scanSubParts(scan, 1, "")
	text := strings.TrimSpace(body)
	if len(subParts) > 0 {
		switch {
		case prefix != "" && preamble != "":
			text = prefix + " " + preamble
		case prefix != "":
			text = prefix
		default:
			text = preamble
		}
	}
	return types.Branch{Tag: tag, Text: text, SubParts: subParts}
}

// scanSubParts walks body line by line. A line-start label opens a new
// level only when it is the first label of a recognized sequence, and
// extends the open level only when it is the exact successor of the
// previous label. Everything else stays in the enclosing text, where a
// nested scan may pick it up one level down.
func (p *Parser) scanSubParts(body string, depth int, parentSeq string) (string, []types.SubPart) {
	if depth > p.cfg.MaxSubPartDepth {
		return strings.TrimSpace(body), nil
	}

	type rawPart struct {
		label string
		lines []string
	}
	var (
		preamble []string
		parts    []rawPart
		seq      *LabelSequence
	)

	for _, line := range strings.Split(body, "\n") {
		token, rest, ok := p.lineLabel(line)
		if ok {
			if seq != nil && len(parts) > 0 && seq.Successor(parts[len(parts)-1].label) == token {
				parts = append(parts, rawPart{label: token, lines: []string{rest}})
				continue
			}
			if seq == nil {
				if s := p.openingSequence(token, parentSeq); s != nil {
					seq = s
					parts = append(parts, rawPart{label: token, lines: []string{rest}})
					continue
				}
			}
		}
		if len(parts) == 0 {
			preamble = append(preamble, line)
		} else {
			parts[len(parts)-1].lines = append(parts[len(parts)-1].lines, line)
		}
	}

	out := make([]types.SubPart, 0, len(parts))
	for _, rp := range parts {
		text := strings.TrimSpace(strings.Join(rp.lines, "\n"))
		sp := types.SubPart{Label: rp.label, Text: text}
		if nestedPre, nested := p.scanSubParts(text, depth+1, seq.Name); len(nested) > 0 {
			sp.Text = nestedPre
			sp.SubParts = nested
		}
		out = append(out, sp)
	}
	return strings.TrimSpace(strings.Join(preamble, "\n")), out
}

// lineLabel matches a sub-part label at the start of a line: "(a)",
// "[ii]" or "3." forms. Dotted labels need trailing space or end of
// line, which keeps abbreviations like "i.e." out.
func (p *Parser) lineLabel(line string) (string, string, bool) {
	for _, re := range p.labelPatterns {
		if m := re.FindStringSubmatchIndex(line); m != nil {
			return line[m[2]:m[3]], line[m[1]:], true
		}
	}
	return "", "", false
}

// openingSequence returns the first configured sequence that token can
// open. Sequence order resolves ambiguous tokens, so "(i)" reads as a
// roman numeral rather than the ninth letter. The parent's own sequence
// is excluded one level down.
func (p *Parser) openingSequence(token, parentSeq string) *LabelSequence {
	for i := range p.cfg.LabelSequences {
		s := &p.cfg.LabelSequences[i]
		if s.Name != parentSeq && s.First(token) {
			return s
		}
	}
	return nil
}

func extractRoot(seg string) (string, int) {
	for _, re := range rootPatterns {
		if m := re.FindStringSubmatchIndex(seg); m != nil {
			return seg[m[2]:m[3]], m[1]
		}
	}
	return "", 0
}

// tokenIndexes finds every case-insensitive occurrence of token in s.
func tokenIndexes(s, token string) []int {
	if token == "" {
		return nil
	}
	lower, needle := strings.ToLower(s), strings.ToLower(token)
	var idx []int
	for start := 0; ; {
		i := strings.Index(lower[start:], needle)
		if i < 0 {
			return idx
		}
		idx = append(idx, start+i)
		start += i + len(needle)
	}
}
