// Package reconcile turns the three artifacts of a processed paper, the
// delimiter-marked question text, the diagram mapping and the marks
// mapping, into one ordered list of question records. Everything here is
// pure and deterministic: no I/O, no goroutines, and identical input
// produces identical output. Cross-source conflicts are recorded as
// discrepancies on the result, never raised as errors.
package reconcile

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/openpariksha/pariksha-be/types"
)

// ErrInvalidText is the engine's only fatal condition: question text that
// is not valid UTF-8 cannot be segmented meaningfully.
var ErrInvalidText = errors.New("question text is not valid UTF-8")

// Input bundles one paper's artifacts. DiagramMeta may be nil when figure
// crops are unavailable; the mapping is still reconciled without page and
// path information.
type Input struct {
	QuestionText string
	DiagramMap   types.DiagramMapping
	DiagramMeta  *types.DiagramMeta
	MarksMap     types.MarksMapping
}

// Result is the assembled output: one record per parsed block in source
// order, every unplaceable figure, and every recorded inconsistency.
type Result struct {
	Records           []types.QuestionRecord
	UnmatchedDiagrams []types.DiagramRef
	Discrepancies     []types.Discrepancy
	Consistency       types.ConsistencyReport
}

// Engine wires the parser, normalizer and reconcilers behind one call.
type Engine struct {
	cfg      Config
	parser   *Parser
	norm     *Normalizer
	diagrams *DiagramReconciler
	marks    *MarksReconciler
}

func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	norm := NewNormalizer(cfg)
	return &Engine{
		cfg:      cfg,
		parser:   NewParser(cfg),
		norm:     norm,
		diagrams: NewDiagramReconciler(norm),
		marks:    NewMarksReconciler(norm),
	}
}

// Normalizer exposes the engine's identifier normalizer for callers that
// need the same folding rules outside a full reconciliation run.
func (e *Engine) Normalizer() *Normalizer {
	return e.norm
}

// Reconcile parses the question text, matches diagrams and marks onto the
// parsed blocks, assembles final records and validates the result. The
// only error is structurally unusable input; every recoverable problem
// lands in Result.Discrepancies instead.
func (e *Engine) Reconcile(in Input) (*Result, error) {
	if !utf8.ValidString(in.QuestionText) {
		return nil, ErrInvalidText
	}

	blocks, parseDs := e.parser.Parse(in.QuestionText)
	index, dupDs := buildRootIndex(blocks)
	diagAtt, diagDs := e.diagrams.Reconcile(blocks, index, in.DiagramMap, in.DiagramMeta)
	marksAtt, marksDs := e.marks.Reconcile(blocks, index, in.MarksMap)

	records, assembleDs := assemble(blocks, diagAtt, marksAtt)

	res := &Result{
		Records:           records,
		UnmatchedDiagrams: diagAtt.Unmatched,
	}
	res.Discrepancies = append(res.Discrepancies, parseDs...)
	res.Discrepancies = append(res.Discrepancies, dupDs...)
	res.Discrepancies = append(res.Discrepancies, diagDs...)
	res.Discrepancies = append(res.Discrepancies, marksDs...)
	res.Discrepancies = append(res.Discrepancies, assembleDs...)
	res.Consistency = validate(in, blocks, res, e.cfg.MaxSubPartDepth)
	return res, nil
}

// assemble builds one fresh record per block and applies the resolved
// annotations. Blocks with no marks entry get defaults and one recorded
// discrepancy; absent diagrams are normal and not flagged.
func assemble(blocks []types.QuestionBlock, diagAtt *DiagramAttachments, marksAtt *MarksAttachments) ([]types.QuestionRecord, []types.Discrepancy) {
	records := make([]types.QuestionRecord, 0, len(blocks))
	var ds []types.Discrepancy

	for _, block := range blocks {
		branches := make([]types.Branch, len(block.Branches))
		for i, b := range block.Branches {
			nb := b
			nb.SubParts = cloneSubParts(b.SubParts)
			if att := diagAtt.ByPosition[block.Position]; att != nil {
				nb.Diagrams = att[b.Tag]
			}
			branches[i] = nb
		}

		questionType := types.QuestionTypeUnknown
		if bm := marksAtt.ByPosition[block.Position]; bm != nil {
			if bm.QuestionType != "" {
				questionType = bm.QuestionType
			}
			for i := range branches {
				branches[i].QuestionType = questionType
				if d, ok := bm.ByBranch[branches[i].Tag]; ok {
					branches[i].Marks = d
				}
				if branches[i].Tag == types.BranchNone && len(bm.BySubPart) > 0 {
					applySubPartMarks(branches[i].SubParts, bm.BySubPart)
				}
			}
		} else {
			ds = append(ds, types.Discrepancy{
				Identifier: block.Identifier.Root,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_MISSING_SOURCE,
				Detail:     fmt.Sprintf("no marks entry for question %s, type and marks defaulted", block.Identifier.Root),
			})
		}

		records = append(records, types.QuestionRecord{
			Identifier:   block.Identifier,
			Position:     block.Position,
			Text:         block.RawText,
			Branches:     branches,
			QuestionType: questionType,
			Synthesized:  block.Synthesized,
		})
	}
	return records, ds
}

// buildRootIndex maps canonical roots to block positions. The first block
// with a given root wins; later duplicates are flagged and never indexed,
// so all annotations go to the first occurrence.
func buildRootIndex(blocks []types.QuestionBlock) (map[string]int, []types.Discrepancy) {
	index := make(map[string]int, len(blocks))
	var ds []types.Discrepancy
	for _, block := range blocks {
		key := canonicalRoot(block.Identifier.Root)
		if key == "" {
			continue
		}
		if first, exists := index[key]; exists {
			ds = append(ds, types.Discrepancy{
				Identifier: block.Identifier.Root,
				Sources:    "parser<->parser",
				Kind:       types.DISCREPANCY_DUPLICATE_MATCH,
				Detail:     fmt.Sprintf("blocks %d and %d share question number %s, annotations go to block %d", first, block.Position, block.Identifier.Root, first),
			})
			continue
		}
		index[key] = block.Position
	}
	return index, ds
}

func applySubPartMarks(subParts []types.SubPart, values []string) {
	for i := range subParts {
		if i >= len(values) {
			return
		}
		subParts[i].Marks = types.MarksDescriptor{Value: values[i]}
	}
}

func cloneSubParts(in []types.SubPart) []types.SubPart {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.SubPart, len(in))
	copy(out, in)
	for i := range out {
		out[i].Branches = cloneBranches(out[i].Branches)
		out[i].SubParts = cloneSubParts(out[i].SubParts)
	}
	return out
}

func cloneBranches(in []types.Branch) []types.Branch {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Branch, len(in))
	copy(out, in)
	for i := range out {
		out[i].SubParts = cloneSubParts(out[i].SubParts)
	}
	return out
}
