package reconcile

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/openpariksha/pariksha-be/types"
)

// DiagramAttachments is the outcome of matching extracted figures against
// parsed blocks. Attachments are keyed by block position so the blocks
// themselves stay untouched.
type DiagramAttachments struct {
	ByPosition map[int]map[types.BranchTag][]types.DiagramRef
	Unmatched  []types.DiagramRef
}

func (a *DiagramAttachments) attach(position int, tag types.BranchTag, ref types.DiagramRef) {
	if a.ByPosition[position] == nil {
		a.ByPosition[position] = make(map[types.BranchTag][]types.DiagramRef)
	}
	a.ByPosition[position][tag] = append(a.ByPosition[position][tag], ref)
}

// DiagramReconciler joins the diagram-mapping artifact with figure
// metadata and resolves each figure onto a parsed block and branch.
type DiagramReconciler struct {
	norm *Normalizer
}

func NewDiagramReconciler(norm *Normalizer) *DiagramReconciler {
	return &DiagramReconciler{norm: norm}
}

// Reconcile matches every figure in mapping to a block, using the root
// index built once by the engine. Figures whose target cannot be resolved
// land in the unmatched bucket with exactly one discrepancy; no figure is
// ever dropped. Figure labels are processed in natural order so repeated
// runs produce identical output.
func (r *DiagramReconciler) Reconcile(blocks []types.QuestionBlock, index map[string]int, mapping types.DiagramMapping, meta *types.DiagramMeta) (*DiagramAttachments, []types.Discrepancy) {
	out := &DiagramAttachments{ByPosition: make(map[int]map[types.BranchTag][]types.DiagramRef)}
	var ds []types.Discrepancy

	for _, figure := range sortedFigureLabels(mapping) {
		target := mapping[figure]
		ref := types.DiagramRef{
			Figure:     figure,
			TargetRoot: target.QuestionIdentifier,
		}
		if info := findFigureInfo(meta, figure); info != nil {
			ref.Page = info.Page
			ref.Path = info.Path
		}

		root, err := r.norm.NormalizeRoot(target.QuestionIdentifier)
		if err != nil {
			out.Unmatched = append(out.Unmatched, ref)
			ds = append(ds, types.Discrepancy{
				Identifier: target.QuestionIdentifier,
				Sources:    "diagram<->parser",
				Kind:       types.DISCREPANCY_MISSING_SOURCE,
				Detail:     fmt.Sprintf("%s has no usable question identifier (%q)", figure, target.QuestionIdentifier),
			})
			continue
		}
		ref.TargetRoot = root

		position, ok := index[canonicalRoot(root)]
		if !ok {
			out.Unmatched = append(out.Unmatched, ref)
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "diagram<->parser",
				Kind:       types.DISCREPANCY_UNMATCHED_IDENTIFIER,
				Detail:     fmt.Sprintf("%s targets question %q which no parsed block matches", figure, target.QuestionIdentifier),
			})
			continue
		}
		block := blocks[position-1]

		tag, _ := r.norm.NormalizeChoice(target.ChoiceLocation)
		ref.TargetBranch = tag

		switch {
		case len(block.Branches) < 2:
			// Single-branch block: a first/second claim has nowhere
			// specific to go, attach to the lone branch and flag it.
			if tag != types.BranchNone {
				ds = append(ds, types.Discrepancy{
					Identifier: root,
					Sources:    "diagram<->parser",
					Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
					Detail:     fmt.Sprintf("%s names choice branch %q but question %s has no internal choice", figure, target.ChoiceLocation, root),
				})
				ref.TargetBranch = types.BranchNone
			}
			out.attach(position, types.BranchNone, ref)
		case tag == types.BranchNone:
			// Two branches but no side given: attach to both rather
			// than guess, and record the ambiguity.
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "diagram<->parser",
				Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
				Detail:     fmt.Sprintf("%s does not say which choice branch of question %s it belongs to, attached to both", figure, root),
			})
			firstRef, secondRef := ref, ref
			firstRef.TargetBranch = types.BranchFirst
			secondRef.TargetBranch = types.BranchSecond
			out.attach(position, types.BranchFirst, firstRef)
			out.attach(position, types.BranchSecond, secondRef)
		default:
			out.attach(position, tag, ref)
		}
	}

	return out, ds
}

func findFigureInfo(meta *types.DiagramMeta, figure string) *types.FigureInfo {
	if meta == nil {
		return nil
	}
	for i := range meta.Figures {
		if fmt.Sprintf("figure-%d", meta.Figures[i].FigureID) == figure {
			return &meta.Figures[i]
		}
	}
	return nil
}

// sortedFigureLabels orders figure keys numerically when they carry a
// trailing number ("figure-2" before "figure-10"), lexically otherwise.
func sortedFigureLabels(mapping types.DiagramMapping) []string {
	labels := make([]string, 0, len(mapping))
	for label := range mapping {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ni, iok := trailingNumber(labels[i])
		nj, jok := trailingNumber(labels[j])
		if iok && jok && ni != nj {
			return ni < nj
		}
		return labels[i] < labels[j]
	})
	return labels
}

func trailingNumber(s string) (int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}
