package reconcile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/openpariksha/pariksha-be/types"
)

var markKeyPattern = regexp.MustCompile(`(?i)^question[-_ ]*(.+)$`)

// BlockMarks carries the marks and question-type annotations resolved for
// one block. ByBranch holds per-branch descriptors; BySubPart holds the
// raw positional list when it maps onto a single branch's sub-parts.
type BlockMarks struct {
	QuestionType string
	ByBranch     map[types.BranchTag]types.MarksDescriptor
	BySubPart    []string
}

// MarksAttachments is the outcome of marks reconciliation, keyed by block
// position like diagram attachments.
type MarksAttachments struct {
	ByPosition map[int]*BlockMarks
}

// MarksReconciler resolves the marks-mapping artifact onto parsed blocks:
// scalar values to single branches, positional lists to choice branches
// or sub-parts.
type MarksReconciler struct {
	norm *Normalizer
}

func NewMarksReconciler(norm *Normalizer) *MarksReconciler {
	return &MarksReconciler{norm: norm}
}

// Reconcile walks the marks mapping in question order. Count mismatches
// between a marks list and the structure it describes never abort the
// run; the overlap is applied positionally and the rest is flagged.
func (r *MarksReconciler) Reconcile(blocks []types.QuestionBlock, index map[string]int, mapping types.MarksMapping) (*MarksAttachments, []types.Discrepancy) {
	out := &MarksAttachments{ByPosition: make(map[int]*BlockMarks)}
	var ds []types.Discrepancy

	for _, key := range sortedMarkKeys(mapping) {
		info := mapping[key]

		root, err := r.norm.NormalizeRoot(stripQuestionPrefix(key))
		if err != nil {
			ds = append(ds, types.Discrepancy{
				Identifier: key,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_MISSING_SOURCE,
				Detail:     fmt.Sprintf("marks entry %q has no usable question identifier", key),
			})
			continue
		}

		position, ok := index[canonicalRoot(root)]
		if !ok {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_UNMATCHED_IDENTIFIER,
				Detail:     fmt.Sprintf("marks entry %q matches no parsed block", key),
			})
			continue
		}
		if _, exists := out.ByPosition[position]; exists {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "marks<->marks",
				Kind:       types.DISCREPANCY_DUPLICATE_MATCH,
				Detail:     fmt.Sprintf("marks entry %q duplicates an earlier entry for question %s, first entry kept", key, root),
			})
			continue
		}

		bm := &BlockMarks{
			QuestionType: info.QuestionType,
			ByBranch:     make(map[types.BranchTag]types.MarksDescriptor),
		}
		ds = append(ds, r.applyMarks(bm, blocks[position-1], root, info.Marks)...)
		out.ByPosition[position] = bm
	}

	return out, ds
}

func (r *MarksReconciler) applyMarks(bm *BlockMarks, block types.QuestionBlock, root string, value types.MarksValue) []types.Discrepancy {
	var ds []types.Discrepancy
	branches := len(block.Branches)

	if !value.IsList() {
		if value.Scalar == "" {
			return nil
		}
		if branches == 2 {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
				Detail:     fmt.Sprintf("question %s has an internal choice but a single marks value %q, applied to both branches", root, value.Scalar),
			})
			bm.ByBranch[types.BranchFirst] = types.MarksDescriptor{Value: value.Scalar}
			bm.ByBranch[types.BranchSecond] = types.MarksDescriptor{Value: value.Scalar}
			return ds
		}
		bm.ByBranch[types.BranchNone] = types.MarksDescriptor{Value: value.Scalar}
		return nil
	}

	list := value.List
	if len(list) == 0 {
		return nil
	}

	if branches == 2 {
		bm.ByBranch[types.BranchFirst] = types.MarksDescriptor{Value: list[0]}
		if len(list) > 1 {
			bm.ByBranch[types.BranchSecond] = types.MarksDescriptor{Value: list[1]}
		}
		if len(list) != 2 {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
				Detail:     fmt.Sprintf("question %s has two choice branches but the marks list has %d entries", root, len(list)),
			})
		}
		return ds
	}

	subParts := block.Branches[0].SubParts
	if len(subParts) > 0 {
		bm.BySubPart = list
		if len(list) != len(subParts) {
			ds = append(ds, types.Discrepancy{
				Identifier: root,
				Sources:    "marks<->parser",
				Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
				Detail:     fmt.Sprintf("question %s has %d sub-parts but the marks list has %d entries", root, len(subParts), len(list)),
			})
		}
		return ds
	}

	if len(list) == 1 {
		bm.ByBranch[types.BranchNone] = types.MarksDescriptor{Value: list[0]}
		return nil
	}
	bm.ByBranch[types.BranchNone] = types.MarksDescriptor{Values: list}
	ds = append(ds, types.Discrepancy{
		Identifier: root,
		Sources:    "marks<->parser",
		Kind:       types.DISCREPANCY_BRANCH_COUNT_MISMATCH,
		Detail:     fmt.Sprintf("question %s has a single branch and no sub-parts but the marks list has %d entries", root, len(list)),
	})
	return ds
}

func stripQuestionPrefix(key string) string {
	if m := markKeyPattern.FindStringSubmatch(key); m != nil {
		return m[1]
	}
	return key
}

// sortedMarkKeys orders mapping keys by their numeric root when one
// exists, lexically otherwise, so reconciliation output is stable.
func sortedMarkKeys(mapping types.MarksMapping) []string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(canonicalRoot(keys[i]))
		nj, errj := strconv.Atoi(canonicalRoot(keys[j]))
		if erri == nil && errj == nil && ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}
