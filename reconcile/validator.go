package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openpariksha/pariksha-be/types"
)

// validate runs the structural consistency checks over an assembled
// result. Checks describe the output, they never modify it; a failed
// check fails the report but the result is still delivered.
func validate(in Input, blocks []types.QuestionBlock, res *Result, maxDepth int) types.ConsistencyReport {
	checks := []types.ConsistencyCheck{
		checkRecordCount(blocks, res.Records),
		checkSourceOrder(res.Records),
		checkBranchCounts(res.Records),
		checkDiagramCompleteness(in.DiagramMap, res),
		checkSubPartDepth(res.Records, maxDepth),
	}
	passed := true
	for _, c := range checks {
		if !c.Passed {
			passed = false
		}
	}
	return types.ConsistencyReport{Passed: passed, Checks: checks}
}

func checkRecordCount(blocks []types.QuestionBlock, records []types.QuestionRecord) types.ConsistencyCheck {
	c := types.ConsistencyCheck{Name: "record_count", Passed: len(blocks) == len(records)}
	if !c.Passed {
		c.Detail = fmt.Sprintf("%d parsed blocks but %d records", len(blocks), len(records))
	}
	return c
}

func checkSourceOrder(records []types.QuestionRecord) types.ConsistencyCheck {
	c := types.ConsistencyCheck{Name: "source_order", Passed: true}
	for i := 1; i < len(records); i++ {
		if records[i].Position <= records[i-1].Position {
			c.Passed = false
			c.Detail = fmt.Sprintf("record %d at position %d follows position %d", i+1, records[i].Position, records[i-1].Position)
			return c
		}
	}
	return c
}

func checkBranchCounts(records []types.QuestionRecord) types.ConsistencyCheck {
	c := types.ConsistencyCheck{Name: "branch_count", Passed: true}
	for _, r := range records {
		switch len(r.Branches) {
		case 1:
			if r.Branches[0].Tag != types.BranchNone {
				c.Passed = false
				c.Detail = fmt.Sprintf("question %s has a single branch tagged %q", r.Identifier.Root, r.Branches[0].Tag)
				return c
			}
		case 2:
			if r.Branches[0].Tag != types.BranchFirst || r.Branches[1].Tag != types.BranchSecond {
				c.Passed = false
				c.Detail = fmt.Sprintf("question %s has two branches tagged %q and %q", r.Identifier.Root, r.Branches[0].Tag, r.Branches[1].Tag)
				return c
			}
		default:
			c.Passed = false
			c.Detail = fmt.Sprintf("question %s has %d branches", r.Identifier.Root, len(r.Branches))
			return c
		}
	}
	return c
}

// checkDiagramCompleteness verifies that every figure from the input
// mapping is either attached to some record or sits in the unmatched
// bucket, and never both.
func checkDiagramCompleteness(mapping types.DiagramMapping, res *Result) types.ConsistencyCheck {
	c := types.ConsistencyCheck{Name: "diagram_completeness", Passed: true}

	attached := make(map[string]bool)
	for _, r := range res.Records {
		for _, b := range r.Branches {
			collectFigures(b.Diagrams, b.SubParts, attached)
		}
	}
	unmatched := make(map[string]bool, len(res.UnmatchedDiagrams))
	for _, ref := range res.UnmatchedDiagrams {
		unmatched[ref.Figure] = true
	}

	var missing, doubled []string
	for figure := range mapping {
		switch {
		case attached[figure] && unmatched[figure]:
			doubled = append(doubled, figure)
		case !attached[figure] && !unmatched[figure]:
			missing = append(missing, figure)
		}
	}
	if len(missing) > 0 || len(doubled) > 0 {
		c.Passed = false
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "lost: "+strings.Join(sortLabels(missing), ", "))
		}
		if len(doubled) > 0 {
			parts = append(parts, "both attached and unmatched: "+strings.Join(sortLabels(doubled), ", "))
		}
		c.Detail = strings.Join(parts, "; ")
	}
	return c
}

func collectFigures(refs []types.DiagramRef, subParts []types.SubPart, into map[string]bool) {
	for _, ref := range refs {
		into[ref.Figure] = true
	}
	for _, sp := range subParts {
		collectFigures(sp.Diagrams, sp.SubParts, into)
	}
}

func checkSubPartDepth(records []types.QuestionRecord, maxDepth int) types.ConsistencyCheck {
	c := types.ConsistencyCheck{Name: "sub_part_depth", Passed: true}
	for _, r := range records {
		for _, b := range r.Branches {
			if d := subPartDepth(b.SubParts); d > maxDepth {
				c.Passed = false
				c.Detail = fmt.Sprintf("question %s nests sub-parts %d levels deep, limit is %d", r.Identifier.Root, d, maxDepth)
				return c
			}
		}
	}
	return c
}

func subPartDepth(subParts []types.SubPart) int {
	deepest := 0
	for _, sp := range subParts {
		if d := subPartDepth(sp.SubParts); d > deepest {
			deepest = d
		}
	}
	if len(subParts) == 0 {
		return 0
	}
	return deepest + 1
}

func sortLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	sort.Strings(out)
	return out
}
