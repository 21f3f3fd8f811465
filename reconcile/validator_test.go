package reconcile

import (
	"testing"

	"github.com/openpariksha/pariksha-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRecordCountMismatch(t *testing.T) {
	blocks := []types.QuestionBlock{{Position: 1}, {Position: 2}}
	records := []types.QuestionRecord{{Position: 1}}

	c := checkRecordCount(blocks, records)
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "2 parsed blocks but 1 records")
}

func TestCheckSourceOrderFlagsRegression(t *testing.T) {
	ok := checkSourceOrder([]types.QuestionRecord{{Position: 1}, {Position: 2}})
	assert.True(t, ok.Passed)

	bad := checkSourceOrder([]types.QuestionRecord{{Position: 2}, {Position: 2}})
	assert.False(t, bad.Passed)
}

func TestCheckBranchCountsTagging(t *testing.T) {
	good := []types.QuestionRecord{
		{Branches: []types.Branch{{Tag: types.BranchNone}}},
		{Branches: []types.Branch{{Tag: types.BranchFirst}, {Tag: types.BranchSecond}}},
	}
	assert.True(t, checkBranchCounts(good).Passed)

	single := []types.QuestionRecord{
		{Identifier: types.QuestionIdentifier{Root: "4"}, Branches: []types.Branch{{Tag: types.BranchFirst}}},
	}
	c := checkBranchCounts(single)
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "question 4")

	swapped := []types.QuestionRecord{
		{Identifier: types.QuestionIdentifier{Root: "9"}, Branches: []types.Branch{{Tag: types.BranchSecond}, {Tag: types.BranchFirst}}},
	}
	assert.False(t, checkBranchCounts(swapped).Passed)

	empty := []types.QuestionRecord{{Identifier: types.QuestionIdentifier{Root: "2"}}}
	assert.False(t, checkBranchCounts(empty).Passed)
}

func TestCheckDiagramCompletenessLostFigure(t *testing.T) {
	mapping := types.DiagramMapping{
		"figure-1": {QuestionIdentifier: "3"},
		"figure-2": {QuestionIdentifier: "5"},
	}
	res := &Result{
		Records: []types.QuestionRecord{{
			Branches: []types.Branch{{
				Tag:      types.BranchNone,
				Diagrams: []types.DiagramRef{{Figure: "figure-1"}},
			}},
		}},
	}

	c := checkDiagramCompleteness(mapping, res)
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "lost: figure-2")
}

func TestCheckDiagramCompletenessDoubleAccounting(t *testing.T) {
	mapping := types.DiagramMapping{"figure-1": {QuestionIdentifier: "3"}}
	res := &Result{
		Records: []types.QuestionRecord{{
			Branches: []types.Branch{{
				Tag:      types.BranchNone,
				Diagrams: []types.DiagramRef{{Figure: "figure-1"}},
			}},
		}},
		UnmatchedDiagrams: []types.DiagramRef{{Figure: "figure-1"}},
	}

	c := checkDiagramCompleteness(mapping, res)
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "both attached and unmatched: figure-1")
}

func TestCheckDiagramCompletenessSeesNestedSubParts(t *testing.T) {
	mapping := types.DiagramMapping{"figure-4": {QuestionIdentifier: "38"}}
	res := &Result{
		Records: []types.QuestionRecord{{
			Branches: []types.Branch{{
				Tag: types.BranchNone,
				SubParts: []types.SubPart{{
					Label: "a",
					SubParts: []types.SubPart{{
						Label:    "i",
						Diagrams: []types.DiagramRef{{Figure: "figure-4"}},
					}},
				}},
			}},
		}},
	}

	assert.True(t, checkDiagramCompleteness(mapping, res).Passed)
}

func TestCheckSubPartDepthLimit(t *testing.T) {
	nested := []types.QuestionRecord{{
		Identifier: types.QuestionIdentifier{Root: "38"},
		Branches: []types.Branch{{
			Tag: types.BranchNone,
			SubParts: []types.SubPart{{
				Label: "a",
				SubParts: []types.SubPart{{
					Label:    "i",
					SubParts: []types.SubPart{{Label: "x"}},
				}},
			}},
		}},
	}}

	c := checkSubPartDepth(nested, 2)
	assert.False(t, c.Passed)
	assert.Contains(t, c.Detail, "3 levels deep")

	assert.True(t, checkSubPartDepth(nested, 3).Passed)
}

func TestValidateAggregatesChecks(t *testing.T) {
	in := Input{DiagramMap: types.DiagramMapping{"figure-1": {QuestionIdentifier: "1"}}}
	blocks := []types.QuestionBlock{{Position: 1}}
	res := &Result{Records: []types.QuestionRecord{{
		Position: 1,
		Branches: []types.Branch{{Tag: types.BranchNone}},
	}}}

	report := validate(in, blocks, res, 2)
	require.Len(t, report.Checks, 5)
	assert.False(t, report.Passed, "the mapped figure is neither attached nor unmatched")

	byName := make(map[string]types.ConsistencyCheck, len(report.Checks))
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.True(t, byName["record_count"].Passed)
	assert.True(t, byName["source_order"].Passed)
	assert.True(t, byName["branch_count"].Passed)
	assert.False(t, byName["diagram_completeness"].Passed)
	assert.True(t, byName["sub_part_depth"].Passed)
}
