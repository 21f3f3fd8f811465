package types

// BranchTag identifies which side of an internal "OR" choice a branch is.
type BranchTag string

const (
	BranchNone   BranchTag = "none"
	BranchFirst  BranchTag = "first"
	BranchSecond BranchTag = "second"
)

const (
	DISCREPANCY_UNMATCHED_IDENTIFIER  = "unmatched_identifier"
	DISCREPANCY_BRANCH_COUNT_MISMATCH = "branch_count_mismatch"
	DISCREPANCY_DUPLICATE_MATCH       = "duplicate_match"
	DISCREPANCY_MISSING_SOURCE        = "missing_source"
	DISCREPANCY_PARSE_MALFORMED       = "parse_malformed"
)

const (
	QuestionTypeMCQ                = "MCQ"
	QuestionTypeAssertionReasoning = "Assertion Reasoning"
	QuestionTypeCaseStudy          = "Case Study"
	QuestionTypeNormalSubjective   = "Normal Subjective"
	QuestionTypeInternalChoice     = "Internal Choice Subjective"
	QuestionTypeOtherSubjective    = "Other Subjective"
	QuestionTypeUnknown            = "Unknown"
)

// QuestionIdentifier is the normalized key shared by all three extraction
// sources. Root is mandatory; Branch and SubPath may be absent.
type QuestionIdentifier struct {
	Root    string    `json:"root"`
	Branch  BranchTag `json:"branch,omitempty"`
	SubPath []string  `json:"sub_path,omitempty"`
}

// QuestionBlock is one parsed question segment in source order. Blocks are
// immutable after parsing; reconcilers annotate copies, never the block.
type QuestionBlock struct {
	Identifier  QuestionIdentifier `json:"identifier"`
	Position    int                `json:"position"` // 1-based source order
	RawText     string             `json:"raw_text"`
	Branches    []Branch           `json:"branches"`
	Synthesized bool               `json:"synthesized,omitempty"`
}

type Branch struct {
	Tag          BranchTag       `json:"tag"`
	Text         string          `json:"text"`
	SubParts     []SubPart       `json:"sub_parts,omitempty"`
	Diagrams     []DiagramRef    `json:"diagrams,omitempty"`
	Marks        MarksDescriptor `json:"marks"`
	QuestionType string          `json:"question_type,omitempty"`
}

// SubPart is a labeled fragment of a case-study or multi-part question.
// Branches holds a sub-part-level internal choice when one exists.
type SubPart struct {
	Label    string          `json:"label"`
	Text     string          `json:"text"`
	Branches []Branch        `json:"branches,omitempty"`
	SubParts []SubPart       `json:"sub_parts,omitempty"`
	Diagrams []DiagramRef    `json:"diagrams,omitempty"`
	Marks    MarksDescriptor `json:"marks"`
}

// MarksDescriptor is either a single scalar value or an ordered list of
// per-branch / per-sub-part descriptors. At most one of the two is set.
type MarksDescriptor struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

func (m MarksDescriptor) IsList() bool {
	return len(m.Values) > 0
}

func (m MarksDescriptor) IsZero() bool {
	return m.Value == "" && len(m.Values) == 0
}

// DiagramRef ties one extracted figure to its target question and branch.
type DiagramRef struct {
	Figure       string    `json:"figure"`
	Page         int       `json:"page"`
	Path         string    `json:"path,omitempty"`
	TargetRoot   string    `json:"target_root"`
	TargetBranch BranchTag `json:"target_branch"`
}

// Discrepancy is a recorded, non-fatal inconsistency between reconciled
// sources. Accumulated and surfaced alongside the final output, never thrown.
type Discrepancy struct {
	Identifier string `json:"identifier"`
	Sources    string `json:"sources"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
}

// QuestionRecord is the finalized, read-only unit the assembler emits:
// exactly one per parsed block, in source order.
type QuestionRecord struct {
	Identifier   QuestionIdentifier `json:"identifier"`
	Position     int                `json:"position"`
	Text         string             `json:"text"`
	Branches     []Branch           `json:"branches"`
	QuestionType string             `json:"question_type"`
	Synthesized  bool               `json:"synthesized,omitempty"`
}

func (r QuestionRecord) HasInternalChoice() bool {
	return len(r.Branches) == 2
}

func (r QuestionRecord) DiagramCount() int {
	n := 0
	for _, b := range r.Branches {
		n += len(b.Diagrams)
		for _, sp := range b.SubParts {
			n += len(sp.Diagrams)
		}
	}
	return n
}

type ConsistencyCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type ConsistencyReport struct {
	Passed bool               `json:"passed"`
	Checks []ConsistencyCheck `json:"checks"`
}
