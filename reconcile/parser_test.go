package reconcile

import (
	"testing"

	"github.com/openpariksha/pariksha-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleBlock(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, ds := p.Parse("1. What is 2+2?\n(A) 3\n(B) 4\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)

	b := blocks[0]
	assert.Equal(t, "1", b.Identifier.Root)
	assert.Equal(t, 1, b.Position)
	assert.False(t, b.Synthesized)
	require.Len(t, b.Branches, 1)
	assert.Equal(t, types.BranchNone, b.Branches[0].Tag)
	// Uppercase option rows are prose, not sub-parts.
	assert.Empty(t, b.Branches[0].SubParts)
	assert.Contains(t, b.RawText, "(A) 3")
}

func TestParseRootFormats(t *testing.T) {
	p := NewParser(DefaultConfig())

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "number dot", text: "12. Evaluate.", want: "12"},
		{name: "q prefix", text: "Q12 Evaluate.", want: "12"},
		{name: "question word", text: "Question 12 Evaluate.", want: "12"},
		{name: "bare number", text: "12 Evaluate.", want: "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, ds := p.Parse(tt.text + "\n[####]")
			require.Len(t, blocks, 1)
			assert.Empty(t, ds)
			assert.Equal(t, tt.want, blocks[0].Identifier.Root)
			assert.False(t, blocks[0].Synthesized)
		})
	}
}

func TestParseKeepsSourceOrder(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "1. One.\n[####]\n2. Two.\n[####]\n3. Three.\n[####]"
	blocks, ds := p.Parse(text)
	require.Len(t, blocks, 3)
	assert.Empty(t, ds)
	for i, root := range []string{"1", "2", "3"} {
		assert.Equal(t, root, blocks[i].Identifier.Root)
		assert.Equal(t, i+1, blocks[i].Position)
	}
}

func TestParseInternalChoice(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, ds := p.Parse("4. (a) Find X.\n[%OR%]\n(b) Find Y.\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)

	b := blocks[0]
	assert.Equal(t, "4", b.Identifier.Root)
	require.Len(t, b.Branches, 2)
	assert.Equal(t, types.BranchFirst, b.Branches[0].Tag)
	assert.Equal(t, types.BranchSecond, b.Branches[1].Tag)
	assert.Contains(t, b.RawText, "Find X.")
	assert.Contains(t, b.RawText, "Find Y.")
}

func TestParseChoiceDelimiterCaseInsensitive(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, ds := p.Parse("9. Prove A.\n[%or%]\nProve B.\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)
	require.Len(t, blocks[0].Branches, 2)
	assert.Equal(t, "Prove B.", blocks[0].Branches[1].Text)
}

func TestParseMultipleChoiceDelimiters(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, ds := p.Parse("5. Path A.\n[%OR%]\nPath B.\n[%OR%]\nPath C.\n[####]")
	require.Len(t, blocks, 1)

	b := blocks[0]
	require.Len(t, b.Branches, 2, "split happens at the first delimiter only")
	assert.Contains(t, b.Branches[1].Text, "[%OR%]", "later delimiters stay literal")
	assert.Contains(t, b.Branches[1].Text, "Path C.")

	require.Len(t, ds, 1)
	assert.Equal(t, types.DISCREPANCY_PARSE_MALFORMED, ds[0].Kind)
	assert.Equal(t, "5", ds[0].Identifier)
}

func TestParseSynthesizesIdentifier(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "General Instructions: attempt all questions.\n[####]\n2. Real question.\n[####]"
	blocks, ds := p.Parse(text)
	require.Len(t, blocks, 2)

	assert.True(t, blocks[0].Synthesized)
	assert.Equal(t, "1", blocks[0].Identifier.Root, "synthesized from source position")
	assert.False(t, blocks[1].Synthesized)
	assert.Equal(t, "2", blocks[1].Identifier.Root)

	require.Len(t, ds, 1)
	assert.Equal(t, types.DISCREPANCY_MISSING_SOURCE, ds[0].Kind)
	assert.Equal(t, "parser", ds[0].Sources)
}

func TestParseEmptySegmentsDropped(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, ds := p.Parse("[####]\n\n[####]\n3. Only question.\n[####]\n   \n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)
	assert.Equal(t, "3", blocks[0].Identifier.Root)
	assert.Equal(t, 1, blocks[0].Position)
}

func TestParseLetterSubParts(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "38. Read the passage below.\n(a) State the theorem.\n(b) Prove it.\n(c) Apply it.\n[####]"
	blocks, ds := p.Parse(text)
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)

	b := blocks[0].Branches[0]
	assert.Equal(t, "38. Read the passage below.", b.Text)
	require.Len(t, b.SubParts, 3)
	assert.Equal(t, "a", b.SubParts[0].Label)
	assert.Equal(t, "State the theorem.", b.SubParts[0].Text)
	assert.Equal(t, "b", b.SubParts[1].Label)
	assert.Equal(t, "c", b.SubParts[2].Label)
}

func TestParseNumberedSubParts(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "36. A shopkeeper sells pens.\n1. Find the cost.\n2. Find the profit.\n[####]"
	blocks, _ := p.Parse(text)
	require.Len(t, blocks, 1)

	b := blocks[0].Branches[0]
	require.Len(t, b.SubParts, 2, "a numbered list opening at 1. reads as sub-parts")
	assert.Equal(t, "1", b.SubParts[0].Label)
	assert.Equal(t, "2", b.SubParts[1].Label)
}

func TestParseRootNumberIsNotASubPart(t *testing.T) {
	p := NewParser(DefaultConfig())

	// "1." here is the question number, and "2." on a later line is not
	// a sequence opener, so neither may carve a sub-part.
	blocks, _ := p.Parse("1. First thing.\nThen 2. is mentioned mid-prose.\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Branches[0].SubParts)
}

func TestParseNonSuccessorStaysProse(t *testing.T) {
	p := NewParser(DefaultConfig())

	// (b) cannot extend anything: no level is open and b does not open
	// a sequence.
	blocks, _ := p.Parse("4. Solve:\n(b) the odd label\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Branches[0].SubParts)
}

func TestParseNestedSubParts(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "36. A case study.\n(a) First part.\n(i) small one\n(ii) small two\n(b) Second part.\n[####]"
	blocks, ds := p.Parse(text)
	require.Len(t, blocks, 1)
	assert.Empty(t, ds)

	b := blocks[0].Branches[0]
	require.Len(t, b.SubParts, 2)

	a := b.SubParts[0]
	assert.Equal(t, "a", a.Label)
	assert.Equal(t, "First part.", a.Text)
	require.Len(t, a.SubParts, 2)
	assert.Equal(t, "i", a.SubParts[0].Label)
	assert.Equal(t, "small one", a.SubParts[0].Text)
	assert.Equal(t, "ii", a.SubParts[1].Label)

	assert.Equal(t, "b", b.SubParts[1].Label)
	assert.Empty(t, b.SubParts[1].SubParts)
}

func TestParseDepthCapped(t *testing.T) {
	p := NewParser(DefaultConfig())

	text := "36. Case.\n(a) Part.\n(i) Sub.\n1. deep one\n2. deep two\n(b) Next.\n[####]"
	blocks, _ := p.Parse(text)
	require.Len(t, blocks, 1)

	a := blocks[0].Branches[0].SubParts[0]
	require.Len(t, a.SubParts, 1)
	sub := a.SubParts[0]
	assert.Equal(t, "i", sub.Label)
	assert.Empty(t, sub.SubParts, "third level is flattened into text")
	assert.Contains(t, sub.Text, "1. deep one")
	assert.Contains(t, sub.Text, "2. deep two")
}

func TestParseRomanBeatsLetterForI(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, _ := p.Parse("20. Parts:\n(i) alpha\n(ii) beta\n[####]")
	require.Len(t, blocks, 1)

	parts := blocks[0].Branches[0].SubParts
	require.Len(t, parts, 2)
	assert.Equal(t, "i", parts[0].Label)
	assert.Equal(t, "ii", parts[1].Label)
}

func TestParseLowercaseOptionsBecomeSubParts(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, _ := p.Parse("3. Which is prime?\n(a) 4\n(b) 6\n(c) 7\n(d) 9\n[####]")
	require.Len(t, blocks, 1)

	parts := blocks[0].Branches[0].SubParts
	require.Len(t, parts, 4)
	for i, label := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, label, parts[i].Label)
	}
}

func TestParseDottedAbbreviationNotALabel(t *testing.T) {
	p := NewParser(DefaultConfig())

	blocks, _ := p.Parse("15. Explain.\ni.e. this line is prose\n[####]")
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Branches[0].SubParts)
}

func TestParseSubPartAfterRootOnSameLine(t *testing.T) {
	p := NewParser(DefaultConfig())

	// The question number is transparent for line-start purposes, so a
	// label right after it still opens a level.
	blocks, _ := p.Parse("30. (a) Shared line part.\n(b) Own line part.\n[####]")
	require.Len(t, blocks, 1)

	parts := blocks[0].Branches[0].SubParts
	require.Len(t, parts, 2)
	assert.Equal(t, "a", parts[0].Label)
	assert.Equal(t, "Shared line part.", parts[0].Text)
	assert.Equal(t, "b", parts[1].Label)
}
