package diag

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(file string, line, col int) hcl.Range {
	return hcl.Range{
		Filename: file,
		Start:    hcl.Pos{Line: line, Column: col},
		End:      hcl.Pos{Line: line, Column: col + 1},
	}
}

func TestSort(t *testing.T) {
	diags := hcl.Diagnostics{
		New(ValidationError, at("b.lbf", 1, 1), "b", ""),
		New(ValidationError, at("a.lbf", 7, 3), "a7", ""),
		{Severity: hcl.DiagError, Summary: "nosubject"},
		New(ValidationError, at("a.lbf", 2, 9), "a2c9", ""),
		New(ValidationError, at("a.lbf", 2, 1), "a2c1", ""),
	}

	Sort(diags)

	var got []string
	for _, d := range diags {
		got = append(got, d.Summary)
	}
	assert.Equal(t, []string{"a2c1", "a2c9", "a7", "b", "nosubject"}, got)
}

func TestDuplicate_CarriesBothLocations(t *testing.T) {
	first, second := at("main.lbf", 3, 1), at("main.lbf", 9, 1)

	d := Duplicate(ValidationError, "backend", "api", first, second)

	require.NotNil(t, d.Subject)
	assert.Equal(t, second, *d.Subject)
	assert.Equal(t, []hcl.Range{first}, RelatedOf(d))
	assert.Equal(t, ValidationError, KindOf(d))
	assert.Contains(t, d.Detail, `Backend "api" is already declared at main.lbf:3,1`)
}

func TestSuggest(t *testing.T) {
	algos := []string{"roundrobin", "static-rr", "leastconn"}

	assert.Equal(t, "roundrobin", Suggest("roundrobbin", algos))
	assert.Equal(t, "", Suggest("fastest", algos))
	assert.Equal(t, ` Did you mean "leastconn"?`, DidYouMean("lestconn", algos))
}

func TestTag_KeepsExistingKinds(t *testing.T) {
	diags := hcl.Diagnostics{
		{Severity: hcl.DiagError, Summary: "from hclsyntax"},
		New(LoopError, at("x", 1, 1), "loop", ""),
	}

	Tag(ResolutionError, diags)

	assert.Equal(t, ResolutionError, KindOf(diags[0]))
	assert.Equal(t, LoopError, KindOf(diags[1]))
	assert.Equal(t, 1, Count(diags, LoopError))
}
