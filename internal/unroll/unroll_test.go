package unroll

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/parser"
	"github.com/specialistvlad/lbforge/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unrollSrc(t *testing.T, src string, opts Options) (*ast.Node, hcl.Diagnostics) {
	t.Helper()
	ctx := context.Background()
	tree, diags := parser.Parse("main.lbf", []byte(src))
	require.False(t, diags.HasErrors(), "parse: %v", diags)
	tree, diags = resolve.Resolve(ctx, tree, nil, opts.Resolve)
	require.False(t, diags.HasErrors(), "resolve: %v", diags)
	return Unroll(ctx, tree, opts)
}

func labels(items []*ast.Node) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.LabelText())
	}
	return out
}

func TestUnroll_RangeProducesOrderedCopies(t *testing.T) {
	tree, diags := unrollSrc(t, `
backend "pool" {
    for i in [1..3] {
        server "web${i}" { port: ${8000 + i} }
    }
}
`, Options{})
	require.False(t, diags.HasErrors(), "%v", diags)

	servers := tree.Children[0].Children
	assert.Equal(t, []string{"web1", "web2", "web3"}, labels(servers))
	for i, s := range servers {
		require.Len(t, s.Children, 1)
		assert.Equal(t, []string{"8001", "8002", "8003"}[i], s.Children[0].Value.Text)
	}
}

func TestUnroll_ListAndNestedLoops(t *testing.T) {
	tree, diags := unrollSrc(t, `
let zones = ["a", "b"]
for z in ${zones} {
    backend "be-${z}" {
        for n in [1..2] {
            let host = "${z}${n}.internal"
            server "s${n}" { address: ${host} }
        }
    }
}
`, Options{})
	require.False(t, diags.HasErrors(), "%v", diags)

	require.Equal(t, []string{"be-a", "be-b"}, labels(tree.Children))
	assert.Equal(t, ast.KindSection, tree.Children[0].Kind)

	b := tree.Children[1]
	require.Equal(t, []string{"s1", "s2"}, labels(b.Children))
	assert.Equal(t, "b2.internal", b.Children[1].Children[0].Value.Text)
}

func TestUnroll_LoopVariableDoesNotLeak(t *testing.T) {
	tree, diags := unrollSrc(t, `
let i = 100
for i in [1..2] { x "${i}" {} }
y { v: ${i} }
`, Options{})
	require.False(t, diags.HasErrors(), "%v", diags)

	require.Len(t, tree.Children, 3)
	assert.Equal(t, "100", tree.Children[2].Children[0].Value.Text)
}

func TestUnroll_SourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		summary string
	}{
		{"reversed range", `for i in [3..1] { x {} }`, "Invalid loop range"},
		{"fractional bound", `for i in [1..2.5] { x {} }`, "Invalid loop range"},
		{"empty list", `for i in [] { x {} }`, "Empty loop list"},
		{"string source", `for i in "abc" { x {} }`, "Invalid loop source"},
		{"nested list element", `for i in [[1], 2] { x {} }`, "Invalid loop element"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := unrollSrc(t, tc.src, Options{})
			require.Len(t, diags, 1)
			assert.Equal(t, tc.summary, diags[0].Summary)
			assert.Equal(t, diag.LoopError, diag.KindOf(diags[0]))
		})
	}
}

func TestUnroll_SiblingsContinueAfterLoopError(t *testing.T) {
	tree, diags := unrollSrc(t, `
for i in [] { x {} }
for j in [1..2] { y "${j}" {} }
`, Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, []string{"1", "2"}, labels(tree.Children))
}

func TestUnroll_IterationCap(t *testing.T) {
	t.Run("single loop", func(t *testing.T) {
		_, diags := unrollSrc(t, `for i in [1..6] { x {} }`, Options{MaxIterations: 5})
		require.Len(t, diags, 1)
		assert.Equal(t, "Too many loop iterations", diags[0].Summary)
		assert.Equal(t, diag.LoopError, diag.KindOf(diags[0]))
	})

	t.Run("cumulative nested loops", func(t *testing.T) {
		_, diags := unrollSrc(t, `
for i in [1..3] {
    for j in [1..3] { x {} }
}
`, Options{MaxIterations: 5})
		require.Len(t, diags, 1, "unrolling stops at the first cap violation")
		assert.Equal(t, "Too many loop iterations", diags[0].Summary)
	})

	t.Run("ranges at the int64 limits", func(t *testing.T) {
		for _, src := range []string{
			`for i in [0..9223372036854775807] { x {} }`,
			`for i in [-5..9223372036854775807] { x {} }`,
			`for i in [-9223372036854775808..9223372036854775807] { x {} }`,
		} {
			_, diags := unrollSrc(t, src, Options{})
			require.Len(t, diags, 1, src)
			assert.Equal(t, "Too many loop iterations", diags[0].Summary, src)
			assert.Equal(t, diag.LoopError, diag.KindOf(diags[0]), src)
		}
	})

	t.Run("range ending at MaxInt64 within the cap", func(t *testing.T) {
		tree, diags := unrollSrc(t, `for i in [9223372036854775806..9223372036854775807] { x {} }`, Options{})
		require.False(t, diags.HasErrors(), "%v", diags)
		assert.Len(t, tree.Children, 2)
	})

	t.Run("default cap", func(t *testing.T) {
		_, diags := unrollSrc(t, `for i in [1..10001] { x {} }`, Options{})
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Detail, "10000")
	})
}
