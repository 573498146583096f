package resolve

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveSrc(t *testing.T, src string, opts Options) (*ast.Node, hcl.Diagnostics) {
	t.Helper()
	tree, diags := parser.Parse("main.lbf", []byte(src))
	require.False(t, diags.HasErrors(), "parse: %v", diags)
	return Resolve(context.Background(), tree, nil, opts)
}

func mustResolve(t *testing.T, src string, opts Options) *ast.Node {
	t.Helper()
	out, diags := resolveSrc(t, src, opts)
	require.False(t, diags.HasErrors(), "resolve: %v", diags)
	return out
}

// prop returns the value of the named property in the first block.
func prop(t *testing.T, tree *ast.Node, name string) *ast.Node {
	t.Helper()
	for _, it := range tree.Children {
		if it.Kind != ast.KindBlock && it.Kind != ast.KindSection {
			continue
		}
		for _, c := range it.Children {
			if c.Kind == ast.KindProperty && c.Name == name {
				return c.Value
			}
		}
	}
	t.Fatalf("property %q not found", name)
	return nil
}

func TestResolve_SubstitutesAndPreservesKinds(t *testing.T) {
	tree := mustResolve(t, `
let t = 5s
let algo = leastconn
let port = 8000
x {
    timeout: ${t}
    balance: ${algo}
    port: ${port + 80}
    name: "srv-${t}-${port}"
}
`, Options{})

	require.Len(t, tree.Children, 1, "let statements are consumed")

	timeout := prop(t, tree, "timeout")
	assert.Equal(t, ast.KindDuration, timeout.Kind)
	assert.Equal(t, "5s", timeout.Text)
	assert.Equal(t, 6, timeout.Range.Start.Line, "substituted value is positioned at the reference")

	assert.Equal(t, ast.KindIdent, prop(t, tree, "balance").Kind)

	port := prop(t, tree, "port")
	assert.Equal(t, ast.KindNumber, port.Kind)
	assert.Equal(t, "8080", port.Text)

	name := prop(t, tree, "name")
	assert.Equal(t, ast.KindString, name.Kind)
	assert.Equal(t, "srv-5s-8000", name.Text)
}

func TestResolve_UndefinedVariableIsReportedOnce(t *testing.T) {
	_, diags := resolveSrc(t, "x {\n    a: ${nope}\n}\n", Options{})

	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, diag.ResolutionError, diag.KindOf(d))
	assert.Equal(t, "Undefined variable", d.Summary)
	require.NotNil(t, d.Subject)
	assert.Equal(t, 2, d.Subject.Start.Line)
	assert.Equal(t, 10, d.Subject.Start.Column)
}

func TestResolve_FailedBindingsDoNotCascade(t *testing.T) {
	_, diags := resolveSrc(t, `
let a = ${missing}
x {
    b: ${a}
    c: "pre-${a}"
    d: ${a + 1}
}
`, Options{})

	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, `"missing"`)
}

func TestResolve_SuggestsCloseNames(t *testing.T) {
	_, diags := resolveSrc(t, "let backend_port = 80\nx { p: ${backend_prt} }", Options{})
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, `Did you mean "backend_port"?`)
}

func TestResolve_NonWholeArithmetic(t *testing.T) {
	_, diags := resolveSrc(t, "let a = 10\nx { p: ${a / 4} }", Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Invalid expression result", diags[0].Summary)
}

func TestResolve_DivisionByZero(t *testing.T) {
	_, diags := resolveSrc(t, "let zero = 0\nx { p: ${10 / zero} }", Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.ResolutionError, diag.KindOf(diags[0]))
	assert.Equal(t, "Invalid expression result", diags[0].Summary)
	assert.Equal(t, "Division by zero: the divisor evaluated to 0.", diags[0].Detail)
}

func TestResolve_NonNumericOperand(t *testing.T) {
	_, diags := resolveSrc(t, "let a = 5s\nx { p: ${a + 1} }", Options{})
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.ResolutionError, diag.KindOf(diags[0]))
}

func TestResolve_EnvDefault(t *testing.T) {
	const src = `x { port: ${env.PORT:-8080} }`

	tests := []struct {
		name     string
		opts     Options
		wantKind ast.Kind
		want     string
	}{
		{"absent uses default", Options{}, ast.KindNumber, "8080"},
		{"present uses value", Options{Env: map[string]string{"PORT": "9090"}}, ast.KindString, "9090"},
		{"empty is a value", Options{Env: map[string]string{"PORT": ""}}, ast.KindString, ""},
		{"empty as unset", Options{Env: map[string]string{"PORT": ""}, EmptyEnvAsUnset: true}, ast.KindNumber, "8080"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := prop(t, mustResolve(t, src, tc.opts), "port")
			assert.Equal(t, tc.wantKind, v.Kind)
			assert.Equal(t, tc.want, v.Text)
		})
	}
}

func TestResolve_EnvDefaultLiterals(t *testing.T) {
	tree := mustResolve(t, `x { a: ${env.A:-"quoted value"}; b: ${env.B:-30s}; c: ${env.C:-true}; d: "host-${env.D:-local}" }`, Options{})

	assert.Equal(t, "quoted value", prop(t, tree, "a").Text)
	assert.Equal(t, ast.KindDuration, prop(t, tree, "b").Kind)
	assert.Equal(t, ast.KindBool, prop(t, tree, "c").Kind)
	assert.Equal(t, "host-local", prop(t, tree, "d").Text)
}

func TestResolve_EnvWithoutDefault(t *testing.T) {
	tree := mustResolve(t, `x { user: ${env.USER} }`, Options{Env: map[string]string{"USER": "haproxy"}})
	assert.Equal(t, "haproxy", prop(t, tree, "user").Text)

	_, diags := resolveSrc(t, `x { user: ${env.USER} }`, Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Undefined environment variable", diags[0].Summary)
}

func TestResolve_EnvIsReserved(t *testing.T) {
	_, diags := resolveSrc(t, `let env = 1`, Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Reserved variable name", diags[0].Summary)
}

func TestResolve_ListCannotBeSpliced(t *testing.T) {
	_, diags := resolveSrc(t, `let l = ["a", "b"]
x { s: "x-${l}" }`, Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Invalid interpolation", diags[0].Summary)
}

func TestResolve_ScopesAndShadowing(t *testing.T) {
	tree := mustResolve(t, `
let w = 1
outer {
    let w = 2
    inner { weight: ${w} }
}
x { weight: ${w} }
`, Options{})

	outer := tree.Children[0]
	inner := outer.Children[0]
	assert.Equal(t, "2", inner.Children[0].Value.Text)
	assert.Equal(t, "1", tree.Children[1].Children[0].Value.Text)

	_, diags := resolveSrc(t, "let w = 1\nlet w = 2", Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Duplicate variable", diags[0].Summary)
}

func TestResolve_LoopVariablesArePartiallyEvaluated(t *testing.T) {
	tree := mustResolve(t, `
let base = 10
for i in [1..2] {
    let host = "web${i}"
    x {
        a: ${base + i}
        n: "w${i}-${base}"
        h: ${host}
    }
}
`, Options{})

	loop := tree.Children[0]
	require.Equal(t, ast.KindFor, loop.Kind)
	require.Len(t, loop.Children, 2, "the pending let is kept for the unroller")
	assert.Equal(t, ast.KindLet, loop.Children[0].Kind)

	block := loop.Children[1]
	a := block.Children[0].Value
	require.Equal(t, ast.KindExpr, a.Kind)
	assert.Equal(t, "10 + i", a.Text)

	n := block.Children[1].Value
	require.Equal(t, ast.KindInterp, n.Kind)
	require.Len(t, n.Children, 3)
	assert.Equal(t, "w", n.Children[0].Text)
	assert.Equal(t, "i", n.Children[1].Text)
	assert.Equal(t, "-10", n.Children[2].Text)

	h := block.Children[2].Value
	assert.Equal(t, ast.KindExpr, h.Kind)
	assert.Equal(t, "host", h.Text)
}

func TestItems_ResolvesPendingBodyUnderBoundScope(t *testing.T) {
	tree := mustResolve(t, `
for i in [1..2] {
    let host = "web${i}"
    x { h: ${host}; p: ${i * 100} }
}
`, Options{})
	loop := tree.Children[0]

	r := New(Options{})
	s := NewScope(nil)
	s.Bind("i", ast.NewNumber("2", loop.Range), loop.Range)

	body, diags := r.Items(ast.CloneAll(loop.Children), s)
	require.False(t, diags.HasErrors(), "%v", diags)
	require.Len(t, body, 1)
	assert.Equal(t, "web2", body[0].Children[0].Value.Text)
	assert.Equal(t, "200", body[0].Children[1].Value.Text)

	b, ok := s.Lookup("host")
	require.True(t, ok)
	assert.Equal(t, "web2", b.Value.Text)
}
