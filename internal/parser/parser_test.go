package parser

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Node {
	t.Helper()
	tree, diags := Parse("test.lbf", []byte(src))
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", diags)
	require.NotNil(t, tree)
	return tree
}

func TestParse_SectionsAndProperties(t *testing.T) {
	tree := mustParse(t, `
# comment
backend "api" {
    balance: roundrobin
    timeout { connect = 5s }
    server "web1" { address: "10.0.0.1"; port: 8080; check: true }
}
`)
	require.Len(t, tree.Children, 1)
	be := tree.Children[0]
	assert.Equal(t, ast.KindSection, be.Kind)
	assert.Equal(t, "backend", be.Name)
	assert.Equal(t, "api", be.LabelText())
	require.Len(t, be.Children, 3)

	balance := be.Children[0]
	assert.Equal(t, ast.KindProperty, balance.Kind)
	assert.Equal(t, ast.KindIdent, balance.Value.Kind)
	assert.Equal(t, "roundrobin", balance.Value.Text)

	timeout := be.Children[1]
	assert.Equal(t, ast.KindBlock, timeout.Kind)
	assert.Equal(t, ast.KindDuration, timeout.Children[0].Value.Kind)
	assert.Equal(t, "5s", timeout.Children[0].Value.Text)

	server := be.Children[2]
	assert.Equal(t, ast.KindBlock, server.Kind, "server nested in a section is a plain block")
	require.Len(t, server.Children, 3)
	assert.Equal(t, ast.KindString, server.Children[0].Value.Kind)
	assert.Equal(t, ast.KindNumber, server.Children[1].Value.Kind)
	assert.Equal(t, ast.KindBool, server.Children[2].Value.Kind)
}

func TestParse_Positions(t *testing.T) {
	tree := mustParse(t, "let a = 1\nbackend \"api\" {\n  balance: ${x}\n}\n")

	be := tree.Children[1]
	assert.Equal(t, hcl.Pos{Line: 2, Column: 1, Byte: 10}, be.Range.Start)

	expr := be.Children[0].Value
	require.Equal(t, ast.KindExpr, expr.Kind)
	assert.Equal(t, "x", expr.Text)
	assert.Equal(t, 3, expr.Range.Start.Line)
	assert.Equal(t, 14, expr.Range.Start.Column, "expression range starts after ${")
	assert.Equal(t, "test.lbf", expr.Range.Filename)
}

func TestParse_StringInterpolation(t *testing.T) {
	tree := mustParse(t, `let name = "web${i}-$${raw}\t"`)

	v := tree.Children[0].Value
	require.Equal(t, ast.KindInterp, v.Kind)
	require.Len(t, v.Children, 3)
	assert.Equal(t, "web", v.Children[0].Text)
	assert.Equal(t, ast.KindExpr, v.Children[1].Kind)
	assert.Equal(t, "i", v.Children[1].Text)
	assert.Equal(t, "-${raw}\t", v.Children[2].Text)
}

func TestParse_PlainStringWithEscapes(t *testing.T) {
	tree := mustParse(t, `let s = "a \"b\" $${c}"`)
	v := tree.Children[0].Value
	assert.Equal(t, ast.KindString, v.Kind)
	assert.Equal(t, `a "b" ${c}`, v.Text)
}

func TestParse_LoopsTemplatesAndUse(t *testing.T) {
	tree := mustParse(t, `
template server "base" { check: true }
for i in [1..3] {
    backend "b${i}" {
        for s in ["a", "b"] {
            server "${s}" { use "base", "other" }
        }
    }
}
`)
	require.Len(t, tree.Children, 2)

	tpl := tree.Children[0]
	assert.Equal(t, ast.KindTemplate, tpl.Kind)
	assert.Equal(t, "server", tpl.Name)
	assert.Equal(t, "base", tpl.LabelText())

	loop := tree.Children[1]
	require.Equal(t, ast.KindFor, loop.Kind)
	assert.Equal(t, "i", loop.Name)
	require.Equal(t, ast.KindRange, loop.Value.Kind)
	assert.Equal(t, "1", loop.Value.Children[0].Text)
	assert.Equal(t, "3", loop.Value.Children[1].Text)

	be := loop.Children[0]
	assert.Equal(t, ast.KindSection, be.Kind, "sections inside top-level loops stay sections")

	inner := be.Children[0]
	require.Equal(t, ast.KindFor, inner.Kind)
	assert.Equal(t, ast.KindList, inner.Value.Kind)
	assert.Len(t, inner.Value.Children, 2)

	server := inner.Children[0]
	assert.Equal(t, ast.KindBlock, server.Kind)
	require.Len(t, server.Children, 2)
	assert.Equal(t, ast.KindUse, server.Children[0].Kind)
	assert.Equal(t, "base", server.Children[0].Text)
	assert.Equal(t, "other", server.Children[1].Text)
}

func TestParse_WordsAndNumbers(t *testing.T) {
	tree := mustParse(t, `x { a: 100k; b: -3; c: TLSv1.2; d: 10.0.0.1; e: 1.5; f: static-rr; g: [] }`)

	kids := tree.Children[0].Children
	want := []struct {
		kind ast.Kind
		text string
	}{
		{ast.KindIdent, "100k"},
		{ast.KindNumber, "-3"},
		{ast.KindIdent, "TLSv1.2"},
		{ast.KindIdent, "10.0.0.1"},
		{ast.KindNumber, "1.5"},
		{ast.KindIdent, "static-rr"},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, kids[i].Value.Kind, kids[i].Name)
		assert.Equal(t, w.text, kids[i].Value.Text, kids[i].Name)
	}
	assert.Equal(t, ast.KindList, kids[6].Value.Kind)
	assert.Empty(t, kids[6].Value.Children)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		summary string
		line    int
	}{
		{"unclosed block", "backend \"a\" {\n", "Unclosed block", 2},
		{"unterminated string", "let a = \"abc\n", "Unterminated string", 1},
		{"missing value", "x { a: }", "Missing value", 1},
		{"bad character", "x { a: 1 }\n@", "Invalid character", 2},
		{"bad loop keyword", "for i of [1..2] {}", "Invalid loop", 1},
		{"unterminated interpolation", "let a = ${b", "Unterminated interpolation", 1},
		{"empty interpolation", "let a = \"${ }\"", "Empty interpolation", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree, diags := Parse("bad.lbf", []byte(tc.src))
			assert.Nil(t, tree)
			require.Len(t, diags, 1)
			assert.Equal(t, tc.summary, diags[0].Summary)
			assert.Equal(t, diag.SyntaxError, diag.KindOf(diags[0]))
			require.NotNil(t, diags[0].Subject)
			assert.Equal(t, tc.line, diags[0].Subject.Start.Line)
		})
	}
}
