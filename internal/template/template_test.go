package template

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/parser"
	"github.com/specialistvlad/lbforge/internal/resolve"
	"github.com/specialistvlad/lbforge/internal/unroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expandSrc(t *testing.T, src string) (*ast.Node, hcl.Diagnostics) {
	t.Helper()
	ctx := context.Background()
	tree, diags := parser.Parse("main.lbf", []byte(src))
	require.False(t, diags.HasErrors(), "parse: %v", diags)
	tree, diags = resolve.Resolve(ctx, tree, nil, resolve.Options{})
	require.False(t, diags.HasErrors(), "resolve: %v", diags)
	tree, diags = unroll.Unroll(ctx, tree, unroll.Options{})
	require.False(t, diags.HasErrors(), "unroll: %v", diags)

	table, diags := Collect(ctx, tree)
	if diags.HasErrors() {
		return nil, diags
	}
	return Expand(ctx, tree, table)
}

func mustExpand(t *testing.T, src string) *ast.Node {
	t.Helper()
	tree, diags := expandSrc(t, src)
	require.False(t, diags.HasErrors(), "%v", diags)
	return tree
}

// flat renders a body as name=value pairs for compact assertions.
func flat(items []*ast.Node) []string {
	var out []string
	for _, it := range items {
		switch it.Kind {
		case ast.KindProperty:
			out = append(out, it.Name+"="+it.Value.Text)
		case ast.KindBlock:
			out = append(out, it.DisplayName()+"{"+strings.Join(flat(it.Children), " ")+"}")
		}
	}
	return out
}

func TestExpand_LiteralOverridesTemplate(t *testing.T) {
	tree := mustExpand(t, `
template server "base" {
    check: true
    weight: 10
}
backend "api" {
    server "a" {
        use "base"
        check: false
    }
}
`)
	require.Len(t, tree.Children, 1, "template declarations are removed")
	server := tree.Children[0].Children[0]
	assert.Equal(t, []string{"check=false", "weight=10"}, flat(server.Children))
}

func TestExpand_LastTemplateWinsAndLiteralsBeatAll(t *testing.T) {
	tree := mustExpand(t, `
template server "one" { weight: 1; maxconn: 100 }
template server "two" { weight: 2; backup: true }
backend "b" {
    server "s" {
        use "one", "two"
        maxconn: 5
    }
}
`)
	server := tree.Children[0].Children[0]
	assert.Equal(t, []string{"weight=2", "maxconn=5", "backup=true"}, flat(server.Children))
}

func TestExpand_NestedBlocksMergeRecursively(t *testing.T) {
	tree := mustExpand(t, `
template server "tls" {
    ssl { verify: required; ca_file: "/etc/ca.pem" }
    health_check { interval: 2s; rise: 2 }
}
template health_check "fast" { interval: 1s; fall: 2 }
backend "b" {
    server "s" {
        use "tls"
        ssl { verify: none }
        health_check { use "fast"; rise: 3 }
    }
}
`)
	server := tree.Children[0].Children[0]
	want := []string{
		"ssl{verify=none ca_file=/etc/ca.pem}",
		"health_check{interval=1s rise=3 fall=2}",
	}
	assert.Equal(t, want, flat(server.Children))
}

func TestExpand_RuleBlocksAppend(t *testing.T) {
	tree := mustExpand(t, `
template backend "common" {
    balance: roundrobin
    http_request { action: set-header; args: ["X-From", "tpl"] }
    option_list: [a]
}
backend "b" {
    use "common"
    http_request { action: deny }
    balance: leastconn
}
`)
	be := tree.Children[0]
	require.Len(t, be.Children, 4)
	assert.Equal(t, "leastconn", be.Children[0].Value.Text)
	assert.Equal(t, "http_request", be.Children[1].Name)
	assert.Equal(t, "set-header", be.Children[1].Children[0].Value.Text, "template rules come first")
	assert.Equal(t, "option_list", be.Children[2].Name)
	assert.Equal(t, "deny", be.Children[3].Children[0].Value.Text)
}

func TestExpand_TemplatesUseTemplates(t *testing.T) {
	tree := mustExpand(t, `
template server "base" { check: true; weight: 1 }
template server "heavy" { use "base"; weight: 50 }
backend "b" { server "s" { use "heavy" } }
`)
	server := tree.Children[0].Children[0]
	assert.Equal(t, []string{"check=true", "weight=50"}, flat(server.Children))
}

func TestExpand_LoopsAndTemplates(t *testing.T) {
	tree := mustExpand(t, `
template server "base" { check: true }
backend "b" {
    for i in [1..2] {
        server "web${i}" { use "base"; port: ${8000 + i} }
    }
}
`)
	servers := tree.Children[0].Children
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"check=true", "port=8002"}, flat(servers[1].Children))
}

func TestExpand_CycleTerminatesWithOneError(t *testing.T) {
	src := `
template server "A" { use "B"; weight: 1 }
template server "B" { use "A"; weight: 2 }
backend "b" {
    server "s1" { use "A" }
    server "s2" { use "B" }
}
`
	type outcome struct {
		diags hcl.Diagnostics
	}
	done := make(chan outcome, 1)
	go func() {
		_, diags := expandSrc(t, src)
		done <- outcome{diags}
	}()

	select {
	case res := <-done:
		require.Len(t, res.diags, 1)
		d := res.diags[0]
		assert.Equal(t, diag.TemplateError, diag.KindOf(d))
		assert.Equal(t, "Template cycle", d.Summary)
		assert.Contains(t, d.Detail, "A -> B -> A")
	case <-time.After(5 * time.Second):
		t.Fatal("template expansion did not terminate")
	}
}

func TestExpand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		summary string
		detail  string
	}{
		{
			"unknown template with suggestion",
			`template server "base" {}
backend "b" { server "s" { use "bsae" } }`,
			"Unknown template", `Did you mean "base"?`,
		},
		{
			"kind mismatch",
			`template health_check "hc" {}
backend "b" { server "s" { use "hc" } }`,
			"Template kind mismatch", "health_check template",
		},
		{
			"use on a frontend",
			`template backend "t" {}
frontend "f" { use "t" }`,
			"Template not allowed here", `frontend "f"`,
		},
		{
			"nested declaration",
			`backend "b" { template server "x" {} }`,
			"Nested template declaration", "top level",
		},
		{
			"duplicate declaration",
			`template server "x" {}
template server "x" {}`,
			"Duplicate template", "already declared at main.lbf:1",
		},
		{
			"unknown kind",
			`template sever "x" {}`,
			"Unknown template kind", `Did you mean "server"?`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := expandSrc(t, tc.src)
			require.Len(t, diags, 1, "%v", diags)
			assert.Equal(t, tc.summary, diags[0].Summary)
			assert.Contains(t, diags[0].Detail, tc.detail)
			assert.Equal(t, diag.TemplateError, diag.KindOf(diags[0]))
		})
	}
}

func TestMerge_IsPure(t *testing.T) {
	var rng hcl.Range
	base := []*ast.Node{
		ast.NewProperty("weight", ast.NewNumber("1", rng), rng),
		ast.NewBlock("ssl", nil, []*ast.Node{ast.NewProperty("verify", ast.NewIdent("required", rng), rng)}, rng),
	}
	overlay := []*ast.Node{
		ast.NewBlock("ssl", nil, []*ast.Node{ast.NewProperty("sni", ast.NewString("x", rng), rng)}, rng),
		ast.NewProperty("weight", ast.NewNumber("2", rng), rng),
	}
	baseCopy, overlayCopy := ast.CloneAll(base), ast.CloneAll(overlay)

	got := Merge(base, overlay)

	assert.Empty(t, cmp.Diff(baseCopy, base), "base modified")
	assert.Empty(t, cmp.Diff(overlayCopy, overlay), "overlay modified")
	assert.Equal(t, []string{"weight=2", "ssl{verify=required sni=x}"}, flat(got))
}

func TestMerge_KeepsLiteralDuplicates(t *testing.T) {
	var rng hcl.Range
	base := []*ast.Node{ast.NewProperty("weight", ast.NewNumber("1", rng), rng)}
	overlay := []*ast.Node{
		ast.NewProperty("weight", ast.NewNumber("2", rng), rng),
		ast.NewProperty("weight", ast.NewNumber("3", rng), rng),
	}
	assert.Equal(t, []string{"weight=2", "weight=3"}, flat(Merge(base, overlay)))
}
