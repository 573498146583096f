package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
)

// siteKind returns the template kind accepted by a block or section.
func siteKind(n *ast.Node) (Kind, bool) {
	switch {
	case n.Kind == ast.KindSection && (n.Name == "backend" || n.Name == "listen"):
		return KindBackend, true
	case n.Kind == ast.KindBlock && (n.Name == "server" || n.Name == "default_server"):
		return KindServer, true
	case n.Kind == ast.KindBlock && n.Name == "health_check":
		return KindHealthCheck, true
	case n.Kind == ast.KindBlock && n.Name == "acl":
		return KindACL, true
	default:
		return "", false
	}
}

// Expand applies templates from table at every use site of tree and drops
// the template declarations.
func Expand(ctx context.Context, tree *ast.Node, table Table) (*ast.Node, hcl.Diagnostics) {
	e := &expander{
		table:  table,
		done:   make(map[string][]*ast.Node),
		failed: make(map[string]bool),
	}
	children := make([]*ast.Node, 0, len(tree.Children))
	for _, n := range tree.Children {
		if n.Kind == ast.KindTemplate {
			continue
		}
		children = append(children, e.node(n, nil))
	}
	ctxlog.FromContext(ctx).Debug("Templates expanded.", "file", tree.Range.Filename, "expanded", len(e.done), "diagnostics", len(e.diags))
	return tree.WithChildren(children), diag.Sort(e.diags)
}

type expander struct {
	table Table
	// done memoizes fully expanded template bodies.
	done   map[string][]*ast.Node
	failed map[string]bool
	diags  hcl.Diagnostics
}

func (e *expander) errorf(rng hcl.Range, summary, format string, args ...any) {
	e.diags = append(e.diags, diag.Errorf(diag.TemplateError, rng, summary, format, args...))
}

func (e *expander) node(n *ast.Node, stack []string) *ast.Node {
	switch n.Kind {
	case ast.KindSection, ast.KindBlock:
		kind, ok := siteKind(n)
		return n.WithChildren(e.body(n.Children, kind, ok, n, stack))
	case ast.KindFor:
		return n.WithChildren(e.body(n.Children, "", false, n, stack))
	case ast.KindProperty, ast.KindLet:
		return n
	default:
		panic(fmt.Sprintf("template: unexpected %s node", n.Kind))
	}
}

// body expands the items of one block. owner is nil for template bodies.
func (e *expander) body(items []*ast.Node, kind Kind, accepts bool, owner *ast.Node, stack []string) []*ast.Node {
	var base []*ast.Node
	applied := false
	own := make([]*ast.Node, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case ast.KindUse:
			if !accepts {
				e.errorf(it.Range, "Template not allowed here",
					"Templates can be applied to server, default_server, health_check and acl blocks and to backend and listen sections, not to %s.", describeOwner(owner))
				continue
			}
			props, ok := e.apply(it, kind, stack)
			if ok {
				base = Merge(base, props)
				applied = true
			}
		case ast.KindTemplate:
			e.errorf(it.Range, "Nested template declaration", "Templates must be declared at the top level of a file.")
		default:
			own = append(own, e.node(it, stack))
		}
	}
	if !applied {
		return own
	}
	return Merge(base, own)
}

// apply returns the expanded body of the template named by use.
func (e *expander) apply(use *ast.Node, want Kind, stack []string) ([]*ast.Node, bool) {
	t, ok := e.table[use.Text]
	if !ok {
		e.errorf(use.Range, "Unknown template", "No template named %q is declared.%s", use.Text, diag.DidYouMean(use.Text, e.table.Names()))
		return nil, false
	}
	if t.Kind != want {
		e.diags = append(e.diags, diag.New(diag.TemplateError, use.Range, "Template kind mismatch",
			fmt.Sprintf("Template %q is a %s template and cannot be applied where a %s template is expected.", t.Name, t.Kind, want),
			t.Range))
		return nil, false
	}
	for _, name := range stack {
		if name == t.Name {
			chain := append(append([]string{}, stack...), t.Name)
			e.diags = append(e.diags, diag.New(diag.TemplateError, use.Range, "Template cycle",
				fmt.Sprintf("Templates use each other in a cycle: %s.", strings.Join(chain, " -> ")),
				t.Range))
			return nil, false
		}
	}
	if body, ok := e.done[t.Name]; ok {
		return body, true
	}
	if e.failed[t.Name] {
		return nil, false
	}

	before := len(e.diags)
	inner := append(append([]string{}, stack...), t.Name)
	body := e.body(t.Body, t.Kind, true, nil, inner)
	if len(e.diags) > before {
		e.failed[t.Name] = true
		return nil, false
	}
	e.done[t.Name] = body
	return body, true
}

func describeOwner(n *ast.Node) string {
	if n == nil {
		return "this template"
	}
	if n.Kind == ast.KindFor {
		return "a loop body"
	}
	return n.DisplayName()
}
