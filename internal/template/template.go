// Package template collects template declarations and applies them at their
// use sites, merging template properties under the literal ones.
package template

import (
	"context"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
)

// Kind names what a template can be applied to.
type Kind string

const (
	KindServer      Kind = "server"
	KindHealthCheck Kind = "health_check"
	KindACL         Kind = "acl"
	KindBackend     Kind = "backend"
)

var kinds = []string{string(KindACL), string(KindBackend), string(KindHealthCheck), string(KindServer)}

// Template is a named, immutable property list.
type Template struct {
	Name  string
	Kind  Kind
	Body  []*ast.Node
	Range hcl.Range
}

// Table maps template names to their declarations.
type Table map[string]*Template

// Names returns the declared template names, sorted.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collect gathers the top-level template declarations of tree.
func Collect(ctx context.Context, tree *ast.Node) (Table, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	table := make(Table)
	for _, n := range tree.Children {
		if n.Kind != ast.KindTemplate {
			continue
		}
		kind := Kind(n.Name)
		switch kind {
		case KindServer, KindHealthCheck, KindACL, KindBackend:
		default:
			diags = append(diags, diag.Errorf(diag.TemplateError, n.Range, "Unknown template kind",
				"Templates can be declared for server, health_check, acl and backend; %q is not one of them.%s", n.Name, diag.DidYouMean(n.Name, kinds)))
			continue
		}
		if n.Label == nil || n.Label.Kind != ast.KindString || n.Label.Text == "" {
			diags = append(diags, diag.Errorf(diag.TemplateError, n.Range, "Invalid template name", "A template needs a non-empty name."))
			continue
		}
		name := n.Label.Text
		if prev, ok := table[name]; ok {
			diags = append(diags, diag.Duplicate(diag.TemplateError, "template", name, prev.Range, n.Range))
			continue
		}
		table[name] = &Template{Name: name, Kind: kind, Body: n.Children, Range: n.Range}
	}
	ctxlog.FromContext(ctx).Debug("Templates collected.", "file", tree.Range.Filename, "count", len(table))
	return table, diag.Sort(diags)
}
