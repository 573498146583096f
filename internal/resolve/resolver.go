// Package resolve substitutes variables and environment lookups into a
// syntax tree.
//
// Loop variables are not known until the loop unroller runs, so expressions
// that depend on them are kept in the tree with every other reference already
// substituted. The unroller then calls Items once per iteration to finish the
// job under a scope where the loop variable is bound.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/zclconf/go-cty/cty"
)

// EnvRoot is the reserved name environment lookups are made through.
const EnvRoot = "env"

var envDefault = regexp.MustCompile(`^\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*:-(.*)$`)

// Options configures environment lookups.
type Options struct {
	// Env is the environment snapshot. The live process environment is
	// never consulted.
	Env map[string]string
	// EmptyEnvAsUnset makes ${env.NAME:-default} fall back to the default
	// when NAME is set to the empty string.
	EmptyEnvAsUnset bool
}

// Resolver evaluates expressions against scopes and an environment snapshot.
type Resolver struct {
	opts Options
	env  cty.Value
}

// New creates a Resolver for one compilation.
func New(opts Options) *Resolver {
	r := &Resolver{opts: opts}
	vals := make(map[string]cty.Value, len(opts.Env))
	for name := range opts.Env {
		if v, ok := r.lookupEnv(name); ok {
			vals[name] = cty.StringVal(v)
		}
	}
	r.env = cty.ObjectVal(vals)
	return r
}

// Resolve substitutes every resolvable reference in tree. root may hold
// predefined bindings and may be nil.
func Resolve(ctx context.Context, tree *ast.Node, root *Scope, opts Options) (*ast.Node, hcl.Diagnostics) {
	if root == nil {
		root = NewScope(nil)
	}
	w := &walker{r: New(opts)}
	out := tree.WithChildren(w.items(tree.Children, root.Child()))
	ctxlog.FromContext(ctx).Debug("Variables resolved.", "file", tree.Range.Filename, "diagnostics", len(w.diags))
	return out, diag.Sort(w.diags)
}

// Subtree resolves a single node under s.
func (r *Resolver) Subtree(n *ast.Node, s *Scope) (*ast.Node, hcl.Diagnostics) {
	w := &walker{r: r}
	out := w.node(n, s)
	return out, w.diags
}

// Items resolves a body in place of s: let statements bind directly into s.
func (r *Resolver) Items(items []*ast.Node, s *Scope) ([]*ast.Node, hcl.Diagnostics) {
	w := &walker{r: r}
	out := w.items(items, s)
	return out, w.diags
}

func (r *Resolver) lookupEnv(name string) (string, bool) {
	v, ok := r.opts.Env[name]
	if ok && v == "" && r.opts.EmptyEnvAsUnset {
		return "", false
	}
	return v, ok
}

type state int

// Ordered from best to worst so that worse() can combine them.
const (
	resolved state = iota
	deferred
	failed
)

func worse(a, b state) state {
	if a > b {
		return a
	}
	return b
}

type walker struct {
	r     *Resolver
	diags hcl.Diagnostics
}

func (w *walker) errorf(rng hcl.Range, summary, format string, args ...any) {
	w.diags = append(w.diags, diag.Errorf(diag.ResolutionError, rng, summary, format, args...))
}

func (w *walker) items(items []*ast.Node, s *Scope) []*ast.Node {
	out := make([]*ast.Node, 0, len(items))
	for _, it := range items {
		if it.Kind == ast.KindLet {
			if kept := w.let(it, s); kept != nil {
				out = append(out, kept)
			}
			continue
		}
		out = append(out, w.node(it, s))
	}
	return out
}

func (w *walker) node(n *ast.Node, s *Scope) *ast.Node {
	switch n.Kind {
	case ast.KindFile:
		return n.WithChildren(w.items(n.Children, s.Child()))
	case ast.KindSection, ast.KindBlock, ast.KindTemplate:
		out := n.WithChildren(w.items(n.Children, s.Child()))
		if n.Label != nil {
			out.Label, _ = w.value(n.Label, s)
		}
		return out
	case ast.KindFor:
		src, _ := w.value(n.Value, s)
		body := s.Child()
		body.bindPending(n.Name, n.Range)
		out := n.WithValue(src)
		out.Children = w.items(n.Children, body)
		return out
	case ast.KindUse:
		return n
	case ast.KindProperty:
		v, _ := w.value(n.Value, s)
		return n.WithValue(v)
	case ast.KindLet:
		// Only reachable through Subtree on a lone let.
		if kept := w.let(n, s); kept != nil {
			return kept
		}
		return n
	case ast.KindString, ast.KindNumber, ast.KindBool, ast.KindDuration, ast.KindIdent,
		ast.KindList, ast.KindRange, ast.KindInterp, ast.KindExpr:
		v, _ := w.value(n, s)
		return v
	default:
		panic(fmt.Sprintf("resolve: unexpected %s node", n.Kind))
	}
}

func (w *walker) let(n *ast.Node, s *Scope) *ast.Node {
	if n.Name == EnvRoot {
		w.errorf(n.Range, "Reserved variable name", "The name %q is reserved for environment lookups and cannot be bound.", EnvRoot)
		return nil
	}
	if prev, ok := s.local(n.Name); ok {
		w.diags = append(w.diags, diag.Duplicate(diag.ResolutionError, "variable", n.Name, prev.Range, n.Range))
		return nil
	}

	v, st := w.value(n.Value, s)
	switch st {
	case resolved:
		if !v.IsLiteral() {
			w.errorf(n.Value.Range, "Invalid variable value", "Variable %q must be a string, number, bool, duration, identifier or a list of those.", n.Name)
			s.bindFailed(n.Name, n.Range)
			return nil
		}
		s.Bind(n.Name, v, n.Range)
		return nil
	case deferred:
		s.bindPending(n.Name, n.Range)
		return n.WithValue(v)
	default:
		s.bindFailed(n.Name, n.Range)
		return nil
	}
}

func (w *walker) value(n *ast.Node, s *Scope) (*ast.Node, state) {
	switch n.Kind {
	case ast.KindString, ast.KindNumber, ast.KindBool, ast.KindDuration, ast.KindIdent:
		return n, resolved
	case ast.KindList, ast.KindRange:
		st := resolved
		items := make([]*ast.Node, len(n.Children))
		for i, c := range n.Children {
			var cst state
			items[i], cst = w.value(c, s)
			st = worse(st, cst)
		}
		return n.WithChildren(items), st
	case ast.KindInterp:
		return w.interp(n, s)
	case ast.KindExpr:
		res := w.eval(n.Text, n.Range, s)
		switch res.state {
		case resolved:
			return res.node, resolved
		case deferred:
			return ast.NewExpr(res.src, n.Range), deferred
		default:
			return n, failed
		}
	default:
		panic(fmt.Sprintf("resolve: %s node in value position", n.Kind))
	}
}

func (w *walker) interp(n *ast.Node, s *Scope) (*ast.Node, state) {
	var parts []*ast.Node
	var buf strings.Builder
	st := resolved
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, ast.NewString(buf.String(), n.Range))
			buf.Reset()
		}
	}

	for _, part := range n.Children {
		switch part.Kind {
		case ast.KindString:
			buf.WriteString(part.Text)
		case ast.KindExpr:
			res := w.eval(part.Text, part.Range, s)
			switch res.state {
			case resolved:
				if res.node.Kind == ast.KindList {
					w.errorf(part.Range, "Invalid interpolation", "A list cannot be interpolated into a string.")
					st = failed
					continue
				}
				buf.WriteString(res.node.Text)
			case deferred:
				flush()
				parts = append(parts, ast.NewExpr(res.src, part.Range))
				st = worse(st, deferred)
			default:
				st = failed
			}
		default:
			panic(fmt.Sprintf("resolve: %s node inside an interpolated string", part.Kind))
		}
	}

	switch st {
	case failed:
		return n, failed
	case resolved:
		return ast.NewString(buf.String(), n.Range), resolved
	default:
		flush()
		return n.WithChildren(parts), deferred
	}
}

type result struct {
	state state
	node  *ast.Node
	src   string
}

// eval evaluates the source of one ${...} sequence located at rng.
func (w *walker) eval(src string, rng hcl.Range, s *Scope) result {
	if m := envDefault.FindStringSubmatch(src); m != nil {
		if v, ok := w.r.lookupEnv(m[1]); ok {
			return result{state: resolved, node: ast.NewString(v, rng)}
		}
		return result{state: resolved, node: defaultLiteral(m[2], rng)}
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), rng.Filename, rng.Start)
	if diags.HasErrors() {
		w.diags = append(w.diags, diag.Tag(diag.ResolutionError, diags)...)
		return result{state: failed}
	}

	traversals := expr.Variables()
	vars := make(map[string]cty.Value, len(traversals)+1)
	bad, pending := false, false
	for _, tr := range traversals {
		root := tr.RootName()
		if root == EnvRoot {
			if !w.checkEnv(tr) {
				bad = true
			}
			continue
		}
		b, ok := s.Lookup(root)
		switch {
		case !ok:
			w.errorf(tr[0].SourceRange(), "Undefined variable", "No variable named %q is defined here.%s", root, diag.DidYouMean(root, s.Names()))
			bad = true
		case b.Failed():
			bad = true
		case b.Pending():
			pending = true
		default:
			vars[root] = b.val
		}
	}
	if bad {
		return result{state: failed}
	}
	if pending {
		return result{state: deferred, src: w.partial(src, rng, traversals, s)}
	}

	if st, ok := expr.(*hclsyntax.ScopeTraversalExpr); ok && len(st.Traversal) == 1 {
		b, _ := s.Lookup(st.Traversal.RootName())
		if b.Value.Kind == ast.KindList {
			return result{state: resolved, node: b.Value}
		}
		return result{state: resolved, node: b.Value.WithRange(rng)}
	}

	vars[EnvRoot] = w.r.env
	val, diags := expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		w.diags = append(w.diags, diag.Tag(diag.ResolutionError, diags)...)
		return result{state: failed}
	}
	n, msg := fromCty(val, rng)
	if msg != "" {
		w.errorf(rng, "Invalid expression result", "%s", msg)
		return result{state: failed}
	}
	return result{state: resolved, node: n}
}

func (w *walker) checkEnv(tr hcl.Traversal) bool {
	attr, ok := envAttr(tr)
	if !ok {
		w.errorf(tr.SourceRange(), "Invalid environment reference", "Environment variables are read as env.NAME.")
		return false
	}
	if _, ok := w.r.lookupEnv(attr.Name); !ok {
		w.errorf(tr.SourceRange(), "Undefined environment variable",
			"Environment variable %q is not set. Use ${env.%s:-default} to provide a fallback.", attr.Name, attr.Name)
		return false
	}
	return true
}

func envAttr(tr hcl.Traversal) (hcl.TraverseAttr, bool) {
	if len(tr) < 2 {
		return hcl.TraverseAttr{}, false
	}
	attr, ok := tr[1].(hcl.TraverseAttr)
	return attr, ok
}

// partial rewrites src with every non-pending reference replaced by its
// literal value, so the result only depends on pending names.
func (w *walker) partial(src string, rng hcl.Range, traversals []hcl.Traversal, s *Scope) string {
	type replacement struct {
		start, end int
		text       []byte
	}
	var repls []replacement
	for _, tr := range traversals {
		root := tr.RootName()
		rootVal := w.r.env
		if root != EnvRoot {
			b, _ := s.Lookup(root)
			if b.Pending() {
				continue
			}
			rootVal = b.val
		}
		v, diags := tr.TraverseAbs(&hcl.EvalContext{Variables: map[string]cty.Value{root: rootVal}})
		if diags.HasErrors() {
			// Left in place; the same error is reported once the
			// expression is evaluated for real.
			continue
		}
		sr := tr.SourceRange()
		start, end := sr.Start.Byte-rng.Start.Byte, sr.End.Byte-rng.Start.Byte
		if start < 0 || end > len(src) || start > end {
			continue
		}
		repls = append(repls, replacement{start: start, end: end, text: hclwrite.TokensForValue(v).Bytes()})
	}

	sort.Slice(repls, func(i, j int) bool { return repls[i].start > repls[j].start })
	out := []byte(src)
	for _, r := range repls {
		out = append(out[:r.start], append(r.text, out[r.end:]...)...)
	}
	return string(out)
}
