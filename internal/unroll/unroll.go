// Package unroll expands for-loops into repeated copies of their bodies.
package unroll

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/resolve"
)

// DefaultMaxIterations bounds the total number of loop iterations in one
// pass when Options.MaxIterations is zero.
const DefaultMaxIterations = 10000

// Options configures one unrolling pass.
type Options struct {
	// MaxIterations caps both a single loop and the cumulative number of
	// iterations across the pass, nested loops included.
	MaxIterations int
	// Resolve configures the substitution re-run for every iteration.
	Resolve resolve.Options
}

// Unroll replaces every loop in tree with one copy of its body per value.
func Unroll(ctx context.Context, tree *ast.Node, opts Options) (*ast.Node, hcl.Diagnostics) {
	limit := opts.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}
	u := &unroller{resolver: resolve.New(opts.Resolve), limit: limit}
	out := tree.WithChildren(u.items(tree.Children, resolve.NewScope(nil)))

	ctxlog.FromContext(ctx).Debug("Loops unrolled.", "file", tree.Range.Filename, "iterations", u.total, "diagnostics", len(u.diags))
	return out, diag.Sort(u.diags)
}

type unroller struct {
	resolver *resolve.Resolver
	limit    int
	total    int
	// fatal stops the pass once the iteration cap is exceeded.
	fatal bool
	diags hcl.Diagnostics
}

func (u *unroller) items(items []*ast.Node, s *resolve.Scope) []*ast.Node {
	out := make([]*ast.Node, 0, len(items))
	for _, it := range items {
		if u.fatal {
			return out
		}
		switch it.Kind {
		case ast.KindFor:
			out = append(out, u.loop(it, s)...)
		case ast.KindFile, ast.KindSection, ast.KindBlock, ast.KindTemplate:
			out = append(out, it.WithChildren(u.items(it.Children, s)))
		case ast.KindLet, ast.KindUse, ast.KindProperty:
			out = append(out, it)
		default:
			panic(fmt.Sprintf("unroll: unexpected %s node in a body", it.Kind))
		}
	}
	return out
}

func (u *unroller) loop(n *ast.Node, s *resolve.Scope) []*ast.Node {
	values, ok := u.values(n)
	if !ok {
		return nil
	}

	var out []*ast.Node
	for _, v := range values {
		u.total++
		if u.total > u.limit {
			u.diags = append(u.diags, diag.Errorf(diag.LoopError, n.Range, "Too many loop iterations",
				"Loops in this file expand to more than %d iterations in total.", u.limit))
			u.fatal = true
			return out
		}
		iter := s.Child()
		iter.Bind(n.Name, v, n.Range)
		body, diags := u.resolver.Items(ast.CloneAll(n.Children), iter)
		u.diags = append(u.diags, diags...)
		out = append(out, u.items(body, iter)...)
		if u.fatal {
			return out
		}
	}
	return out
}

// values materializes the loop source.
func (u *unroller) values(n *ast.Node) ([]*ast.Node, bool) {
	src := n.Value
	switch src.Kind {
	case ast.KindRange:
		lo, okLo := intBound(src.Children[0])
		hi, okHi := intBound(src.Children[1])
		if !okLo || !okHi {
			u.errorf(src.Range, "Invalid loop range", "Range bounds must be integers, got [%s..%s].", src.Children[0].Text, src.Children[1].Text)
			return nil, false
		}
		if lo > hi {
			u.errorf(src.Range, "Invalid loop range", "The range [%d..%d] is empty: the start must not exceed the end.", lo, hi)
			return nil, false
		}
		// The span is taken in uint64 so ranges wider than MaxInt64 cannot wrap.
		if span := uint64(hi) - uint64(lo); span >= uint64(u.limit) {
			u.diags = append(u.diags, diag.Errorf(diag.LoopError, src.Range, "Too many loop iterations",
				"The range [%d..%d] has more elements than the limit of %d.", lo, hi, u.limit))
			u.fatal = true
			return nil, false
		}
		count := int(hi - lo + 1)
		values := make([]*ast.Node, 0, count)
		for i := 0; i < count; i++ {
			values = append(values, ast.NewInt(lo+int64(i), src.Range))
		}
		return values, true
	case ast.KindList:
		if len(src.Children) == 0 {
			u.errorf(src.Range, "Empty loop list", "A loop over an empty list produces nothing; remove the loop or add elements.")
			return nil, false
		}
		if len(src.Children) > u.limit {
			u.diags = append(u.diags, diag.Errorf(diag.LoopError, src.Range, "Too many loop iterations",
				"The list has %d elements, more than the limit of %d.", len(src.Children), u.limit))
			u.fatal = true
			return nil, false
		}
		for _, c := range src.Children {
			if !c.IsScalar() {
				u.errorf(c.Range, "Invalid loop element", "Loop lists may only contain strings, numbers, booleans, durations and identifiers, got %s.", c.Kind)
				return nil, false
			}
		}
		return src.Children, true
	case ast.KindExpr, ast.KindInterp:
		u.errorf(src.Range, "Invalid loop source", "The loop source could not be resolved to a range or a list.")
		return nil, false
	case ast.KindString, ast.KindNumber, ast.KindBool, ast.KindDuration, ast.KindIdent:
		u.errorf(src.Range, "Invalid loop source", "A loop needs a range [a..b] or a list, got %s.", src.Describe())
		return nil, false
	default:
		panic(fmt.Sprintf("unroll: unexpected %s loop source", src.Kind))
	}
}

func (u *unroller) errorf(rng hcl.Range, summary, format string, args ...any) {
	u.diags = append(u.diags, diag.Errorf(diag.LoopError, rng, summary, format, args...))
}

func intBound(n *ast.Node) (int64, bool) {
	if n.Kind != ast.KindNumber {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Text, 10, 64)
	return v, err == nil
}
