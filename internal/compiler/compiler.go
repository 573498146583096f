// Package compiler wires the pipeline stages together: variable resolution,
// loop unrolling, template expansion, IR construction and code generation.
package compiler

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/builder"
	"github.com/specialistvlad/lbforge/internal/codegen"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
	"github.com/specialistvlad/lbforge/internal/parser"
	"github.com/specialistvlad/lbforge/internal/resolve"
	"github.com/specialistvlad/lbforge/internal/template"
	"github.com/specialistvlad/lbforge/internal/unroll"
	"golang.org/x/sync/errgroup"
)

// Options configures a compilation.
type Options struct {
	// Env is the environment snapshot used by ${env.NAME} references.
	Env map[string]string
	// EmptyEnvAsUnset makes an empty environment value fall back to the
	// default of ${env.NAME:-default}.
	EmptyEnvAsUnset bool
	// MaxIterations caps loop unrolling; zero selects the default.
	MaxIterations int
	// DeferReferences leaves cross-section reference checks of Translate to
	// the caller. CompileFiles always checks references on the merged model.
	DeferReferences bool
}

func (o Options) resolve() resolve.Options {
	return resolve.Options{Env: o.Env, EmptyEnvAsUnset: o.EmptyEnvAsUnset}
}

// Translate runs resolution, unrolling, template expansion and the builder
// over one parsed file. A stage that reports errors stops the pipeline and
// its whole batch is returned.
func Translate(ctx context.Context, tree *ast.Node, opts Options) (*ir.Config, hcl.Diagnostics) {
	ctx = ctxlog.With(ctx, "file", tree.Range.Filename)

	resolved, diags := resolve.Resolve(ctx, tree, nil, opts.resolve())
	if diags.HasErrors() {
		return nil, diags
	}
	unrolled, diags := unroll.Unroll(ctx, resolved, unroll.Options{
		MaxIterations: opts.MaxIterations,
		Resolve:       opts.resolve(),
	})
	if diags.HasErrors() {
		return nil, diags
	}
	table, diags := template.Collect(ctx, unrolled)
	if diags.HasErrors() {
		return nil, diags
	}
	expanded, diags := template.Expand(ctx, unrolled, table)
	if diags.HasErrors() {
		return nil, diags
	}
	return builder.Build(ctx, expanded, builder.Options{DeferReferences: opts.DeferReferences})
}

// Generate renders a validated configuration as HAProxy text.
func Generate(cfg *ir.Config) string {
	return codegen.Generate(cfg)
}

// Source is one input file.
type Source struct {
	Filename string
	Bytes    []byte
}

// CompileFiles parses and translates every file concurrently, then merges
// the per-file models in input order. The error is non-nil only when ctx is
// cancelled; problems in the input are reported as diagnostics.
func CompileFiles(ctx context.Context, files []Source, opts Options) (*ir.Config, hcl.Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compiling files.", "count", len(files))

	cfgs := make([]*ir.Config, len(files))
	perFile := make([]hcl.Diagnostics, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tree, diags := parser.Parse(f.Filename, f.Bytes)
			if diags.HasErrors() {
				perFile[i] = diags
				return nil
			}
			fileOpts := opts
			fileOpts.DeferReferences = true
			cfgs[i], perFile[i] = Translate(gctx, tree, fileOpts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("compiling %d files: %w", len(files), err)
	}

	var diags hcl.Diagnostics
	for _, d := range perFile {
		diags = append(diags, d...)
	}
	if diags.HasErrors() {
		return nil, diag.Sort(diags), nil
	}

	cfg, mergeDiags := builder.Merge(ctx, cfgs)
	diags = append(diags, mergeDiags...)
	if diags.HasErrors() {
		return nil, diag.Sort(diags), nil
	}
	logger.Debug("Compilation finished.", "files", len(files))
	return cfg, diags, nil
}

// Compile is CompileFiles followed by Generate. The text is empty whenever
// the diagnostics contain errors.
func Compile(ctx context.Context, files []Source, opts Options) (string, hcl.Diagnostics, error) {
	cfg, diags, err := CompileFiles(ctx, files, opts)
	if err != nil || diags.HasErrors() {
		return "", diags, err
	}
	return Generate(cfg), diags, nil
}
