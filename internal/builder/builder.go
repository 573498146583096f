package builder

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
)

// Options tunes a Build call.
type Options struct {
	// DeferReferences skips cross-section reference checks. Callers that
	// merge several files run CheckReferences on the merged model instead.
	DeferReferences bool
}

// Build constructs and validates the model of tree. The returned Config is
// nil whenever the diagnostics contain errors.
func Build(ctx context.Context, tree *ast.Node, opts Options) (*ir.Config, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting IR construction.", "file", tree.Range.Filename)

	b := &builder{opts: opts, cfg: &ir.Config{}}
	for _, n := range tree.Children {
		b.topLevel(n)
	}
	b.diags = append(b.diags, checkUnique([]*ir.Config{b.cfg})...)
	if !opts.DeferReferences {
		b.diags = append(b.diags, CheckReferences(b.cfg)...)
	}

	diags := diag.Sort(b.diags)
	if diags.HasErrors() {
		logger.Debug("Build: Validation failed.", "file", tree.Range.Filename, "errors", len(diags))
		return nil, diags
	}
	logger.Debug("Build: IR construction complete.",
		"file", tree.Range.Filename,
		"frontends", len(b.cfg.Frontends),
		"backends", len(b.cfg.Backends),
		"listens", len(b.cfg.Listens),
	)
	return b.cfg, diags
}

// builder holds the state of one Build call.
type builder struct {
	opts  Options
	cfg   *ir.Config
	diags hcl.Diagnostics
	// defaults is the most recent defaults section; it supplies the
	// effective mode and default-server of the proxies that follow it.
	defaults *ir.Defaults
}

func (b *builder) errorf(rng hcl.Range, summary, format string, args ...any) {
	b.diags = append(b.diags, diag.Errorf(diag.ValidationError, rng, summary, format, args...))
}

func (b *builder) topLevel(n *ast.Node) {
	switch n.Kind {
	case ast.KindSection:
		b.section(n)
	case ast.KindProperty, ast.KindBlock:
		b.errorf(n.Range, "Unexpected top-level item",
			"%s %q must be placed inside a section such as frontend or backend.", n.Kind, n.Name)
	default:
		b.errorf(n.Range, "Unexpected statement", "A %s cannot appear in an expanded configuration.", n.Kind)
	}
}

func (b *builder) section(n *ast.Node) {
	if !b.sectionLabel(n) {
		return
	}
	switch n.Name {
	case "global":
		b.global(n)
	case "defaults":
		b.cfg.Defaults = append(b.cfg.Defaults, b.defaultsSection(n))
	case "frontend":
		b.cfg.Frontends = append(b.cfg.Frontends, b.frontend(n))
	case "backend":
		b.cfg.Backends = append(b.cfg.Backends, b.backend(n))
	case "listen":
		b.cfg.Listens = append(b.cfg.Listens, b.listen(n))
	case "resolvers":
		b.cfg.Resolvers = append(b.cfg.Resolvers, b.resolvers(n))
	case "peers":
		b.cfg.Peers = append(b.cfg.Peers, b.peers(n))
	case "mailers":
		b.cfg.Mailers = append(b.cfg.Mailers, b.mailers(n))
	default:
		b.errorf(n.Range, "Unknown section", "%q is not a section keyword.%s", n.Name, diag.DidYouMean(n.Name, sectionKinds))
	}
}

var sectionKinds = []string{"global", "defaults", "frontend", "backend", "listen", "resolvers", "peers", "mailers"}

// sectionLabel checks the section name: global takes none, defaults may
// have one, every other section requires one.
func (b *builder) sectionLabel(n *ast.Node) bool {
	switch {
	case n.Name == "global" && n.Label != nil:
		b.errorf(n.Label.Range, "Unexpected section name", "The global section does not take a name.")
		return false
	case n.Label != nil && n.LabelText() == "":
		b.errorf(n.Label.Range, "Invalid section name", "The name of a %s section must be a literal, got %s.", n.Name, n.Label.Describe())
		return false
	case n.Name != "global" && n.Name != "defaults" && n.Label == nil:
		b.errorf(n.Range, "Missing section name", "A %s section needs a name, as in %s \"name\" { ... }.", n.Name, n.Name)
		return false
	}
	return true
}

// effectiveMode is the mode used for cross-field checks.
func (b *builder) effectiveMode(own string) string {
	if own != "" {
		return own
	}
	if b.defaults != nil && b.defaults.Mode != "" {
		return b.defaults.Mode
	}
	return "tcp"
}
