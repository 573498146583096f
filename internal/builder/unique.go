package builder

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
)

// sectionEntry is one named section taking part in a uniqueness check.
type sectionEntry struct {
	kind string
	name string
	rng  hcl.Range
}

// checkUnique reports sections that reuse a name within their namespace.
// cfgs are visited in order and each config's sections in source order, so
// the first declaration is always the one reported as the original.
//
// A listen is both a frontend and a backend, so it conflicts with either;
// a frontend and a backend may share a name.
func checkUnique(cfgs []*ir.Config) hcl.Diagnostics {
	namespaces := map[string][]sectionEntry{}
	order := []string{"frontend", "backend", "defaults", "resolvers", "peers", "mailers"}
	for _, cfg := range cfgs {
		local := map[string][]sectionEntry{}
		for _, f := range cfg.Frontends {
			local["frontend"] = append(local["frontend"], sectionEntry{"frontend", f.Name, f.Range})
		}
		for _, be := range cfg.Backends {
			local["backend"] = append(local["backend"], sectionEntry{"backend", be.Name, be.Range})
		}
		for _, l := range cfg.Listens {
			e := sectionEntry{"listen", l.Name, l.Range}
			local["frontend"] = append(local["frontend"], e)
			local["backend"] = append(local["backend"], e)
		}
		for _, d := range cfg.Defaults {
			if d.Name != "" {
				local["defaults"] = append(local["defaults"], sectionEntry{"defaults", d.Name, d.Range})
			}
		}
		for _, r := range cfg.Resolvers {
			local["resolvers"] = append(local["resolvers"], sectionEntry{"resolvers", r.Name, r.Range})
		}
		for _, p := range cfg.Peers {
			local["peers"] = append(local["peers"], sectionEntry{"peers", p.Name, p.Range})
		}
		for _, m := range cfg.Mailers {
			local["mailers"] = append(local["mailers"], sectionEntry{"mailers", m.Name, m.Range})
		}
		for ns, entries := range local {
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].rng.Start.Byte < entries[j].rng.Start.Byte })
			namespaces[ns] = append(namespaces[ns], entries...)
		}
	}

	var diags hcl.Diagnostics
	for _, ns := range order {
		seen := make(map[string]sectionEntry)
		for _, e := range namespaces[ns] {
			first, ok := seen[e.name]
			if !ok {
				seen[e.name] = e
				continue
			}
			// Listen pairs are reported once, in the frontend namespace.
			if ns == "backend" && first.kind == "listen" && e.kind == "listen" {
				continue
			}
			diags = append(diags, duplicateSection(first, e))
		}
	}
	return diags
}

func duplicateSection(first, second sectionEntry) *hcl.Diagnostic {
	if first.kind == second.kind {
		return diag.Duplicate(diag.ValidationError, second.kind, second.name, first.rng, second.rng)
	}
	return diag.New(diag.ValidationError, second.rng, "Duplicate proxy name",
		fmt.Sprintf("%s %q uses the same name as %s %q declared at %s.", second.kind, second.name, first.kind, first.name, first.rng),
		first.rng)
}

// CheckReferences reports names that do not resolve to a declared section:
// backend targets, resolvers, peers and mailers.
func CheckReferences(cfg *ir.Config) hcl.Diagnostics {
	backends := make([]string, 0, len(cfg.Backends)+len(cfg.Listens))
	for _, be := range cfg.Backends {
		backends = append(backends, be.Name)
	}
	for _, l := range cfg.Listens {
		backends = append(backends, l.Name)
	}
	var resolvers, peers, mailers []string
	for _, r := range cfg.Resolvers {
		resolvers = append(resolvers, r.Name)
	}
	for _, p := range cfg.Peers {
		peers = append(peers, p.Name)
	}
	for _, m := range cfg.Mailers {
		mailers = append(mailers, m.Name)
	}

	var diags hcl.Diagnostics
	check := func(ref *ir.Ref, what string, names []string) {
		if ref == nil || ref.Name == "" {
			return
		}
		for _, n := range names {
			if n == ref.Name {
				return
			}
		}
		diags = append(diags, diag.Errorf(diag.ValidationError, ref.Range, "Unknown "+what,
			"No %s section named %q is declared.%s", what, ref.Name, diag.DidYouMean(ref.Name, names)))
	}
	frontend := func(f *ir.FrontendSide) {
		for _, ub := range f.UseBackends {
			check(&ub.Backend, "backend", backends)
		}
		check(f.DefaultBackend, "backend", backends)
	}
	servers := func(s *ir.BackendSide) {
		if s.DefaultServer != nil {
			check(s.DefaultServer.Resolvers, "resolvers", resolvers)
		}
		for _, srv := range s.Servers {
			check(srv.Resolvers, "resolvers", resolvers)
		}
		if s.EmailAlert != nil {
			check(&s.EmailAlert.Mailers, "mailers", mailers)
		}
	}
	table := func(p *ir.Proxy) {
		if p.StickTable != nil {
			check(p.StickTable.Peers, "peers", peers)
		}
	}

	for _, d := range cfg.Defaults {
		if d.DefaultServer != nil {
			check(d.DefaultServer.Resolvers, "resolvers", resolvers)
		}
	}
	for _, f := range cfg.Frontends {
		table(&f.Proxy)
		frontend(&f.FrontendSide)
	}
	for _, be := range cfg.Backends {
		table(&be.Proxy)
		servers(&be.BackendSide)
	}
	for _, l := range cfg.Listens {
		table(&l.Proxy)
		frontend(&l.FrontendSide)
		servers(&l.BackendSide)
	}
	return diag.Sort(diags)
}

// Merge combines per-file models, given in input order, into one. Sections
// keep their file order. Duplicate sections across files, a second global
// and unresolved references are reported; the merged Config is nil when
// any of them is found.
func Merge(ctx context.Context, cfgs []*ir.Config) (*ir.Config, hcl.Diagnostics) {
	merged := &ir.Config{}
	var diags hcl.Diagnostics
	for _, cfg := range cfgs {
		if cfg.Global != nil {
			if merged.Global != nil {
				diags = append(diags, diag.Duplicate(diag.ValidationError, "section", "global", merged.Global.Range, cfg.Global.Range))
			} else {
				merged.Global = cfg.Global
			}
		}
		merged.Defaults = append(merged.Defaults, cfg.Defaults...)
		merged.Frontends = append(merged.Frontends, cfg.Frontends...)
		merged.Backends = append(merged.Backends, cfg.Backends...)
		merged.Listens = append(merged.Listens, cfg.Listens...)
		merged.Resolvers = append(merged.Resolvers, cfg.Resolvers...)
		merged.Peers = append(merged.Peers, cfg.Peers...)
		merged.Mailers = append(merged.Mailers, cfg.Mailers...)
	}
	diags = append(diags, checkUnique(cfgs)...)
	diags = append(diags, CheckReferences(merged)...)
	diags = diag.Sort(diags)

	ctxlog.FromContext(ctx).Debug("Merge: Combined file models.", "files", len(cfgs), "diagnostics", len(diags))
	if diags.HasErrors() {
		return nil, diags
	}
	return merged, diags
}
