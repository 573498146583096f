package builder

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
)

func (b *builder) defaultsSection(n *ast.Node) *ir.Defaults {
	bd := b.decode(n, defaultsSchema)
	d := &ir.Defaults{}
	b.proxy(n, bd, &d.Proxy)
	d.Balance = b.enum(bd, "balance")
	d.BalanceParam = b.str(bd, "balance_param")
	b.checkBalance(bd, d.Balance, d.BalanceParam)
	d.Retries = b.intp(bd, "retries")
	if ds := bd.single("default_server"); ds != nil {
		d.DefaultServer = b.serverParams(b.decode(ds, defaultServerSchema))
	}
	// A defaults section does not inherit from the one before it.
	b.checkOptions(n, bd, &d.Proxy, orTCP(d.Mode))
	b.defaults = d
	return d
}

func (b *builder) frontend(n *ast.Node) *ir.Frontend {
	bd := b.decode(n, frontendSchema)
	f := &ir.Frontend{}
	b.proxy(n, bd, &f.Proxy)
	mode := b.effectiveMode(f.Mode)
	b.checkOptions(n, bd, &f.Proxy, mode)
	b.traffic(n, bd, &f.Proxy, mode)
	b.frontendSide(bd, &f.FrontendSide)
	return f
}

func (b *builder) backend(n *ast.Node) *ir.Backend {
	bd := b.decode(n, backendSchema)
	be := &ir.Backend{}
	b.proxy(n, bd, &be.Proxy)
	mode := b.effectiveMode(be.Mode)
	b.checkOptions(n, bd, &be.Proxy, mode)
	b.traffic(n, bd, &be.Proxy, mode)
	b.backendSide(n, bd, &be.BackendSide)
	return be
}

func (b *builder) listen(n *ast.Node) *ir.Listen {
	bd := b.decode(n, listenSchema)
	l := &ir.Listen{}
	b.proxy(n, bd, &l.Proxy)
	mode := b.effectiveMode(l.Mode)
	b.checkOptions(n, bd, &l.Proxy, mode)
	b.traffic(n, bd, &l.Proxy, mode)
	b.frontendSide(bd, &l.FrontendSide)
	b.backendSide(n, bd, &l.BackendSide)
	return l
}

// proxy decodes the properties every proxy section shares.
func (b *builder) proxy(n *ast.Node, bd *body, p *ir.Proxy) {
	p.Name = n.LabelText()
	p.Range = n.Range
	p.Mode = b.enum(bd, "mode")
	p.Maxconn = b.intp(bd, "maxconn")
	p.LogGlobal = b.boolp(bd, "log_global")
	p.Options = b.list(bd, "options")
	p.NoOptions = b.list(bd, "no_options")
	for _, l := range bd.blocks["log"] {
		p.Logs = append(p.Logs, b.log(l))
	}
	if t := bd.single("timeout"); t != nil {
		p.Timeouts = b.timeouts(t, timeoutSchemas[n.Name])
	}
}

// checkOptions validates option lists against each other and the mode.
func (b *builder) checkOptions(n *ast.Node, bd *body, p *ir.Proxy, mode string) {
	seen := make(map[string]bool)
	for _, o := range p.Options {
		if seen[o] {
			b.errorf(bd.elementRange("options", o), "Duplicate option", "Option %q is listed more than once.", o)
		}
		seen[o] = true
		if mode == "tcp" && ir.Contains(ir.HTTPOnlyOptions, o) {
			b.errorf(bd.elementRange("options", o), "Option requires http mode",
				"Option %q needs mode http, but %s runs in tcp mode.", o, describe(n))
		}
	}
	for _, o := range p.NoOptions {
		if seen[o] {
			b.errorf(bd.elementRange("no_options", o), "Conflicting options",
				"Option %q is both enabled and disabled in %s.", o, describe(n))
		}
	}
	if seen["httplog"] && seen["tcplog"] {
		b.errorf(bd.elementRange("options", "tcplog"), "Conflicting options", "Options httplog and tcplog cannot be used together.")
	}
}

// traffic decodes the blocks that act on live traffic: ACLs, rules,
// stick tables, stats and compression.
func (b *builder) traffic(n *ast.Node, bd *body, p *ir.Proxy, mode string) {
	acls := make(map[string]hcl.Range)
	for _, a := range bd.blocks["acl"] {
		acl := b.acl(a)
		if b.unique(acls, "ACL", acl.Name, acl.Range) {
			p.ACLs = append(p.ACLs, acl)
		}
	}
	for _, r := range bd.blocks["http_request"] {
		p.HTTPRequest = append(p.HTTPRequest, b.httpRule(r, httpRequestSchema))
	}
	for _, r := range bd.blocks["http_response"] {
		p.HTTPResponse = append(p.HTTPResponse, b.httpRule(r, httpResponseSchema))
	}
	if st := bd.single("stick_table"); st != nil {
		p.StickTable = b.stickTable(st)
	}
	if s := bd.single("stats"); s != nil {
		p.Stats = b.stats(s)
	}
	if c := bd.single("compression"); c != nil {
		p.Compression = b.compression(c)
	}

	if mode != "tcp" {
		return
	}
	for _, name := range []string{"http_request", "http_response", "stats", "compression", "cookie"} {
		for _, blk := range bd.blocks[name] {
			b.errorf(blk.Range, "Directive requires http mode",
				"A %q block needs mode http, but %s runs in tcp mode.", name, describe(n))
		}
	}
}

func (b *builder) frontendSide(bd *body, f *ir.FrontendSide) {
	addrs := make(map[string]hcl.Range)
	for _, n := range bd.blocks["bind"] {
		bind := b.bind(n)
		if b.unique(addrs, "bind address", bind.Address, bind.Range) {
			f.Binds = append(f.Binds, bind)
		}
	}
	for _, n := range bd.blocks["use_backend"] {
		ub := b.decode(n, useBackendSchema)
		f.UseBackends = append(f.UseBackends, &ir.UseBackend{
			Range:   n.Range,
			Backend: ir.Ref{Name: n.LabelText(), Range: n.Label.Range},
			Cond:    b.condition(ub),
		})
	}
	if name := b.str(bd, "default_backend"); name != "" {
		f.DefaultBackend = &ir.Ref{Name: name, Range: bd.valueRange("default_backend")}
	}
}

func (b *builder) backendSide(n *ast.Node, bd *body, s *ir.BackendSide) {
	s.Balance = b.enum(bd, "balance")
	s.BalanceParam = b.str(bd, "balance_param")
	s.Fullconn = b.intp(bd, "fullconn")
	s.Retries = b.intp(bd, "retries")
	s.HTTPReuse = b.enum(bd, "http_reuse")
	s.StickOn = b.str(bd, "stick_on")
	b.checkBalance(bd, s.Balance, s.BalanceParam)

	if s.StickOn != "" && bd.single("stick_table") == nil {
		b.errorf(bd.valueRange("stick_on"), "Missing stick table",
			"stick_on needs a stick_table block in %s.", describe(n))
	}
	if hc := bd.single("health_check"); hc != nil {
		s.HealthCheck = b.healthCheck(hc)
	}
	if ds := bd.single("default_server"); ds != nil {
		s.DefaultServer = b.serverParams(b.decode(ds, defaultServerSchema))
	}
	if s.HealthCheck != nil && s.DefaultServer != nil {
		b.checkTimingConflict(bd.single("health_check"), bd.single("default_server"))
	}

	names := make(map[string]hcl.Range)
	for _, sn := range bd.blocks["server"] {
		srv := b.server(sn, s.DefaultServer)
		if srv != nil && b.unique(names, "server", srv.Name, srv.Range) {
			s.Servers = append(s.Servers, srv)
		}
	}
	if c := bd.single("cookie"); c != nil {
		s.Cookie = b.cookie(c)
	}
	if ea := bd.single("email_alert"); ea != nil {
		s.EmailAlert = b.emailAlert(ea)
	}
}

func (b *builder) checkBalance(bd *body, algo, param string) {
	switch {
	case param != "" && !ir.Contains(ir.BalanceWithParam, algo):
		b.errorf(bd.valueRange("balance_param"), "Unexpected balance parameter",
			"balance_param is only used with the %s algorithms.", joinQuoted(ir.BalanceWithParam))
	case param == "" && (algo == "url_param" || algo == "hdr"):
		b.errorf(bd.valueRange("balance"), "Missing balance parameter",
			"balance %s needs balance_param to name the %s to hash.", algo, map[string]string{"url_param": "URL parameter", "hdr": "header"}[algo])
	}
}

// checkTimingConflict rejects a timing field set both on the backend health
// check and on its default_server, since both render on one line.
func (b *builder) checkTimingConflict(hc, ds *ast.Node) {
	var dsTiming *ast.Node
	for _, c := range ds.Children {
		if c.Kind == ast.KindBlock && c.Name == "health_check" {
			dsTiming = c
		}
	}
	if dsTiming == nil {
		return
	}
	set := make(map[string]*ast.Node)
	for _, c := range dsTiming.Children {
		if c.Kind == ast.KindProperty {
			set[c.Name] = c
		}
	}
	for _, c := range hc.Children {
		if c.Kind != ast.KindProperty {
			continue
		}
		if _, timing := checkTimingSchema.attrs[c.Name]; !timing {
			continue
		}
		if other, ok := set[c.Name]; ok {
			b.diags = append(b.diags, diag.New(diag.ValidationError, other.Range, "Conflicting check timing",
				"Check timing \""+c.Name+"\" is set both here and in the backend health_check at "+c.Range.String()+".", c.Range))
		}
	}
}

// unique records name in seen and reports a duplicate when it is already
// there.
func (b *builder) unique(seen map[string]hcl.Range, what, name string, rng hcl.Range) bool {
	if first, ok := seen[name]; ok {
		b.diags = append(b.diags, diag.Duplicate(diag.ValidationError, what, name, first, rng))
		return false
	}
	seen[name] = rng
	return true
}
