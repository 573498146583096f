package builder

import (
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ir"
)

// serverParams decodes the options shared by server and default_server.
func (b *builder) serverParams(bd *body) *ir.ServerParams {
	p := &ir.ServerParams{
		Range:         bd.node.Range,
		Weight:        b.intp(bd, "weight"),
		Maxconn:       b.intp(bd, "maxconn"),
		Check:         b.boolp(bd, "check"),
		Backup:        b.boolp(bd, "backup"),
		Disabled:      b.boolp(bd, "disabled"),
		SendProxy:     b.boolp(bd, "send_proxy"),
		SendProxyV2:   b.boolp(bd, "send_proxy_v2"),
		Slowstart:     b.dur(bd, "slowstart"),
		ResolvePrefer: b.enum(bd, "resolve_prefer"),
		InitAddr:      b.list(bd, "init_addr"),
		OnMarkedDown:  b.enum(bd, "on_marked_down"),
	}
	if name := b.str(bd, "resolvers"); name != "" {
		p.Resolvers = &ir.Ref{Name: name, Range: bd.valueRange("resolvers")}
	}
	if isTrue(p.SendProxy) && isTrue(p.SendProxyV2) {
		b.errorf(bd.valueRange("send_proxy_v2"), "Conflicting properties", "Only one of send_proxy and send_proxy_v2 may be enabled.")
	}
	if s := bd.single("ssl"); s != nil {
		sd := b.decode(s, serverSSLSchema)
		p.SSL = &ir.ServerSSL{
			Enabled:     b.boolp(sd, "enabled"),
			Verify:      b.enum(sd, "verify"),
			CAFile:      b.str(sd, "ca_file"),
			SNI:         b.str(sd, "sni"),
			ALPN:        b.list(sd, "alpn"),
			Certificate: b.str(sd, "certificate"),
			MinVersion:  b.enum(sd, "min_version"),
		}
		b.checkVerify(sd, p.SSL.Verify, p.SSL.CAFile)
	}
	if hc := bd.single("health_check"); hc != nil {
		p.Timing = b.timing(b.decode(hc, checkTimingSchema))
	}
	return p
}

// server decodes a server block. Unset options fall back to def, the
// backend's default_server, for the check and resolvers rules.
func (b *builder) server(n *ast.Node, def *ir.ServerParams) *ir.Server {
	bd := b.decode(n, serverSchema)
	b.require(bd, "address")
	s := &ir.Server{
		ServerParams: *b.serverParams(bd),
		Name:         n.LabelText(),
		Address:      b.str(bd, "address"),
		Port:         b.intp(bd, "port"),
	}
	s.Cookie = b.str(bd, "cookie")

	if hc := bd.single("health_check"); hc != nil && !b.checkEnabled(s.Check, def) {
		b.errorf(hc.Range, "Health check disabled",
			"Server %q sets check timing but checks are not enabled; set check: true on the server or its default_server.", s.Name)
	}
	if s.ResolvePrefer != "" && s.Resolvers == nil && (def == nil || def.Resolvers == nil) {
		b.errorf(bd.valueRange("resolve_prefer"), "Missing resolvers",
			"resolve_prefer needs a resolvers section named on the server or its default_server.")
	}
	return s
}

// checkEnabled resolves the effective check flag of a server.
func (b *builder) checkEnabled(own *bool, def *ir.ServerParams) bool {
	if own != nil {
		return *own
	}
	if def != nil && def.Check != nil {
		return *def.Check
	}
	if b.defaults != nil && b.defaults.DefaultServer != nil && b.defaults.DefaultServer.Check != nil {
		return *b.defaults.DefaultServer.Check
	}
	return false
}
