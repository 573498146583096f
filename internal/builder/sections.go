package builder

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
)

const defaultNameserverPort = 53

func (b *builder) global(n *ast.Node) {
	if b.cfg.Global != nil {
		b.diags = append(b.diags, diag.Duplicate(diag.ValidationError, "section", "global", b.cfg.Global.Range, n.Range))
		return
	}
	bd := b.decode(n, globalSchema)
	g := &ir.Global{
		Range:                   n.Range,
		Daemon:                  b.flag(bd, "daemon"),
		MasterWorker:            b.flag(bd, "master_worker"),
		Maxconn:                 b.intp(bd, "maxconn"),
		Nbthread:                b.intp(bd, "nbthread"),
		User:                    b.str(bd, "user"),
		Group:                   b.str(bd, "group"),
		Chroot:                  b.str(bd, "chroot"),
		Pidfile:                 b.str(bd, "pidfile"),
		SpreadChecks:            b.intp(bd, "spread_checks"),
		HardStopAfter:           b.dur(bd, "hard_stop_after"),
		TuneSSLDefaultDHParam:   b.intp(bd, "tune_ssl_default_dh_param"),
		SSLDefaultBindCiphers:   b.str(bd, "ssl_default_bind_ciphers"),
		SSLDefaultBindOptions:   b.list(bd, "ssl_default_bind_options"),
		SSLDefaultServerCiphers: b.str(bd, "ssl_default_server_ciphers"),
		SSLDefaultServerOptions: b.list(bd, "ssl_default_server_options"),
	}
	for _, l := range bd.blocks["log"] {
		g.Logs = append(g.Logs, b.log(l))
	}
	paths := make(map[string]hcl.Range)
	for _, s := range bd.blocks["stats_socket"] {
		sd := b.decode(s, statsSocketSchema)
		sock := &ir.StatsSocket{
			Range:             s.Range,
			Path:              s.LabelText(),
			Mode:              b.str(sd, "mode"),
			Level:             b.enum(sd, "level"),
			ExposeFDListeners: b.flag(sd, "expose_fd_listeners"),
		}
		if b.unique(paths, "stats socket", sock.Path, sock.Range) {
			g.StatsSockets = append(g.StatsSockets, sock)
		}
	}
	b.cfg.Global = g
}

// endpoints decodes the named address blocks of a resolvers, peers or
// mailers section. A zero defaultPort makes the port required.
func (b *builder) endpoints(nodes []*ast.Node, what string, defaultPort int) []*ir.Endpoint {
	var out []*ir.Endpoint
	names := make(map[string]hcl.Range)
	for _, n := range nodes {
		bd := b.decode(n, endpointSchema)
		b.require(bd, "address")
		if defaultPort == 0 {
			b.require(bd, "port")
		}
		e := &ir.Endpoint{
			Range:   n.Range,
			Name:    n.LabelText(),
			Address: b.str(bd, "address"),
			Port:    defaultPort,
		}
		if p := b.intp(bd, "port"); p != nil {
			e.Port = *p
		}
		if b.unique(names, what, e.Name, e.Range) {
			out = append(out, e)
		}
	}
	return out
}

func (b *builder) resolvers(n *ast.Node) *ir.Resolvers {
	bd := b.decode(n, resolversSchema)
	r := &ir.Resolvers{
		Name:                n.LabelText(),
		Range:               n.Range,
		Nameservers:         b.endpoints(bd.blocks["nameserver"], "nameserver", defaultNameserverPort),
		ParseResolvConf:     b.flag(bd, "parse_resolv_conf"),
		AcceptedPayloadSize: b.intp(bd, "accepted_payload_size"),
		ResolveRetries:      b.intp(bd, "resolve_retries"),
	}
	if h := bd.single("hold"); h != nil {
		r.Hold = b.timeouts(h, holdSchema)
	}
	if t := bd.single("timeout"); t != nil {
		r.Timeouts = b.timeouts(t, resolverTimeoutSchema)
	}
	if len(bd.blocks["nameserver"]) == 0 && !r.ParseResolvConf {
		b.errorf(n.Range, "Missing nameserver",
			"%s needs at least one nameserver block or parse_resolv_conf: true.", describe(n))
	}
	return r
}

func (b *builder) peers(n *ast.Node) *ir.Peers {
	bd := b.decode(n, peersSchema)
	return &ir.Peers{
		Name:  n.LabelText(),
		Range: n.Range,
		Peers: b.endpoints(bd.blocks["peer"], "peer", 0),
	}
}

func (b *builder) mailers(n *ast.Node) *ir.Mailers {
	bd := b.decode(n, mailersSchema)
	return &ir.Mailers{
		Name:        n.LabelText(),
		Range:       n.Range,
		TimeoutMail: b.dur(bd, "timeout_mail"),
		Mailers:     b.endpoints(bd.blocks["mailer"], "mailer", 0),
	}
}
