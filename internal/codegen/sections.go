package codegen

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/lbforge/internal/ir"
)

func (w *writer) global(g *ir.Global) {
	w.section("global", "")
	if g.Daemon {
		w.line("daemon")
	}
	if g.MasterWorker {
		w.line("master-worker")
	}
	w.intLine("nbthread", g.Nbthread)
	w.intLine("maxconn", g.Maxconn)
	w.strLine("user", g.User)
	w.strLine("group", g.Group)
	w.strLine("chroot", g.Chroot)
	w.strLine("pidfile", g.Pidfile)
	for _, l := range g.Logs {
		w.log(l)
	}
	for _, s := range g.StatsSockets {
		var t tokens
		t.add("stats", "socket", Quote(required("stats socket", s.Path)))
		t.str("mode", s.Mode)
		t.str("level", s.Level)
		t.flag(s.ExposeFDListeners, "expose-fd listeners")
		w.line(t...)
	}
	w.intLine("spread-checks", g.SpreadChecks)
	if g.HardStopAfter != nil {
		w.line("hard-stop-after", ir.FormatDuration(*g.HardStopAfter))
	}
	w.intLine("tune.ssl.default-dh-param", g.TuneSSLDefaultDHParam)
	w.strLine("ssl-default-bind-ciphers", g.SSLDefaultBindCiphers)
	if len(g.SSLDefaultBindOptions) > 0 {
		w.line(append([]string{"ssl-default-bind-options"}, g.SSLDefaultBindOptions...)...)
	}
	w.strLine("ssl-default-server-ciphers", g.SSLDefaultServerCiphers)
	if len(g.SSLDefaultServerOptions) > 0 {
		w.line(append([]string{"ssl-default-server-options"}, g.SSLDefaultServerOptions...)...)
	}
}

func (w *writer) intLine(keyword string, v *int) {
	if v != nil {
		w.line(keyword, strconv.Itoa(*v))
	}
}

func (w *writer) strLine(keyword, v string) {
	if v != "" {
		w.line(keyword, Quote(v))
	}
}

func (w *writer) log(l *ir.Log) {
	var t tokens
	t.add("log", Quote(required("log", l.Target)))
	t.str("format", l.Format)
	t.add(required("log facility", l.Facility), l.Level)
	w.line(t...)
}

func (w *writer) defaults(d *ir.Defaults) {
	w.section("defaults", d.Name)
	w.proxy(&d.Proxy, nil, &ir.BackendSide{
		Balance:       d.Balance,
		BalanceParam:  d.BalanceParam,
		Retries:       d.Retries,
		DefaultServer: d.DefaultServer,
	})
}

func (w *writer) resolvers(r *ir.Resolvers) {
	w.section("resolvers", required("resolvers", r.Name))
	for _, ns := range r.Nameservers {
		w.endpoint("nameserver", ns)
	}
	if r.ParseResolvConf {
		w.line("parse-resolv-conf")
	}
	w.intLine("accepted_payload_size", r.AcceptedPayloadSize)
	w.intLine("resolve_retries", r.ResolveRetries)
	w.durations("timeout", ir.ResolverTimeoutOrder, r.Timeouts)
	w.durations("hold", ir.HoldOrder, r.Hold)
}

func (w *writer) peers(p *ir.Peers) {
	w.section("peers", required("peers", p.Name))
	for _, e := range p.Peers {
		w.endpoint("peer", e)
	}
}

func (w *writer) mailers(m *ir.Mailers) {
	w.section("mailers", required("mailers", m.Name))
	if m.TimeoutMail != nil {
		w.line("timeout", "mail", ir.FormatDuration(*m.TimeoutMail))
	}
	for _, e := range m.Mailers {
		w.endpoint("mailer", e)
	}
}

func (w *writer) endpoint(keyword string, e *ir.Endpoint) {
	if e.Port <= 0 {
		violation("%s %q without a port", keyword, e.Name)
	}
	w.line(keyword, required(keyword, e.Name), address(e.Address, &e.Port))
}

// durations renders a keyword-per-entry map in the given order. Every key of
// m must appear in order.
func (w *writer) durations(keyword string, order []string, m map[string]time.Duration) {
	rendered := 0
	for _, name := range order {
		if d, ok := m[name]; ok {
			w.line(keyword, name, ir.FormatDuration(d))
			rendered++
		}
	}
	if rendered != len(m) {
		var unknown []string
		for name := range m {
			if !ir.Contains(order, name) {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		violation("unknown %s names %s", keyword, strings.Join(unknown, ", "))
	}
}
