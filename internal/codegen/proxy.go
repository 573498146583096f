package codegen

import (
	"strconv"
	"strings"

	"github.com/specialistvlad/lbforge/internal/ir"
)

var checkOptions = map[string]string{
	"http":      "httpchk",
	"tcp":       "tcp-check",
	"ssl-hello": "ssl-hello-chk",
	"mysql":     "mysql-check",
	"pgsql":     "pgsql-check",
	"redis":     "redis-check",
	"smtp":      "smtpchk",
	"ldap":      "ldap-check",
}

// proxy renders the body of a defaults, frontend, backend or listen
// section. fs and bs are nil for sections without that side.
func (w *writer) proxy(p *ir.Proxy, fs *ir.FrontendSide, bs *ir.BackendSide) {
	if p.Mode != "" {
		w.line("mode", p.Mode)
	}
	if bs != nil && bs.Balance != "" {
		w.line("balance", balance(bs.Balance, bs.BalanceParam))
	}
	w.intLine("maxconn", p.Maxconn)
	if bs != nil {
		w.intLine("fullconn", bs.Fullconn)
	}
	if p.LogGlobal != nil {
		if *p.LogGlobal {
			w.line("log", "global")
		} else {
			w.line("no", "log")
		}
	}
	for _, l := range p.Logs {
		w.log(l)
	}
	w.options("option", p.Options)
	w.options("no option", p.NoOptions)
	if bs != nil && bs.HealthCheck != nil {
		w.healthCheck(bs.HealthCheck)
	}
	if bs != nil {
		w.intLine("retries", bs.Retries)
		if bs.HTTPReuse != "" {
			w.line("http-reuse", bs.HTTPReuse)
		}
	}
	w.durations("timeout", ir.TimeoutOrder, p.Timeouts)

	if fs != nil {
		for _, b := range fs.Binds {
			w.bind(b)
		}
	}
	for _, a := range p.ACLs {
		var t tokens
		t.add("acl", required("acl", a.Name), required("acl criterion", a.Criterion))
		t.flag(a.CaseInsensitive, "-i")
		t.add(quoteAll(a.Values)...)
		w.line(t...)
	}
	if p.StickTable != nil {
		w.stickTable(p.StickTable)
	}
	if bs != nil && bs.StickOn != "" {
		w.line("stick", "on", bs.StickOn)
	}
	for _, r := range p.HTTPRequest {
		w.rule("http-request", r)
	}
	for _, r := range p.HTTPResponse {
		w.rule("http-response", r)
	}
	if c := p.Compression; c != nil {
		if len(c.Algos) > 0 {
			w.line(append([]string{"compression", "algo"}, c.Algos...)...)
		}
		if len(c.Types) > 0 {
			w.line(append([]string{"compression", "type"}, quoteAll(c.Types)...)...)
		}
		if c.Offload {
			w.line("compression", "offload")
		}
	}
	if p.Stats != nil {
		w.stats(p.Stats)
	}
	if bs != nil && bs.Cookie != nil {
		w.cookie(bs.Cookie)
	}
	if bs != nil && bs.EmailAlert != nil {
		ea := bs.EmailAlert
		w.line("email-alert", "mailers", required("email-alert mailers", ea.Mailers.Name))
		w.line("email-alert", "from", Quote(ea.From))
		w.line("email-alert", "to", Quote(ea.To))
		if ea.Level != "" {
			w.line("email-alert", "level", ea.Level)
		}
		if ea.MyHostname != "" {
			w.line("email-alert", "myhostname", Quote(ea.MyHostname))
		}
	}
	if fs != nil {
		for _, ub := range fs.UseBackends {
			w.line(append([]string{"use_backend", required("use_backend", ub.Backend.Name)}, condition(ub.Cond)...)...)
		}
		if fs.DefaultBackend != nil {
			w.line("default_backend", required("default_backend", fs.DefaultBackend.Name))
		}
	}
	if bs != nil {
		w.defaultServer(bs)
		for _, s := range bs.Servers {
			w.server(s)
		}
	}
}

func balance(algo, param string) string {
	switch {
	case param == "":
		return algo
	case algo == "url_param":
		return algo + " " + Quote(param)
	case algo == "hdr" || algo == "rdp-cookie":
		return algo + "(" + param + ")"
	default:
		violation("balance %s does not take a parameter", algo)
		return ""
	}
}

// options renders option keywords in vocabulary order.
func (w *writer) options(prefix string, set []string) {
	if len(set) == 0 {
		return
	}
	rendered := 0
	for _, o := range ir.Options {
		if ir.Contains(set, o) {
			w.line(prefix, o)
			rendered++
		}
	}
	if rendered != len(set) {
		violation("unknown or repeated option in %v", set)
	}
}

func (w *writer) healthCheck(hc *ir.HealthCheck) {
	opt, ok := checkOptions[hc.Type]
	if !ok {
		violation("unknown health check type %q", hc.Type)
	}
	w.line("option", opt)
	if hc.Type != "http" {
		return
	}
	var t tokens
	t.str("meth", hc.Method)
	t.str("uri", hc.URI)
	t.str("ver", hc.Version)
	if hc.Host != "" {
		t.add("hdr", "Host", Quote(hc.Host))
	}
	if len(t) > 0 {
		w.line(append([]string{"http-check", "send"}, t...)...)
	}
	switch {
	case hc.ExpectStatus != nil:
		w.line("http-check", "expect", "status", strconv.Itoa(*hc.ExpectStatus))
	case hc.ExpectString != "":
		w.line("http-check", "expect", "string", Quote(hc.ExpectString))
	}
}

func (w *writer) bind(b *ir.Bind) {
	var t tokens
	t.add("bind", required("bind", b.Address))
	t.flag(b.AcceptProxy, "accept-proxy")
	if s := b.SSL; s != nil {
		if len(s.Certificates) == 0 {
			violation("bind %s: ssl without certificates", b.Address)
		}
		t.add("ssl")
		for _, c := range s.Certificates {
			t.add("crt", Quote(c))
		}
		t.str("ca-file", s.CAFile)
		t.str("verify", s.Verify)
		if len(s.ALPN) > 0 {
			t.add("alpn", strings.Join(s.ALPN, ","))
		}
		t.str("ssl-min-ver", s.MinVersion)
		t.str("ssl-max-ver", s.MaxVersion)
		t.str("ciphers", s.Ciphers)
		t.flag(s.StrictSNI, "strict-sni")
	}
	w.line(t...)
}

func (w *writer) stickTable(st *ir.StickTable) {
	var t tokens
	t.add("stick-table", "type", required("stick-table type", st.Type))
	t.num("len", st.Len)
	t.str("size", st.Size)
	t.dur("expire", st.Expire)
	t.flag(st.NoPurge, "nopurge")
	if st.Peers != nil {
		t.add("peers", st.Peers.Name)
	}
	if len(st.Store) > 0 {
		t.add("store", strings.Join(st.Store, ","))
	}
	w.line(t...)
}

func (w *writer) rule(keyword string, r *ir.HTTPRule) {
	t := tokens{keyword, required(keyword+" action", r.Action)}
	t.add(quoteAll(r.Args)...)
	t.add(condition(r.Cond)...)
	w.line(t...)
}

func (w *writer) stats(s *ir.Stats) {
	if !s.Enable {
		return
	}
	w.line("stats", "enable")
	if s.URI != "" {
		w.line("stats", "uri", Quote(s.URI))
	}
	if s.Realm != "" {
		w.line("stats", "realm", Quote(s.Realm))
	}
	if s.Refresh != nil {
		w.line("stats", "refresh", ir.FormatDuration(*s.Refresh))
	}
	for _, a := range s.Auth {
		w.line("stats", "auth", Quote(a))
	}
	if s.HideVersion {
		w.line("stats", "hide-version")
	}
	if s.AdminIf != "" {
		w.line("stats", "admin", "if", s.AdminIf)
	}
}

func (w *writer) cookie(c *ir.Cookie) {
	var t tokens
	t.add("cookie", required("cookie", c.Name), c.Mode)
	t.flag(c.Indirect, "indirect")
	t.flag(c.NoCache, "nocache")
	t.flag(c.PostOnly, "postonly")
	t.flag(c.HTTPOnly, "httponly")
	t.flag(c.Secure, "secure")
	t.str("domain", c.Domain)
	t.dur("maxidle", c.MaxIdle)
	t.dur("maxlife", c.MaxLife)
	w.line(t...)
}
