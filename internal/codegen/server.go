package codegen

import (
	"strings"

	"github.com/specialistvlad/lbforge/internal/ir"
)

// defaultServer renders the default-server line of a backend. Check timing
// declared on the backend health check lands here too; the builder rejects
// fields set in both places.
func (w *writer) defaultServer(bs *ir.BackendSide) {
	var timing ir.CheckTiming
	if bs.HealthCheck != nil {
		timing = bs.HealthCheck.Timing
	}
	if bs.DefaultServer == nil && timing.IsZero() {
		return
	}
	params := ir.ServerParams{}
	if bs.DefaultServer != nil {
		params = *bs.DefaultServer
	}
	params.Timing = mergeTiming(params.Timing, timing)

	t := serverParams(&params)
	if len(t) == 0 {
		return
	}
	w.line(append([]string{"default-server"}, t...)...)
}

func mergeTiming(own, fallback ir.CheckTiming) ir.CheckTiming {
	if own.Interval == nil {
		own.Interval = fallback.Interval
	}
	if own.FastInter == nil {
		own.FastInter = fallback.FastInter
	}
	if own.DownInter == nil {
		own.DownInter = fallback.DownInter
	}
	if own.Rise == nil {
		own.Rise = fallback.Rise
	}
	if own.Fall == nil {
		own.Fall = fallback.Fall
	}
	if own.Port == nil {
		own.Port = fallback.Port
	}
	return own
}

func (w *writer) server(s *ir.Server) {
	t := tokens{"server", required("server", s.Name), address(s.Address, s.Port)}
	t.add(serverParams(&s.ServerParams)...)
	w.line(t...)
}

// serverParams renders server options in canonical order.
func serverParams(p *ir.ServerParams) tokens {
	var t tokens
	t.tristate(p.Check, "check", "no-check")
	t.dur("inter", p.Timing.Interval)
	t.dur("fastinter", p.Timing.FastInter)
	t.dur("downinter", p.Timing.DownInter)
	t.num("rise", p.Timing.Rise)
	t.num("fall", p.Timing.Fall)
	t.num("port", p.Timing.Port)
	t.num("weight", p.Weight)
	t.num("maxconn", p.Maxconn)
	t.tristate(p.Backup, "backup", "no-backup")
	t.tristate(p.Disabled, "disabled", "enabled")
	t.tristate(p.SendProxy, "send-proxy", "no-send-proxy")
	t.tristate(p.SendProxyV2, "send-proxy-v2", "no-send-proxy-v2")
	t.str("cookie", p.Cookie)
	t.dur("slowstart", p.Slowstart)
	if p.Resolvers != nil {
		t.add("resolvers", p.Resolvers.Name)
	}
	t.str("resolve-prefer", p.ResolvePrefer)
	if len(p.InitAddr) > 0 {
		t.add("init-addr", strings.Join(p.InitAddr, ","))
	}
	t.str("on-marked-down", p.OnMarkedDown)
	if s := p.SSL; s != nil {
		if s.Enabled != nil && !*s.Enabled {
			t.add("no-ssl")
			return t
		}
		t.add("ssl")
		t.str("verify", s.Verify)
		t.str("ca-file", s.CAFile)
		if s.SNI != "" {
			t.add("sni", sniExpr(s.SNI))
		}
		if len(s.ALPN) > 0 {
			t.add("alpn", strings.Join(s.ALPN, ","))
		}
		t.str("crt", s.Certificate)
		t.str("ssl-min-ver", s.MinVersion)
	}
	return t
}

// sniExpr turns a plain host name into a sample expression; expressions
// such as req.hdr(host) are passed through.
func sniExpr(sni string) string {
	if strings.Contains(sni, "(") {
		return sni
	}
	return "str(" + sni + ")"
}
