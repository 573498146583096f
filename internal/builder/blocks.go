package builder

import (
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/ir"
)

func orTCP(mode string) string {
	if mode == "" {
		return "tcp"
	}
	return mode
}

func joinQuoted(set []string) string {
	q := make([]string, len(set))
	for i, s := range set {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, ", ")
}

func (b *builder) log(n *ast.Node) *ir.Log {
	bd := b.decode(n, logSchema)
	l := &ir.Log{
		Range:    n.Range,
		Target:   n.LabelText(),
		Format:   b.enum(bd, "format"),
		Facility: b.enum(bd, "facility"),
		Level:    b.enum(bd, "level"),
	}
	switch {
	case bd.has("level") && !bd.has("facility"):
		b.errorf(bd.valueRange("level"), "Log level without facility", "A log level can only be set together with a facility.")
	case !bd.has("facility"):
		b.require(bd, "facility")
	}
	return l
}

// timeouts decodes a timeout block into HAProxy timeout names.
func (b *builder) timeouts(n *ast.Node, s schema) map[string]time.Duration {
	bd := b.decode(n, s)
	out := make(map[string]time.Duration, len(bd.attrs))
	for name := range bd.attrs {
		if d := b.dur(bd, name); d != nil {
			out[nativeName(name)] = *d
		}
	}
	return out
}

func (b *builder) acl(n *ast.Node) *ir.ACL {
	bd := b.decode(n, aclSchema)
	b.require(bd, "criterion")
	return &ir.ACL{
		Range:           n.Range,
		Name:            n.LabelText(),
		Criterion:       b.str(bd, "criterion"),
		Values:          b.list(bd, "values"),
		CaseInsensitive: b.flag(bd, "case_insensitive"),
	}
}

func (b *builder) condition(bd *body) *ir.Condition {
	switch {
	case bd.has("if") && bd.has("unless"):
		b.errorf(bd.valueRange("unless"), "Conflicting conditions", "Only one of \"if\" and \"unless\" may be set.")
		return nil
	case bd.has("if"):
		return &ir.Condition{Kind: "if", Expr: b.str(bd, "if")}
	case bd.has("unless"):
		return &ir.Condition{Kind: "unless", Expr: b.str(bd, "unless")}
	}
	return nil
}

func (b *builder) httpRule(n *ast.Node, s schema) *ir.HTTPRule {
	bd := b.decode(n, s)
	b.require(bd, "action")
	return &ir.HTTPRule{
		Range:  n.Range,
		Action: b.enum(bd, "action"),
		Args:   b.list(bd, "args"),
		Cond:   b.condition(bd),
	}
}

func (b *builder) stickTable(n *ast.Node) *ir.StickTable {
	bd := b.decode(n, stickTableSchema)
	b.require(bd, "type")
	st := &ir.StickTable{
		Range:   n.Range,
		Type:    b.enum(bd, "type"),
		Len:     b.intp(bd, "len"),
		Size:    b.str(bd, "size"),
		Expire:  b.dur(bd, "expire"),
		NoPurge: b.flag(bd, "nopurge"),
		Store:   b.list(bd, "store"),
	}
	if bd.has("len") && st.Type != "" && st.Type != "string" && st.Type != "binary" {
		b.errorf(bd.valueRange("len"), "Unexpected length", "len only applies to string and binary stick tables, not %q.", st.Type)
	}
	if name := b.str(bd, "peers"); name != "" {
		st.Peers = &ir.Ref{Name: name, Range: bd.valueRange("peers")}
	}
	return st
}

func (b *builder) stats(n *ast.Node) *ir.Stats {
	bd := b.decode(n, statsSchema)
	s := &ir.Stats{
		Range:       n.Range,
		Enable:      b.flag(bd, "enable"),
		URI:         b.str(bd, "uri"),
		Realm:       b.str(bd, "realm"),
		Refresh:     b.dur(bd, "refresh"),
		Auth:        b.list(bd, "auth"),
		HideVersion: b.flag(bd, "hide_version"),
		AdminIf:     b.str(bd, "admin_if"),
	}
	if !s.Enable {
		for _, name := range []string{"uri", "realm", "refresh", "auth", "hide_version", "admin_if"} {
			if bd.has(name) {
				b.errorf(bd.valueRange(name), "Stats not enabled", "Property %q has no effect unless enable is true.", name)
			}
		}
	}
	for i, a := range s.Auth {
		if !strings.Contains(a, ":") {
			b.errorf(bd.valueRange("auth"), "Invalid value", "Stats auth entry %d must be written as user:password.", i+1)
		}
	}
	return s
}

func (b *builder) compression(n *ast.Node) *ir.Compression {
	bd := b.decode(n, compressionSchema)
	return &ir.Compression{
		Range:   n.Range,
		Algos:   b.list(bd, "algos"),
		Types:   b.list(bd, "types"),
		Offload: b.flag(bd, "offload"),
	}
}

func (b *builder) bind(n *ast.Node) *ir.Bind {
	bd := b.decode(n, bindSchema)
	bind := &ir.Bind{
		Range:       n.Range,
		Address:     n.LabelText(),
		AcceptProxy: b.flag(bd, "accept_proxy"),
	}
	if s := bd.single("ssl"); s != nil {
		sd := b.decode(s, bindSSLSchema)
		b.require(sd, "certificates")
		bind.SSL = &ir.BindSSL{
			Certificates: b.list(sd, "certificates"),
			CAFile:       b.str(sd, "ca_file"),
			Verify:       b.enum(sd, "verify"),
			ALPN:         b.list(sd, "alpn"),
			MinVersion:   b.enum(sd, "min_version"),
			MaxVersion:   b.enum(sd, "max_version"),
			Ciphers:      b.str(sd, "ciphers"),
			StrictSNI:    b.flag(sd, "strict_sni"),
		}
		b.checkVerify(sd, bind.SSL.Verify, bind.SSL.CAFile)
		if lo, hi := bind.SSL.MinVersion, bind.SSL.MaxVersion; lo != "" && hi != "" && indexOf(ir.TLSVersions, lo) > indexOf(ir.TLSVersions, hi) {
			b.errorf(sd.valueRange("max_version"), "Invalid TLS version range", "max_version %s is older than min_version %s.", hi, lo)
		}
	}
	return bind
}

func indexOf(set []string, v string) int {
	for i, s := range set {
		if s == v {
			return i
		}
	}
	return -1
}

// checkVerify enforces that peer verification has a CA to verify against.
func (b *builder) checkVerify(bd *body, verify, caFile string) {
	if verify == "required" && caFile == "" {
		b.errorf(bd.valueRange("verify"), "Missing CA file", "verify: required needs ca_file to name the certificate authority bundle.")
	}
}

func (b *builder) cookie(n *ast.Node) *ir.Cookie {
	bd := b.decode(n, cookieSchema)
	c := &ir.Cookie{
		Range:    n.Range,
		Name:     n.LabelText(),
		Mode:     b.enum(bd, "mode"),
		Indirect: b.flag(bd, "indirect"),
		NoCache:  b.flag(bd, "nocache"),
		PostOnly: b.flag(bd, "postonly"),
		HTTPOnly: b.flag(bd, "httponly"),
		Secure:   b.flag(bd, "secure"),
		Domain:   b.str(bd, "domain"),
		MaxIdle:  b.dur(bd, "maxidle"),
		MaxLife:  b.dur(bd, "maxlife"),
	}
	if c.Mode != "insert" {
		for _, name := range []string{"indirect", "nocache", "postonly"} {
			if bd.has(name) {
				b.errorf(bd.valueRange(name), "Option requires insert mode", "Cookie option %q only applies with mode: insert.", name)
			}
		}
	}
	return c
}

func (b *builder) emailAlert(n *ast.Node) *ir.EmailAlert {
	bd := b.decode(n, emailAlertSchema)
	b.require(bd, "mailers", "from", "to")
	ea := &ir.EmailAlert{
		Range:      n.Range,
		From:       b.str(bd, "from"),
		To:         b.str(bd, "to"),
		Level:      b.enum(bd, "level"),
		MyHostname: b.str(bd, "myhostname"),
	}
	ea.Mailers = ir.Ref{Name: b.str(bd, "mailers"), Range: bd.valueRange("mailers")}
	return ea
}

// healthCheck decodes the backend-level check.
func (b *builder) healthCheck(n *ast.Node) *ir.HealthCheck {
	bd := b.decode(n, healthCheckSchema)
	b.require(bd, "type")
	hc := &ir.HealthCheck{
		Range:        n.Range,
		Type:         b.enum(bd, "type"),
		Method:       b.enum(bd, "method"),
		URI:          b.str(bd, "uri"),
		Version:      b.str(bd, "version"),
		Host:         b.str(bd, "host"),
		ExpectStatus: b.intp(bd, "expect_status"),
		ExpectString: b.str(bd, "expect_string"),
		Timing:       b.timing(bd),
	}
	if hc.Type != "" && hc.Type != "http" {
		for _, name := range []string{"method", "uri", "version", "host", "expect_status", "expect_string"} {
			if bd.has(name) {
				b.errorf(bd.valueRange(name), "Property requires an http check",
					"Property %q only applies to health checks of type http, not %q.", name, hc.Type)
			}
		}
	}
	if bd.has("expect_status") && bd.has("expect_string") {
		b.errorf(bd.valueRange("expect_string"), "Conflicting properties", "Only one of expect_status and expect_string may be set.")
	}
	return hc
}

func (b *builder) timing(bd *body) ir.CheckTiming {
	return ir.CheckTiming{
		Interval:  b.dur(bd, "interval"),
		FastInter: b.dur(bd, "fastinter"),
		DownInter: b.dur(bd, "downinter"),
		Rise:      b.intp(bd, "rise"),
		Fall:      b.intp(bd, "fall"),
		Port:      b.intp(bd, "port"),
	}
}
