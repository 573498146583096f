// Package codegen renders a validated ir.Config as native HAProxy
// configuration text.
//
// Output is deterministic: sections appear in a fixed kind order (global,
// defaults, resolvers, peers, mailers, frontends, backends, listens), in
// declaration order within a kind, and every section renders its directives
// in one canonical order regardless of how the source was written.
package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/lbforge/internal/ir"
)

// Indent prefixes every directive inside a section.
const Indent = "    "

// ContractViolation is the panic value raised when the model breaks an
// invariant the builder is supposed to guarantee.
type ContractViolation struct {
	Msg string
}

func (c ContractViolation) Error() string { return "codegen: contract violation: " + c.Msg }

func violation(format string, args ...any) {
	panic(ContractViolation{Msg: fmt.Sprintf(format, args...)})
}

// Generate renders cfg. It panics with a ContractViolation when cfg could
// not have been produced by the builder.
func Generate(cfg *ir.Config) string {
	if cfg == nil {
		violation("nil config")
	}
	w := &writer{}
	if cfg.Global != nil {
		w.global(cfg.Global)
	}
	for _, d := range cfg.Defaults {
		w.defaults(d)
	}
	for _, r := range cfg.Resolvers {
		w.resolvers(r)
	}
	for _, p := range cfg.Peers {
		w.peers(p)
	}
	for _, m := range cfg.Mailers {
		w.mailers(m)
	}
	for _, f := range cfg.Frontends {
		w.section("frontend", required("frontend", f.Name))
		w.proxy(&f.Proxy, &f.FrontendSide, nil)
	}
	for _, b := range cfg.Backends {
		w.section("backend", required("backend", b.Name))
		w.proxy(&b.Proxy, nil, &b.BackendSide)
	}
	for _, l := range cfg.Listens {
		w.section("listen", required("listen", l.Name))
		w.proxy(&l.Proxy, &l.FrontendSide, &l.BackendSide)
	}
	return w.b.String()
}

func required(what, name string) string {
	if name == "" {
		violation("%s without a name", what)
	}
	return name
}

// writer accumulates the output text.
type writer struct {
	b        strings.Builder
	sections int
}

// section starts a new section, separated from the previous one by a blank
// line.
func (w *writer) section(keyword, name string) {
	if w.sections > 0 {
		w.b.WriteByte('\n')
	}
	w.sections++
	w.b.WriteString(keyword)
	if name != "" {
		w.b.WriteByte(' ')
		w.b.WriteString(name)
	}
	w.b.WriteByte('\n')
}

// line writes one indented directive; empty words are skipped.
func (w *writer) line(words ...string) {
	w.b.WriteString(Indent)
	first := true
	for _, word := range words {
		if word == "" {
			continue
		}
		if !first {
			w.b.WriteByte(' ')
		}
		w.b.WriteString(word)
		first = false
	}
	w.b.WriteByte('\n')
}

// tokens builds the argument list of a single directive.
type tokens []string

func (t *tokens) add(words ...string) { *t = append(*t, words...) }

func (t *tokens) flag(set bool, word string) {
	if set {
		*t = append(*t, word)
	}
}

// tristate renders a *bool as word, its negation, or nothing.
func (t *tokens) tristate(v *bool, word, negated string) {
	switch {
	case v == nil:
	case *v:
		*t = append(*t, word)
	default:
		*t = append(*t, negated)
	}
}

func (t *tokens) str(word, value string) {
	if value != "" {
		*t = append(*t, word, Quote(value))
	}
}

func (t *tokens) num(word string, v *int) {
	if v != nil {
		*t = append(*t, word, strconv.Itoa(*v))
	}
}

func (t *tokens) dur(word string, v *time.Duration) {
	if v != nil {
		*t = append(*t, word, ir.FormatDuration(*v))
	}
}

// Quote returns s as a single configuration word, double-quoting it when it
// is empty or contains characters HAProxy would split or interpret.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\#$") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Quote(v)
	}
	return out
}

func address(addr string, port *int) string {
	if addr == "" {
		violation("empty address")
	}
	if port == nil {
		return addr
	}
	return addr + ":" + strconv.Itoa(*port)
}

func condition(c *ir.Condition) []string {
	if c == nil {
		return nil
	}
	if !ir.Contains(ir.ConditionKinds, c.Kind) || c.Expr == "" {
		violation("invalid condition %q %q", c.Kind, c.Expr)
	}
	return []string{c.Kind, c.Expr}
}
