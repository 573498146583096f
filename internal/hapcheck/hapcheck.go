// Package hapcheck re-reads generated text with HAProxy's own configuration
// parser from client-native. It checks that the text splits into the expected
// sections and that the main fields of every frontend and backend read back
// as the model holds them. It does not prove HAProxy would accept the text.
package hapcheck

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	parser "github.com/haproxytech/client-native/v6/config-parser"
	"github.com/haproxytech/client-native/v6/config-parser/types"
	"github.com/specialistvlad/lbforge/internal/ir"
)

// client-native writes a package-level default section name while parsing,
// so parses are serialized.
var parseMu sync.Mutex

// Sections lists the named sections found in a configuration, per kind, in
// sorted order.
type Sections struct {
	Frontends []string
	Backends  []string
	Resolvers []string
	Peers     []string
	Mailers   []string

	// Proxies holds the fields of each frontend and backend, keyed by
	// "frontend NAME" or "backend NAME".
	Proxies map[string]*Proxy
}

// Proxy is the part of a frontend or backend that survives a re-parse check.
type Proxy struct {
	Mode           string
	Balance        string
	DefaultBackend string
	Binds          []string
	// Servers are "name address[:port]" in section order.
	Servers  []string
	Timeouts map[string]string
	// Options lists the checked option keywords present, enabled or
	// disabled.
	Options []string
}

// checkedTimeouts and checkedOptions are the keywords compared per section
// kind.
var (
	checkedTimeouts = map[parser.Section][]string{
		parser.Frontends: {"client", "http-request"},
		parser.Backends:  {"connect", "server", "queue", "check", "tunnel"},
	}
	checkedOptions = map[parser.Section][]string{
		parser.Frontends: {"httplog", "tcplog", "dontlognull", "forwardfor", "http-server-close", "httpclose", "http-keep-alive", "clitcpka"},
		parser.Backends:  {"forwardfor", "http-server-close", "httpclose", "http-keep-alive", "redispatch", "abortonclose", "allbackups", "srvtcpka"},
	}
)

// Parse runs the client-native parser over text.
func Parse(text string) (*Sections, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("configuration is empty")
	}

	parseMu.Lock()
	defer parseMu.Unlock()

	p, err := parser.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}
	if err := p.Process(strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	s := &Sections{
		Frontends: names(p, parser.Frontends),
		Backends:  names(p, parser.Backends),
		Resolvers: names(p, parser.Resolvers),
		Peers:     names(p, parser.Peers),
		Mailers:   names(p, parser.Mailers),
		Proxies:   make(map[string]*Proxy),
	}
	for _, name := range s.Frontends {
		s.Proxies[key(parser.Frontends, name)] = readProxy(p, parser.Frontends, name)
	}
	for _, name := range s.Backends {
		s.Proxies[key(parser.Backends, name)] = readProxy(p, parser.Backends, name)
	}
	return s, nil
}

func key(kind parser.Section, name string) string {
	return strings.TrimSuffix(string(kind), "s") + " " + name
}

// readProxy collects the checked fields of one section. Attributes the
// parser reports as missing are left empty.
func readProxy(p parser.Parser, kind parser.Section, name string) *Proxy {
	get := func(attr string) any {
		data, err := p.Get(kind, name, attr)
		if err != nil {
			return nil
		}
		return data
	}

	px := &Proxy{Timeouts: make(map[string]string)}
	if v, ok := get("mode").(*types.StringC); ok {
		px.Mode = v.Value
	}
	if v, ok := get("default_backend").(*types.StringC); ok {
		px.DefaultBackend = v.Value
	}
	if v, ok := get("balance").(*types.Balance); ok {
		px.Balance = algorithm(v.Algorithm)
	}
	if binds, ok := get("bind").([]types.Bind); ok {
		for _, b := range binds {
			px.Binds = append(px.Binds, b.Path)
		}
	}
	if servers, ok := get("server").([]types.Server); ok {
		for _, srv := range servers {
			px.Servers = append(px.Servers, srv.Name+" "+srv.Address)
		}
	}
	for _, t := range checkedTimeouts[kind] {
		if v, ok := get("timeout " + t).(*types.SimpleTimeout); ok {
			px.Timeouts[t] = v.Value
		}
	}
	for _, o := range checkedOptions[kind] {
		if get("option "+o) != nil {
			px.Options = append(px.Options, o)
		}
	}
	return px
}

// algorithm drops the parameter of hdr(NAME) and rdp-cookie(NAME).
func algorithm(a string) string {
	name, _, _ := strings.Cut(a, "(")
	return name
}

// names returns the sorted section names of one kind. A kind with no
// sections is reported by the parser as an error and treated as empty.
func names(p parser.Parser, kind parser.Section) []string {
	got, err := p.SectionsGet(kind)
	if err != nil {
		return nil
	}
	got = slices.Clone(got)
	slices.Sort(got)
	return got
}

// Expected lists the sections cfg should produce. Listen sections are left
// out: the parser has no listen kind.
func Expected(cfg *ir.Config) *Sections {
	s := &Sections{}
	for _, f := range cfg.Frontends {
		s.Frontends = append(s.Frontends, f.Name)
	}
	for _, b := range cfg.Backends {
		s.Backends = append(s.Backends, b.Name)
	}
	for _, r := range cfg.Resolvers {
		s.Resolvers = append(s.Resolvers, r.Name)
	}
	for _, p := range cfg.Peers {
		s.Peers = append(s.Peers, p.Name)
	}
	for _, m := range cfg.Mailers {
		s.Mailers = append(s.Mailers, m.Name)
	}
	for _, list := range []*[]string{&s.Frontends, &s.Backends, &s.Resolvers, &s.Peers, &s.Mailers} {
		slices.Sort(*list)
	}

	s.Proxies = make(map[string]*Proxy)
	for _, f := range cfg.Frontends {
		px := expectedProxy(&f.Proxy, parser.Frontends)
		for _, b := range f.Binds {
			px.Binds = append(px.Binds, b.Address)
		}
		if f.DefaultBackend != nil {
			px.DefaultBackend = f.DefaultBackend.Name
		}
		s.Proxies[key(parser.Frontends, f.Name)] = px
	}
	for _, b := range cfg.Backends {
		px := expectedProxy(&b.Proxy, parser.Backends)
		px.Balance = b.Balance
		for _, srv := range b.Servers {
			addr := srv.Address
			if srv.Port != nil {
				addr += ":" + strconv.Itoa(*srv.Port)
			}
			px.Servers = append(px.Servers, srv.Name+" "+addr)
		}
		s.Proxies[key(parser.Backends, b.Name)] = px
	}
	return s
}

func expectedProxy(p *ir.Proxy, kind parser.Section) *Proxy {
	px := &Proxy{Mode: p.Mode, Timeouts: make(map[string]string)}
	for _, t := range checkedTimeouts[kind] {
		if d, ok := p.Timeouts[t]; ok {
			px.Timeouts[t] = ir.FormatDuration(d)
		}
	}
	for _, o := range checkedOptions[kind] {
		if ir.Contains(p.Options, o) || ir.Contains(p.NoOptions, o) {
			px.Options = append(px.Options, o)
		}
	}
	return px
}

// Verify parses text and checks that it holds exactly the sections of cfg.
func Verify(cfg *ir.Config, text string) error {
	got, err := Parse(text)
	if err != nil {
		return err
	}
	want := Expected(cfg)

	var mismatches []string
	compare := func(kind string, want, got []string) {
		if !slices.Equal(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("%s: want [%s], got [%s]",
				kind, strings.Join(want, " "), strings.Join(got, " ")))
		}
	}
	compare("frontend", want.Frontends, got.Frontends)
	compare("backend", want.Backends, got.Backends)
	compare("resolvers", want.Resolvers, got.Resolvers)
	compare("peers", want.Peers, got.Peers)
	compare("mailers", want.Mailers, got.Mailers)
	if len(mismatches) > 0 {
		return fmt.Errorf("re-parsed sections differ: %s", strings.Join(mismatches, "; "))
	}

	keys := make([]string, 0, len(want.Proxies))
	for k := range want.Proxies {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if diff := cmp.Diff(want.Proxies[k], got.Proxies[k], cmpopts.EquateEmpty()); diff != "" {
			mismatches = append(mismatches, fmt.Sprintf("%s (-want +got):\n%s", k, diff))
		}
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("re-parsed fields differ: %s", strings.Join(mismatches, "\n"))
	}
	return nil
}
