// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package ir holds the validated, typed model of a native HAProxy
// configuration. Values in this package are only produced by the builder,
// which guarantees every invariant the code generator relies on.
//
// Optional scalars are pointers: nil means "not set, leave HAProxy's
// default", which is different from an explicit zero or false.
package ir

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Config is a complete configuration.
type Config struct {
	Global    *Global
	Defaults  []*Defaults
	Frontends []*Frontend
	Backends  []*Backend
	Listens   []*Listen
	Resolvers []*Resolvers
	Peers     []*Peers
	Mailers   []*Mailers
}

// Ref names another section and remembers where the reference was written.
type Ref struct {
	Name  string
	Range hcl.Range
}

// Global is the process-wide section.
type Global struct {
	Range                   hcl.Range
	Daemon                  bool
	MasterWorker            bool
	Maxconn                 *int
	Nbthread                *int
	User                    string
	Group                   string
	Chroot                  string
	Pidfile                 string
	SpreadChecks            *int
	HardStopAfter           *time.Duration
	TuneSSLDefaultDHParam   *int
	SSLDefaultBindCiphers   string
	SSLDefaultBindOptions   []string
	SSLDefaultServerCiphers string
	SSLDefaultServerOptions []string
	Logs                    []*Log
	StatsSockets            []*StatsSocket
}

// StatsSocket is a runtime API socket.
type StatsSocket struct {
	Range             hcl.Range
	Path              string
	Mode              string
	Level             string
	ExposeFDListeners bool
}

// Log is a log target. Target is an address, a socket path, stdout or stderr.
type Log struct {
	Range    hcl.Range
	Target   string
	Format   string
	Facility string
	Level    string
}

// Proxy holds what defaults, frontend, backend and listen sections share.
type Proxy struct {
	Name      string
	Range     hcl.Range
	Mode      string
	Maxconn   *int
	LogGlobal *bool
	Logs      []*Log
	Options   []string
	NoOptions []string
	// Timeouts maps a timeout name (connect, client, http-request, ...) to
	// its value. The generator renders them in a fixed order.
	Timeouts     map[string]time.Duration
	ACLs         []*ACL
	HTTPRequest  []*HTTPRule
	HTTPResponse []*HTTPRule
	StickTable   *StickTable
	Stats        *Stats
	Compression  *Compression
}

// FrontendSide holds the client-facing part of a frontend or listen.
type FrontendSide struct {
	Binds          []*Bind
	UseBackends    []*UseBackend
	DefaultBackend *Ref
}

// BackendSide holds the server-facing part of a backend or listen.
type BackendSide struct {
	Balance       string
	BalanceParam  string
	Fullconn      *int
	Retries       *int
	HTTPReuse     string
	HealthCheck   *HealthCheck
	DefaultServer *ServerParams
	Servers       []*Server
	StickOn       string
	Cookie        *Cookie
	EmailAlert    *EmailAlert
}

// Defaults is a defaults section. Name may be empty.
type Defaults struct {
	Proxy
	Balance       string
	BalanceParam  string
	Retries       *int
	DefaultServer *ServerParams
}

type Frontend struct {
	Proxy
	FrontendSide
}

type Backend struct {
	Proxy
	BackendSide
}

type Listen struct {
	Proxy
	FrontendSide
	BackendSide
}

// Bind is a listening address of a frontend or listen.
type Bind struct {
	Range       hcl.Range
	Address     string
	AcceptProxy bool
	SSL         *BindSSL
}

// BindSSL terminates TLS on a bind line.
type BindSSL struct {
	Certificates []string
	CAFile       string
	Verify       string
	ALPN         []string
	MinVersion   string
	MaxVersion   string
	Ciphers      string
	StrictSNI    bool
}

// ACL is a named condition.
type ACL struct {
	Range           hcl.Range
	Name            string
	Criterion       string
	Values          []string
	CaseInsensitive bool
}

// Condition guards a rule: "if <Expr>" or "unless <Expr>".
type Condition struct {
	Kind string
	Expr string
}

// HTTPRule is an http-request or http-response rule.
type HTTPRule struct {
	Range  hcl.Range
	Action string
	Args   []string
	Cond   *Condition
}

// UseBackend routes traffic to Backend when Cond holds.
type UseBackend struct {
	Range   hcl.Range
	Backend Ref
	Cond    *Condition
}

// StickTable stores per-key counters.
type StickTable struct {
	Range   hcl.Range
	Type    string
	Len     *int
	Size    string
	Expire  *time.Duration
	NoPurge bool
	Peers   *Ref
	Store   []string
}

// Stats enables the statistics page.
type Stats struct {
	Range       hcl.Range
	Enable      bool
	URI         string
	Realm       string
	Refresh     *time.Duration
	Auth        []string
	HideVersion bool
	AdminIf     string
}

type Compression struct {
	Range   hcl.Range
	Algos   []string
	Types   []string
	Offload bool
}

// HealthCheck is the backend-level check protocol. Timing fields are
// rendered on the default-server line.
type HealthCheck struct {
	Range        hcl.Range
	Type         string
	Method       string
	URI          string
	Version      string
	Host         string
	ExpectStatus *int
	ExpectString string
	Timing       CheckTiming
}

// CheckTiming holds the per-server check cadence.
type CheckTiming struct {
	Interval  *time.Duration
	FastInter *time.Duration
	DownInter *time.Duration
	Rise      *int
	Fall      *int
	Port      *int
}

// IsZero reports whether no timing field is set.
func (t CheckTiming) IsZero() bool {
	return t.Interval == nil && t.FastInter == nil && t.DownInter == nil &&
		t.Rise == nil && t.Fall == nil && t.Port == nil
}

// ServerParams are the options shared by server and default-server lines.
// Tri-state booleans render as the keyword when true and as its "no-" form
// when explicitly false.
type ServerParams struct {
	Range         hcl.Range
	Weight        *int
	Maxconn       *int
	Check         *bool
	Backup        *bool
	Disabled      *bool
	SendProxy     *bool
	SendProxyV2   *bool
	Cookie        string
	Slowstart     *time.Duration
	Resolvers     *Ref
	ResolvePrefer string
	InitAddr      []string
	OnMarkedDown  string
	SSL           *ServerSSL
	Timing        CheckTiming
}

// ServerSSL enables TLS towards a server.
type ServerSSL struct {
	Enabled     *bool
	Verify      string
	CAFile      string
	SNI         string
	ALPN        []string
	Certificate string
	MinVersion  string
}

// Server is one upstream server.
type Server struct {
	ServerParams
	Name    string
	Address string
	Port    *int
}

// Cookie configures cookie-based persistence.
type Cookie struct {
	Range    hcl.Range
	Name     string
	Mode     string
	Indirect bool
	NoCache  bool
	PostOnly bool
	HTTPOnly bool
	Secure   bool
	Domain   string
	MaxIdle  *time.Duration
	MaxLife  *time.Duration
}

// EmailAlert sends mail on server state changes.
type EmailAlert struct {
	Range      hcl.Range
	Mailers    Ref
	From       string
	To         string
	Level      string
	MyHostname string
}

// Endpoint is a named address inside resolvers, peers or mailers.
type Endpoint struct {
	Range   hcl.Range
	Name    string
	Address string
	Port    int
}

type Resolvers struct {
	Name                string
	Range               hcl.Range
	Nameservers         []*Endpoint
	ParseResolvConf     bool
	AcceptedPayloadSize *int
	ResolveRetries      *int
	Hold                map[string]time.Duration
	Timeouts            map[string]time.Duration
}

type Peers struct {
	Name  string
	Range hcl.Range
	Peers []*Endpoint
}

type Mailers struct {
	Name        string
	Range       hcl.Range
	TimeoutMail *time.Duration
	Mailers     []*Endpoint
}
