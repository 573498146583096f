package codegen

import (
	"testing"
	"time"

	"github.com/specialistvlad/lbforge/internal/builder"
	"github.com/specialistvlad/lbforge/internal/ir"
	"github.com/specialistvlad/lbforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIR(t *testing.T, src string) *ir.Config {
	t.Helper()
	ctx, _ := testutil.Context(t)
	cfg, diags := builder.Build(ctx, testutil.Parse(t, src), builder.Options{})
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", testutil.Summaries(diags))
	return cfg
}

const fullSource = `
global {
    daemon: true
    maxconn: 4096
    log "/dev/log" { facility: local0; level: info }
    stats_socket "/run/haproxy.sock" { mode: "660"; level: admin }
}
defaults {
    mode: http
    options: [dontlognull, httplog]
    log_global: true
    timeout { server: 30s; connect: 5s; client: 30000 }
}
resolvers "dns" {
    nameserver "google" { address: "8.8.8.8" }
    hold { valid: 10s }
}
frontend "www" {
    bind "*:443" { ssl { certificates: ["/etc/ssl/site.pem"]; alpn: [h2, "http/1.1"] } }
    default_backend: api
    use_backend "api" { if: is_api }
    acl "is_api" { criterion: path_beg; values: ["/api"] }
    http_request { action: set-header; args: ["X-Forwarded-Proto", https] }
}
backend "api" {
    balance: leastconn
    health_check { type: http; method: GET; uri: "/health"; expect_status: 200; interval: 2s; rise: 2 }
    default_server { check: true; maxconn: 100 }
    server "api1" { address: "10.0.0.1"; port: 8080 }
    server "api2" { address: "10.0.0.2"; port: 8080; weight: 50; backup: true; resolvers: dns }
}
`

const fullOutput = `global
    daemon
    maxconn 4096
    log /dev/log local0 info
    stats socket /run/haproxy.sock mode 660 level admin

defaults
    mode http
    log global
    option httplog
    option dontlognull
    timeout connect 5s
    timeout client 30s
    timeout server 30s

resolvers dns
    nameserver google 8.8.8.8:53
    hold valid 10s

frontend www
    bind *:443 ssl crt /etc/ssl/site.pem alpn h2,http/1.1
    acl is_api path_beg /api
    http-request set-header X-Forwarded-Proto https
    use_backend api if is_api
    default_backend api

backend api
    balance leastconn
    option httpchk
    http-check send meth GET uri /health
    http-check expect status 200
    default-server check inter 2s rise 2 maxconn 100
    server api1 10.0.0.1:8080
    server api2 10.0.0.2:8080 weight 50 backup resolvers dns
`

func TestGenerate_Golden(t *testing.T) {
	got := Generate(buildIR(t, fullSource))
	assert.Equal(t, fullOutput, got)
}

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate(buildIR(t, fullSource))
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Generate(buildIR(t, fullSource)), "run %d", i)
	}
}

func TestGenerate_SectionOrder(t *testing.T) {
	got := Generate(buildIR(t, `
		listen "stats" {
		    mode: http
		    bind "*:8404" {}
		    stats { enable: true; uri: "/stats"; refresh: 10s }
		}
		backend "b" { server "s" { address: "10.0.0.1" } }
		frontend "f" { bind "*:80" {} }
		mailers "ops" {
		    mailer "smtp1" { address: "10.0.0.5"; port: 25 }
		    timeout_mail: 10s
		}
		peers "mesh" { peer "lb1" { address: "10.0.0.1"; port: 10000 } }
		defaults "base" { mode: tcp }
	`))

	want := `defaults base
    mode tcp

peers mesh
    peer lb1 10.0.0.1:10000

mailers ops
    timeout mail 10s
    mailer smtp1 10.0.0.5:25

frontend f
    bind *:80

backend b
    server s 10.0.0.1

listen stats
    mode http
    bind *:8404
    stats enable
    stats uri /stats
    stats refresh 10s
`
	assert.Equal(t, want, got)
}

func TestGenerate_BackendDirectives(t *testing.T) {
	got := Generate(buildIR(t, `
		peers "mesh" { peer "lb1" { address: "10.0.0.1"; port: 10000 } }
		mailers "ops" { mailer "smtp1" { address: "10.0.0.5"; port: 25 } }
		backend "cache" {
		    mode: http
		    balance: hdr
		    balance_param: Host
		    retries: 3
		    http_reuse: safe
		    no_options: [redispatch]
		    timeout { queue: 5s; connect: 2s }
		    stick_table { type: string; len: 32; size: "100k"; expire: 30m; peers: mesh; store: [conn_cur, "http_req_rate(10s)"] }
		    stick_on: "req.cook(SID)"
		    cookie "SRV" { mode: insert; indirect: true; nocache: true; maxidle: 30m }
		    email_alert { mailers: ops; from: "lb@example.com"; to: "ops@example.com"; level: alert }
		    health_check { type: redis }
		    server "r1" {
		        address: "10.0.2.1"
		        port: 6379
		        check: false
		        disabled: false
		        send_proxy_v2: true
		        init_addr: [last, libc]
		        cookie: "r1"
		        ssl { verify: required; ca_file: "/etc/ssl/ca.pem"; sni: "cache.internal"; alpn: [h2] }
		    }
		}
	`))

	want := `peers mesh
    peer lb1 10.0.0.1:10000

mailers ops
    mailer smtp1 10.0.0.5:25

backend cache
    mode http
    balance hdr(Host)
    no option redispatch
    option redis-check
    retries 3
    http-reuse safe
    timeout connect 2s
    timeout queue 5s
    stick-table type string len 32 size 100k expire 30m peers mesh store conn_cur,http_req_rate(10s)
    stick on req.cook(SID)
    cookie SRV insert indirect nocache maxidle 30m
    email-alert mailers ops
    email-alert from lb@example.com
    email-alert to ops@example.com
    email-alert level alert
    server r1 10.0.2.1:6379 no-check enabled send-proxy-v2 cookie r1 init-addr last,libc ssl verify required ca-file /etc/ssl/ca.pem sni str(cache.internal) alpn h2
`
	assert.Equal(t, want, got)
}

func TestGenerate_DefaultsBalanceParam(t *testing.T) {
	got := Generate(buildIR(t, `defaults { mode: http; balance: url_param; balance_param: "uid" }`))
	assert.Equal(t, "defaults\n    mode http\n    balance url_param uid\n", got)
}

func TestGenerate_CheckTimingOnDefaultServer(t *testing.T) {
	got := Generate(buildIR(t, `
		backend "b" {
		    health_check { type: tcp; interval: 3s; fall: 3 }
		    server "s" { address: "10.0.0.1"; check: true }
		}
	`))
	assert.Contains(t, got, "    option tcp-check\n    default-server inter 3s fall 3\n    server s 10.0.0.1 check\n")
}

func TestGenerate_GlobalDirectives(t *testing.T) {
	got := Generate(buildIR(t, `
		global {
		    ssl_default_bind_options: [no-sslv3, no-tlsv10]
		    ssl_default_bind_ciphers: "ECDHE-RSA-AES128-GCM-SHA256:ECDHE-RSA-AES256-GCM-SHA384"
		    hard_stop_after: 30s
		    tune_ssl_default_dh_param: 2048
		    nbthread: 4
		    master_worker: true
		    user: haproxy
		    log "stdout" { format: raw; facility: local0 }
		}
	`))
	want := `global
    master-worker
    nbthread 4
    user haproxy
    log stdout format raw local0
    hard-stop-after 30s
    tune.ssl.default-dh-param 2048
    ssl-default-bind-ciphers ECDHE-RSA-AES128-GCM-SHA256:ECDHE-RSA-AES256-GCM-SHA384
    ssl-default-bind-options no-sslv3 no-tlsv10
`
	assert.Equal(t, want, got)
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain":         "plain",
		"":              `""`,
		"two words":     `"two words"`,
		`say "hi"`:      `"say \"hi\""`,
		"$HOME":         `"\$HOME"`,
		"/etc/site.pem": "/etc/site.pem",
	}
	for in, want := range tests {
		assert.Equal(t, want, Quote(in), in)
	}
}

func TestGenerate_ContractViolations(t *testing.T) {
	expectViolation := func(t *testing.T, cfg *ir.Config) {
		t.Helper()
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a panic")
			_, ok := r.(ContractViolation)
			require.True(t, ok, "panic value %T is not a ContractViolation", r)
		}()
		Generate(cfg)
	}

	t.Run("nil config", func(t *testing.T) { expectViolation(t, nil) })
	t.Run("server without address", func(t *testing.T) {
		expectViolation(t, &ir.Config{Backends: []*ir.Backend{{
			Proxy:       ir.Proxy{Name: "b"},
			BackendSide: ir.BackendSide{Servers: []*ir.Server{{Name: "s"}}},
		}}})
	})
	t.Run("unknown timeout", func(t *testing.T) {
		expectViolation(t, &ir.Config{Frontends: []*ir.Frontend{{
			Proxy: ir.Proxy{Name: "f", Timeouts: map[string]time.Duration{"bogus": time.Second}},
		}}})
	})
	t.Run("unnamed backend", func(t *testing.T) {
		expectViolation(t, &ir.Config{Backends: []*ir.Backend{{}}})
	})
}
