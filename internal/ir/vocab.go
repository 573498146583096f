package ir

// Enumerated identifiers accepted by the builder. Order is significant
// where it is used as a rendering order (options, timeouts, hold).

var Modes = []string{"http", "tcp"}

var BalanceAlgorithms = []string{
	"roundrobin", "static-rr", "leastconn", "first", "source",
	"uri", "url_param", "hdr", "random", "rdp-cookie",
}

// BalanceWithParam lists the algorithms that take a balance_param.
var BalanceWithParam = []string{"url_param", "hdr", "rdp-cookie"}

// Options is the set of "option X" keywords, in rendering order.
var Options = []string{
	"httplog", "tcplog", "dontlognull", "forwardfor", "http-server-close",
	"httpclose", "http-keep-alive", "redispatch", "abortonclose",
	"log-health-checks", "allbackups", "prefer-last-server",
	"http-buffer-request", "tcpka", "clitcpka", "srvtcpka", "contstats",
	"splice-auto",
}

// HTTPOnlyOptions may only be used in http mode.
var HTTPOnlyOptions = []string{
	"httplog", "forwardfor", "http-server-close", "httpclose",
	"http-keep-alive", "http-buffer-request",
}

var LogFacilities = []string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "auth2", "ftp", "ntp", "audit", "alert", "cron2",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

var LogLevels = []string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

var LogFormats = []string{"rfc3164", "rfc5424", "short", "raw", "iso", "local", "priority", "timed"}

var HealthCheckTypes = []string{"http", "tcp", "ssl-hello", "mysql", "pgsql", "redis", "smtp", "ldap"}

var HTTPMethods = []string{"GET", "HEAD", "POST", "PUT", "OPTIONS", "DELETE", "PATCH"}

var StickTableTypes = []string{"ip", "ipv6", "integer", "string", "binary"}

var HTTPReuseModes = []string{"never", "safe", "aggressive", "always"}

var ServerVerify = []string{"none", "required"}

var BindVerify = []string{"none", "optional", "required"}

var TLSVersions = []string{"SSLv3", "TLSv1.0", "TLSv1.1", "TLSv1.2", "TLSv1.3"}

var InitAddrMethods = []string{"last", "libc", "none"}

var ResolvePreferences = []string{"ipv4", "ipv6"}

var OnMarkedDownActions = []string{"shutdown-sessions"}

var ConditionKinds = []string{"if", "unless"}

var HTTPRequestActions = []string{
	"allow", "deny", "tarpit", "auth", "redirect", "set-header", "add-header",
	"del-header", "replace-header", "set-path", "set-query", "set-var",
	"set-log-level", "return", "capture",
}

var HTTPResponseActions = []string{
	"allow", "deny", "set-header", "add-header", "del-header",
	"replace-header", "set-status", "set-var", "return",
}

var StatsSocketLevels = []string{"user", "operator", "admin"}

var CompressionAlgos = []string{"identity", "gzip", "deflate", "raw-deflate"}

var CookieModes = []string{"insert", "rewrite", "prefix"}

// TimeoutOrder is the rendering order of proxy timeouts, in HAProxy
// spelling.
var TimeoutOrder = []string{
	"connect", "client", "client-fin", "server", "server-fin",
	"http-request", "http-keep-alive", "queue", "tunnel", "check",
}

// ResolverTimeoutOrder is the rendering order of resolvers timeouts.
var ResolverTimeoutOrder = []string{"resolve", "retry"}

// HoldOrder is the rendering order of resolvers hold periods.
var HoldOrder = []string{"nx", "other", "refused", "timeout", "valid", "obsolete"}

// Contains reports whether set holds v.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
