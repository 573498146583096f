package builder

import (
	"strings"

	"github.com/specialistvlad/lbforge/internal/ir"
)

// Timeout property names per section, in DSL spelling.
var (
	defaultsTimeouts = []string{"connect", "client", "server", "http_request", "http_keep_alive", "queue", "tunnel", "check", "client_fin", "server_fin"}
	frontendTimeouts = []string{"client", "http_request", "http_keep_alive", "client_fin"}
	backendTimeouts  = []string{"connect", "server", "queue", "tunnel", "check", "server_fin"}
	resolverTimeouts = []string{"resolve", "retry"}
)

// nativeName converts a DSL name to HAProxy spelling.
func nativeName(name string) string { return strings.ReplaceAll(name, "_", "-") }

func durations(names ...string) schema {
	s := schema{attrs: make(map[string]attrSpec)}
	for _, n := range names {
		s.attrs[n] = durationAttr()
	}
	return s
}

var logSchema = schema{attrs: map[string]attrSpec{
	"format":   enumAttr(ir.LogFormats),
	"facility": enumAttr(ir.LogFacilities),
	"level":    enumAttr(ir.LogLevels),
}}

var statsSocketSchema = schema{attrs: map[string]attrSpec{
	"mode":                stringAttr(),
	"level":               enumAttr(ir.StatsSocketLevels),
	"expose_fd_listeners": boolAttr(),
}}

var globalSchema = schema{
	attrs: map[string]attrSpec{
		"daemon":                     boolAttr(),
		"master_worker":              boolAttr(),
		"maxconn":                    intAttr(1, 0),
		"nbthread":                   intAttr(1, 4096),
		"user":                       stringAttr(),
		"group":                      stringAttr(),
		"chroot":                     stringAttr(),
		"pidfile":                    stringAttr(),
		"spread_checks":              intAttr(0, 50),
		"hard_stop_after":            durationAttr(),
		"tune_ssl_default_dh_param":  intAttr(1024, 0),
		"ssl_default_bind_ciphers":   stringAttr(),
		"ssl_default_bind_options":   listAttr(),
		"ssl_default_server_ciphers": stringAttr(),
		"ssl_default_server_options": listAttr(),
	},
	blocks: map[string]blockSpec{
		"log":          namedBlocks,
		"stats_socket": namedBlocks,
	},
}

var bindSSLSchema = schema{attrs: map[string]attrSpec{
	"certificates": listAttr(),
	"ca_file":      stringAttr(),
	"verify":       enumAttr(ir.BindVerify),
	"alpn":         listAttr(),
	"min_version":  enumAttr(ir.TLSVersions),
	"max_version":  enumAttr(ir.TLSVersions),
	"ciphers":      stringAttr(),
	"strict_sni":   boolAttr(),
}}

var bindSchema = schema{
	attrs:  map[string]attrSpec{"accept_proxy": boolAttr()},
	blocks: map[string]blockSpec{"ssl": oneBlock},
}

var aclSchema = schema{attrs: map[string]attrSpec{
	"criterion":        stringAttr(),
	"values":           listAttr(),
	"case_insensitive": boolAttr(),
}}

var conditionAttrs = schema{attrs: map[string]attrSpec{
	"if":     stringAttr(),
	"unless": stringAttr(),
}}

var httpRequestSchema = conditionAttrs.with(schema{attrs: map[string]attrSpec{
	"action": enumAttr(ir.HTTPRequestActions),
	"args":   listAttr(),
}})

var httpResponseSchema = conditionAttrs.with(schema{attrs: map[string]attrSpec{
	"action": enumAttr(ir.HTTPResponseActions),
	"args":   listAttr(),
}})

var useBackendSchema = conditionAttrs

var stickTableSchema = schema{attrs: map[string]attrSpec{
	"type":    enumAttr(ir.StickTableTypes),
	"len":     intAttr(1, 0),
	"size":    stringAttr(),
	"expire":  durationAttr(),
	"nopurge": boolAttr(),
	"peers":   stringAttr(),
	"store":   listAttr(),
}}

var statsSchema = schema{attrs: map[string]attrSpec{
	"enable":       boolAttr(),
	"uri":          stringAttr(),
	"realm":        stringAttr(),
	"refresh":      durationAttr(),
	"auth":         listAttr(),
	"hide_version": boolAttr(),
	"admin_if":     stringAttr(),
}}

var compressionSchema = schema{attrs: map[string]attrSpec{
	"algos":   enumListAttr(ir.CompressionAlgos),
	"types":   listAttr(),
	"offload": boolAttr(),
}}

var checkTimingSchema = schema{attrs: map[string]attrSpec{
	"interval":  durationAttr(),
	"fastinter": durationAttr(),
	"downinter": durationAttr(),
	"rise":      intAttr(1, 0),
	"fall":      intAttr(1, 0),
	"port":      intAttr(1, 65535),
}}

var healthCheckSchema = checkTimingSchema.with(schema{attrs: map[string]attrSpec{
	"type":          enumAttr(ir.HealthCheckTypes),
	"method":        enumAttr(ir.HTTPMethods),
	"uri":           stringAttr(),
	"version":       stringAttr(),
	"host":          stringAttr(),
	"expect_status": intAttr(100, 599),
	"expect_string": stringAttr(),
}})

var serverSSLSchema = schema{attrs: map[string]attrSpec{
	"enabled":     boolAttr(),
	"verify":      enumAttr(ir.ServerVerify),
	"ca_file":     stringAttr(),
	"sni":         stringAttr(),
	"alpn":        listAttr(),
	"certificate": stringAttr(),
	"min_version": enumAttr(ir.TLSVersions),
}}

var defaultServerSchema = schema{
	attrs: map[string]attrSpec{
		"weight":         intAttr(0, 256),
		"maxconn":        intAttr(1, 0),
		"check":          boolAttr(),
		"backup":         boolAttr(),
		"disabled":       boolAttr(),
		"send_proxy":     boolAttr(),
		"send_proxy_v2":  boolAttr(),
		"slowstart":      durationAttr(),
		"resolvers":      stringAttr(),
		"resolve_prefer": enumAttr(ir.ResolvePreferences),
		"init_addr":      enumListAttr(ir.InitAddrMethods),
		"on_marked_down": enumAttr(ir.OnMarkedDownActions),
	},
	blocks: map[string]blockSpec{
		"ssl":          oneBlock,
		"health_check": oneBlock,
	},
}

var serverSchema = defaultServerSchema.with(schema{attrs: map[string]attrSpec{
	"address": stringAttr(),
	"port":    intAttr(1, 65535),
	"cookie":  stringAttr(),
}})

var cookieSchema = schema{attrs: map[string]attrSpec{
	"mode":     enumAttr(ir.CookieModes),
	"indirect": boolAttr(),
	"nocache":  boolAttr(),
	"postonly": boolAttr(),
	"httponly": boolAttr(),
	"secure":   boolAttr(),
	"domain":   stringAttr(),
	"maxidle":  durationAttr(),
	"maxlife":  durationAttr(),
}}

var emailAlertSchema = schema{attrs: map[string]attrSpec{
	"mailers":    stringAttr(),
	"from":       stringAttr(),
	"to":         stringAttr(),
	"level":      enumAttr(ir.LogLevels),
	"myhostname": stringAttr(),
}}

// Proxy sections are composed from shared parts.
var (
	proxyCommon = schema{
		attrs: map[string]attrSpec{
			"mode":       enumAttr(ir.Modes),
			"maxconn":    intAttr(1, 0),
			"log_global": boolAttr(),
			"options":    enumListAttr(ir.Options),
			"no_options": enumListAttr(ir.Options),
		},
		blocks: map[string]blockSpec{
			"timeout": oneBlock,
			"log":     namedBlocks,
		},
	}

	proxyTraffic = schema{blocks: map[string]blockSpec{
		"acl":           namedBlocks,
		"http_request":  manyBlocks,
		"http_response": manyBlocks,
		"stick_table":   oneBlock,
		"stats":         oneBlock,
		"compression":   oneBlock,
	}}

	frontendPart = schema{
		attrs: map[string]attrSpec{"default_backend": stringAttr()},
		blocks: map[string]blockSpec{
			"bind":        namedBlocks,
			"use_backend": namedBlocks,
		},
	}

	backendPart = schema{
		attrs: map[string]attrSpec{
			"balance":       enumAttr(ir.BalanceAlgorithms),
			"balance_param": stringAttr(),
			"fullconn":      intAttr(1, 0),
			"retries":       intAttr(0, 0),
			"http_reuse":    enumAttr(ir.HTTPReuseModes),
			"stick_on":      stringAttr(),
		},
		blocks: map[string]blockSpec{
			"health_check":   oneBlock,
			"default_server": oneBlock,
			"server":         namedBlocks,
			"cookie":         labeledBlock,
			"email_alert":    oneBlock,
		},
	}

	defaultsSchema = proxyCommon.with(schema{
		attrs: map[string]attrSpec{
			"balance":       enumAttr(ir.BalanceAlgorithms),
			"balance_param": stringAttr(),
			"retries":       intAttr(0, 0),
		},
		blocks: map[string]blockSpec{"default_server": oneBlock},
	})

	frontendSchema = proxyCommon.with(proxyTraffic).with(frontendPart)
	backendSchema  = proxyCommon.with(proxyTraffic).with(backendPart).without("maxconn")
	listenSchema   = proxyCommon.with(proxyTraffic).with(frontendPart).with(backendPart)
)

var timeoutSchemas = map[string]schema{
	"defaults": durations(defaultsTimeouts...),
	"frontend": durations(frontendTimeouts...),
	"backend":  durations(backendTimeouts...),
	"listen":   durations(defaultsTimeouts...),
}

var endpointSchema = schema{attrs: map[string]attrSpec{
	"address": stringAttr(),
	"port":    intAttr(1, 65535),
}}

var resolversSchema = schema{
	attrs: map[string]attrSpec{
		"accepted_payload_size": intAttr(512, 8192),
		"resolve_retries":       intAttr(1, 0),
		"parse_resolv_conf":     boolAttr(),
	},
	blocks: map[string]blockSpec{
		"nameserver": namedBlocks,
		"hold":       oneBlock,
		"timeout":    oneBlock,
	},
}

var holdSchema = durations(ir.HoldOrder...)

var resolverTimeoutSchema = durations(resolverTimeouts...)

var peersSchema = schema{blocks: map[string]blockSpec{"peer": namedBlocks}}

var mailersSchema = schema{
	attrs:  map[string]attrSpec{"timeout_mail": durationAttr()},
	blocks: map[string]blockSpec{"mailer": namedBlocks},
}
